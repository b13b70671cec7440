package tmdb

import (
	"errors"
	"net/http"
	"strconv"
)

// ErrMissingAPIKey means no key is stored or configured; no request was made.
var ErrMissingAPIKey = errors.New("tmdb api key missing")

const (
	authFailedMessage  = "Authentication failed. Please check if your API Key is correct."
	missingKeyMessage  = "Please enter your TMDB API Key to browse movies."
	fetchFailedMessage = "Failed to fetch movies"
)

// AuthError is returned when TMDB rejects the credential (HTTP 401) or when
// there is no credential at all. Either way the user has to enter a key.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if errors.Is(e.Err, ErrMissingAPIKey) {
		return missingKeyMessage
	}
	return authFailedMessage
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError covers every other non-2xx response and transport failure.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fetchFailedMessage + ": " + e.Err.Error()
	}
	if e.Status != 0 {
		return fetchFailedMessage + ": " + strconv.Itoa(e.Status) + " " + http.StatusText(e.Status)
	}
	return fetchFailedMessage
}

func (e *FetchError) Unwrap() error { return e.Err }

func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
