// Package env tells local development runs apart from production deployments.
package env

import (
	"os"
	"strings"
)

type Environment string

const (
	Local      Environment = "local"
	Production Environment = "production"

	Key string = "ENV"
)

func (e Environment) Valid() bool {
	switch e {
	case Local, Production:
		return true
	}
	return false
}

func (e Environment) IsProduction() bool { return e == Production }

// Parse maps a raw value onto a known environment, falling back to Local.
func Parse(v string) Environment {
	e := Environment(strings.ToLower(strings.TrimSpace(v)))
	if !e.Valid() {
		return Local
	}
	return e
}

var Current = Local

func init() {
	Current = Parse(os.Getenv(Key))
}
