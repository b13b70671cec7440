// Package keystore persists the TMDB API key entered by the user in a small
// dotenv file, so it survives restarts.
package keystore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const Key = "TMDB_API_KEY"

type Store struct {
	path     string
	fallback string

	mu     sync.RWMutex
	stored string
}

// Open reads the key file at path. A missing file means no stored key.
// fallback is returned by APIKey while nothing is stored.
func Open(path, fallback string) (*Store, error) {
	s := &Store{path: path, fallback: strings.TrimSpace(fallback)}
	if path == "" {
		return s, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	s.stored = strings.TrimSpace(values[Key])
	return s, nil
}

// APIKey returns the stored key, or the configured fallback.
func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stored != "" {
		return s.stored
	}
	return s.fallback
}

// Stored reports whether a key was entered, as opposed to configured.
func (s *Store) Stored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored != ""
}

func (s *Store) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(key); err != nil {
		return err
	}
	s.stored = key
	return nil
}

// Clear forgets the stored key. The configured fallback, if any, stays.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = ""
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) write(key string) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	return godotenv.Write(map[string]string{Key: key}, s.path)
}
