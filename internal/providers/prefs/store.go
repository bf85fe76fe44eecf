package prefs

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/tabsession/internal/shared/atomicfile"
)

// Store is a small key-value preference file in TOML. Values are loaded
// lazily on first access and written through on every change.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]any
	loaded bool
}

// NewStore creates a preference store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Bool returns the boolean stored under key, false when unset
func (s *Store) Bool(key string) (bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("preference %q is %T, not bool", key, v)
	}
	return b, nil
}

// SetBool stores a boolean under key
func (s *Store) SetBool(key string, value bool) error {
	return s.Set(key, value)
}

// Get returns the raw value under key
func (s *Store) Get(key string) (any, bool, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key and persists the file
func (s *Store) Set(key string, value any) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.saveLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the file
func (s *Store) Delete(key string) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// Keys returns all preference keys, sorted
func (s *Store) Keys() ([]string, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	values := make(map[string]any)
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read preferences: %w", err)
	default:
		if err := toml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("failed to parse preferences: %w", err)
		}
	}

	s.values = values
	s.loaded = true
	return nil
}

// Caller holds mu.
func (s *Store) saveLocked() error {
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := atomicfile.Save(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
