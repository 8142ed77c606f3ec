// Package memory keeps settings in process memory. Nothing survives a restart.
package memory

import (
	"maps"
	"sync"
)

// Store is an in-memory settings store.
type Store struct {
	mu        sync.RWMutex
	overrides map[string]map[string]string
	states    map[string]bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		overrides: make(map[string]map[string]string),
		states:    make(map[string]bool),
	}
}

func (s *Store) Init() error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) SaveElementOverride(script, element, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.overrides[script]
	if !ok {
		m = make(map[string]string)
		s.overrides[script] = m
	}
	m[element] = code
	return nil
}

func (s *Store) ElementOverrides(script string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := maps.Clone(s.overrides[script])
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

func (s *Store) DeleteElementOverride(script, element string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides[script], element)
	return nil
}

func (s *Store) SaveScriptState(script string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[script] = enabled
	return nil
}

func (s *Store) ScriptState(script string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.states[script]
	return enabled, ok, nil
}
