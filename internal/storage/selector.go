package storage

import (
	"sync"

	"alcyxob/askexpert/internal/domain"
)

// Selector routes a media kind to the backend that stores it.
// There is no fallback: a kind without a backend is a configuration problem.
type Selector struct {
	mu       sync.RWMutex
	backends map[domain.MediaKind]MediaBackend
}

func NewSelector() *Selector {
	return &Selector{backends: make(map[domain.MediaKind]MediaBackend)}
}

// Register installs (or replaces) the backend for kind.
func (s *Selector) Register(kind domain.MediaKind, backend MediaBackend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[kind] = backend
}

// Select returns the backend for kind or a ConfigurationError.
func (s *Selector) Select(kind domain.MediaKind) (MediaBackend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backend, ok := s.backends[kind]
	if !ok {
		return nil, &domain.ConfigurationError{
			Key:    "media backend for " + string(kind),
			Reason: "no storage backend configured",
		}
	}
	return backend, nil
}
