package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/MalithGihan/pdfview/internal/viewer"
)

var ErrNotFound = errors.New("store: viewer not found")

// Viewers holds the mounted viewer instances, keyed by a generated id.
type Viewers struct {
	mu sync.RWMutex
	m  map[string]*viewer.Viewer
}

func New() *Viewers { return &Viewers{m: map[string]*viewer.Viewer{}} }

func (s *Viewers) Add(v *viewer.Viewer) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.m[id] = v
	s.mu.Unlock()
	return id
}

func (s *Viewers) Get(id string) (*viewer.Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Remove unmounts the viewer and forgets it.
func (s *Viewers) Remove(id string) error {
	s.mu.Lock()
	v, ok := s.m[id]
	delete(s.m, id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	v.Unmount()
	return nil
}

func (s *Viewers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Close unmounts every viewer.
func (s *Viewers) Close() {
	s.mu.Lock()
	all := s.m
	s.m = map[string]*viewer.Viewer{}
	s.mu.Unlock()
	for _, v := range all {
		v.Unmount()
	}
}
