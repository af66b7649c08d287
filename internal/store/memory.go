package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry keeps artifacts in a process-local map.
type MemoryRegistry struct {
	mu        sync.RWMutex
	artifacts map[string]*model.Artifact
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *MemoryRegistry {
	return &MemoryRegistry{artifacts: make(map[string]*model.Artifact)}
}

// Put registers a new artifact. Ids are never reused, so a duplicate id is an error.
func (m *MemoryRegistry) Put(_ context.Context, a model.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.artifacts[a.ID]; ok {
		return fmt.Errorf("artifact %s already registered", a.ID)
	}
	m.artifacts[a.ID] = &a
	return nil
}

// Get returns a copy of the artifact so callers cannot mutate registry state.
func (m *MemoryRegistry) Get(_ context.Context, id string) (*model.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	cp.Quiz = a.Quiz.Clone()
	return &cp, nil
}

func (m *MemoryRegistry) List(_ context.Context) ([]model.FileInfo, error) {
	m.mu.RLock()
	all := make([]*model.Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		all = append(all, a)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	out := make([]model.FileInfo, len(all))
	for i, a := range all {
		out[i] = a.Info()
	}
	return out, nil
}

func (m *MemoryRegistry) SetSummary(_ context.Context, id, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return "", model.ErrNotFound
	}
	if a.Summary == "" {
		a.Summary = text
	}
	return a.Summary, nil
}

func (m *MemoryRegistry) SetQuiz(_ context.Context, id string, q *model.Quiz) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if a.Quiz == nil {
		a.Quiz = q.Clone()
	}
	return a.Quiz.Clone(), nil
}
