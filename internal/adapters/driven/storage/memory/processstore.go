package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

// Ensure ProcessStore implements the interface.
var _ driven.ProcessStore = (*ProcessStore)(nil)

// ProcessStore is an in-memory implementation of driven.ProcessStore.
type ProcessStore struct {
	mu        sync.RWMutex
	processes map[string]domain.Process
}

// NewProcessStore creates a new in-memory process store.
func NewProcessStore() *ProcessStore {
	return &ProcessStore{
		processes: make(map[string]domain.Process),
	}
}

// Save stores or updates a process with its event log.
func (s *ProcessStore) Save(_ context.Context, proc *domain.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *proc
	stored.Events = make([]domain.ProcessEvent, len(proc.Events))
	copy(stored.Events, proc.Events)

	s.processes[proc.ID] = stored
	return nil
}

// Get retrieves a process by ID.
func (s *ProcessStore) Get(_ context.Context, id string) (*domain.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proc, ok := s.processes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	out := proc
	out.Events = make([]domain.ProcessEvent, len(proc.Events))
	copy(out.Events, proc.Events)
	return &out, nil
}

// List returns all processes, newest first.
func (s *ProcessStore) List(_ context.Context) ([]domain.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Process, 0, len(s.processes))
	for id := range s.processes {
		result = append(result, s.processes[id])
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
