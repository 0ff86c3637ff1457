package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
	"github.com/bldr-labs/bldr/internal/logger"
)

// Ensure ProcessTracker implements the interface.
var _ driving.ProcessService = (*ProcessTracker)(nil)

// ProcessTracker maintains the state machine and event log for
// long-running work: ingestion runs, plan executions and tool calls.
// Other services drive it; observers subscribe to it.
type ProcessTracker struct {
	store driven.ProcessStore

	mu          sync.RWMutex
	subscribers map[string][]chan domain.ProcessEvent
	cancelled   map[string]bool
}

// NewProcessTracker creates a process tracker backed by the given store.
func NewProcessTracker(store driven.ProcessStore) *ProcessTracker {
	return &ProcessTracker{
		store:       store,
		subscribers: make(map[string][]chan domain.ProcessEvent),
		cancelled:   make(map[string]bool),
	}
}

// Begin registers a new pending process.
func (t *ProcessTracker) Begin(ctx context.Context, kind domain.ProcessKind, metadata map[string]any) (*domain.Process, error) {
	now := time.Now()
	proc := &domain.Process{
		ID:        uuid.New().String(),
		Kind:      kind,
		State:     domain.ProcessPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
		Events: []domain.ProcessEvent{
			{Seq: 0, State: domain.ProcessPending, Message: "registered", At: now},
		},
	}
	if err := t.store.Save(ctx, proc); err != nil {
		return nil, fmt.Errorf("save process: %w", err)
	}
	return proc, nil
}

// Transition moves a process to the next state, appending an event.
// Illegal transitions return domain.ErrInvalidTransition.
func (t *ProcessTracker) Transition(ctx context.Context, id string, next domain.ProcessState, message string) error {
	proc, err := t.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get process: %w", err)
	}

	if !proc.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, proc.State, next)
	}

	proc.State = next
	if next == domain.ProcessCompleted {
		proc.Progress = 100
	}
	event := t.appendEvent(proc, message)

	if err := t.store.Save(ctx, proc); err != nil {
		return fmt.Errorf("save process: %w", err)
	}

	t.notify(id, event, next.Terminal())
	return nil
}

// Progress records a progress update without changing state.
func (t *ProcessTracker) Progress(ctx context.Context, id string, percent int, message string) error {
	proc, err := t.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get process: %w", err)
	}
	if proc.State.Terminal() {
		return fmt.Errorf("%w: process %s already %s", domain.ErrInvalidTransition, id, proc.State)
	}

	if percent > 100 {
		percent = 100
	}
	proc.Progress = percent
	event := t.appendEvent(proc, message)

	if err := t.store.Save(ctx, proc); err != nil {
		return fmt.Errorf("save process: %w", err)
	}

	t.notify(id, event, false)
	return nil
}

// Cancelled reports whether cancellation was requested for the process.
// Services check it at suspension points and between retries.
func (t *ProcessTracker) Cancelled(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelled[id]
}

// Get returns a process snapshot by ID.
func (t *ProcessTracker) Get(ctx context.Context, id string) (*domain.Process, error) {
	return t.store.Get(ctx, id)
}

// List returns all known processes, newest first.
func (t *ProcessTracker) List(ctx context.Context) ([]domain.Process, error) {
	return t.store.List(ctx)
}

// Subscribe returns a channel of events for the process. Past events
// are replayed first; the channel closes on the terminal event or when
// the context is cancelled.
func (t *ProcessTracker) Subscribe(ctx context.Context, id string) (<-chan domain.ProcessEvent, error) {
	proc, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get process: %w", err)
	}

	out := make(chan domain.ProcessEvent, 16)

	if proc.State.Terminal() {
		go func() {
			defer close(out)
			for _, ev := range proc.Events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}

	feed := make(chan domain.ProcessEvent, 16)
	t.mu.Lock()
	t.subscribers[id] = append(t.subscribers[id], feed)
	t.mu.Unlock()

	go func() {
		defer close(out)
		defer t.unsubscribe(id, feed)

		for _, ev := range proc.Events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		lastSeq := 0
		if n := len(proc.Events); n > 0 {
			lastSeq = proc.Events[n-1].Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-feed:
				if !ok {
					return
				}
				if ev.Seq <= lastSeq {
					continue // already replayed
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.State.Terminal() {
					return
				}
			}
		}
	}()

	return out, nil
}

// Cancel requests cooperative cancellation. A still-pending process is
// cancelled immediately; a running one observes the flag at its next
// suspension point.
func (t *ProcessTracker) Cancel(ctx context.Context, id string) error {
	proc, err := t.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get process: %w", err)
	}
	if proc.State.Terminal() {
		return fmt.Errorf("%w: process %s already %s", domain.ErrInvalidTransition, id, proc.State)
	}

	t.mu.Lock()
	t.cancelled[id] = true
	t.mu.Unlock()

	logger.Info("Cancellation requested for process %s", id)

	if proc.State == domain.ProcessPending {
		return t.Transition(ctx, id, domain.ProcessCancelled, "cancelled before start")
	}
	return nil
}

func (t *ProcessTracker) appendEvent(proc *domain.Process, message string) domain.ProcessEvent {
	seq := 0
	if n := len(proc.Events); n > 0 {
		seq = proc.Events[n-1].Seq + 1
	}
	event := domain.ProcessEvent{
		Seq:      seq,
		State:    proc.State,
		Progress: proc.Progress,
		Message:  message,
		At:       time.Now(),
	}
	proc.Events = append(proc.Events, event)
	proc.UpdatedAt = event.At
	return event
}

func (t *ProcessTracker) notify(id string, event domain.ProcessEvent, terminal bool) {
	t.mu.Lock()
	subs := t.subscribers[id]
	if terminal {
		delete(t.subscribers, id)
		delete(t.cancelled, id)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop rather than block progress.
		}
		if terminal {
			close(ch)
		}
	}
}

func (t *ProcessTracker) unsubscribe(id string, feed chan domain.ProcessEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.subscribers[id]
	for i, ch := range subs {
		if ch == feed {
			t.subscribers[id] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
