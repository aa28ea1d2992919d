package storage

import (
	"context"
	"sync"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

// InMemoryRepository keeps the most recent reports and events in memory.
// It is the backend used when no storage is enabled.
type InMemoryRepository struct {
	mu      sync.Mutex
	max     int
	reports []domain.DrainReport
	events  []domain.SessionEvent
}

// NewInMemoryRepository creates a repository retaining at most max entries
// of each kind (max <= 0 keeps 1024).
func NewInMemoryRepository(max int) *InMemoryRepository {
	if max <= 0 {
		max = 1024
	}
	return &InMemoryRepository{max: max}
}

func (r *InMemoryRepository) InsertDrainReport(ctx context.Context, rep domain.DrainReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	if len(r.reports) > r.max {
		r.reports = append(r.reports[:0:0], r.reports[len(r.reports)-r.max:]...)
	}
	return nil
}

func (r *InMemoryRepository) InsertSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if len(r.events) > r.max {
		r.events = append(r.events[:0:0], r.events[len(r.events)-r.max:]...)
	}
	return nil
}

// Reports returns a copy of the retained reports, oldest first.
func (r *InMemoryRepository) Reports() []domain.DrainReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DrainReport, len(r.reports))
	copy(out, r.reports)
	return out
}

// Events returns a copy of the retained events, oldest first.
func (r *InMemoryRepository) Events() []domain.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SessionEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *InMemoryRepository) Close() error {
	return nil
}

var _ port.Repository = (*InMemoryRepository)(nil)
