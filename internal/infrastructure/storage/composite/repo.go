package composite

import (
	"context"
	"errors"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

// Repo fans every write out to all backends. Every backend is attempted;
// the first error is returned.
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) InsertDrainReport(ctx context.Context, rep domain.DrainReport) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertDrainReport(ctx, rep); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) InsertSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertSessionEvent(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every backend and joins their errors.
func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.Repository = (*Repo)(nil)
