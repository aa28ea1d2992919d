package port

import (
	"context"

	"github.com/tyura/websocket-clients/internal/domain"
)

type Repository interface {
	// Monitor drains
	InsertDrainReport(ctx context.Context, r domain.DrainReport) error

	// Session lifecycle
	InsertSessionEvent(ctx context.Context, ev domain.SessionEvent) error

	// Connection management
	Close() error
}
