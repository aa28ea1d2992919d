package port

import (
	"context"
	"time"

	"github.com/tyura/websocket-clients/internal/domain"
)

// Sink receives decoded messages from every shard session.
type Sink interface {
	// Append must be safe for concurrent use. It may block (bounded buffer,
	// block policy) until ctx is done, or fail fast (drop policy).
	Append(ctx context.Context, msg domain.Message) error
}

// Drainer is the single reader side of the sink.
type Drainer interface {
	// DrainAndCount atomically reads the buffered count and clears it.
	DrainAndCount() int
}

// Reporter renders monitor output for humans.
type Reporter interface {
	// Report line: append a historical line with timestamp
	WriteReport(ts time.Time, line string) error
	// Normal newline (for logs)
	NewLine() error
}
