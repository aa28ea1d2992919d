package aggregator

import (
	"context"
	"errors"
	"sync"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

// ErrBufferFull is returned by Append under the drop policy when the buffer
// is at capacity.
var ErrBufferFull = errors.New("aggregator buffer full")

// Policy decides what Append does when a bounded buffer is full.
type Policy int

const (
	PolicyBlock Policy = iota
	PolicyDrop
)

// ParsePolicy maps the config value to a Policy. Unknown values block.
func ParsePolicy(s string) Policy {
	if s == "drop" {
		return PolicyDrop
	}
	return PolicyBlock
}

// Buffer is the shared message sink. Any number of sessions append; a single
// monitor drains. A drain swaps the backing slice under the lock, so every
// message lands in exactly one drain epoch.
type Buffer struct {
	mu       sync.Mutex
	notFull  chan struct{} // closed and replaced on every drain
	items    []domain.Message
	capacity int
	policy   Policy

	// Stats
	totalAppended int64
	totalDrained  int64
	totalDropped  int64
	drains        int64
}

// New creates a buffer. capacity <= 0 means unbounded.
func New(capacity int, policy Policy) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		notFull:  make(chan struct{}),
		capacity: capacity,
		policy:   policy,
	}
}

// Append adds msg. When bounded and full it either fails with ErrBufferFull
// (drop) or waits for the next drain (block).
func (b *Buffer) Append(ctx context.Context, msg domain.Message) error {
	for {
		b.mu.Lock()
		if b.capacity == 0 || len(b.items) < b.capacity {
			b.items = append(b.items, msg)
			b.totalAppended++
			b.mu.Unlock()
			return nil
		}
		if b.policy == PolicyDrop {
			b.totalDropped++
			b.mu.Unlock()
			return ErrBufferFull
		}
		wait := b.notFull
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Drain atomically removes and returns every buffered message.
func (b *Buffer) Drain() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapLocked()
}

// DrainAndCount atomically reads the buffered count and clears the buffer.
func (b *Buffer) DrainAndCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.swapLocked())
}

// swapLocked must be called with the lock held.
func (b *Buffer) swapLocked() []domain.Message {
	out := b.items
	if b.capacity > 0 {
		b.items = make([]domain.Message, 0, b.capacity)
	} else {
		b.items = nil
	}
	b.totalDrained += int64(len(out))
	b.drains++

	close(b.notFull)
	b.notFull = make(chan struct{})
	return out
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns buffer statistics.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:         len(b.items),
		Capacity:      b.capacity,
		TotalAppended: b.totalAppended,
		TotalDrained:  b.totalDrained,
		TotalDropped:  b.totalDropped,
		Drains:        b.drains,
	}
}

// Stats contains buffer statistics.
type Stats struct {
	Count         int
	Capacity      int
	TotalAppended int64
	TotalDrained  int64
	TotalDropped  int64
	Drains        int64
}

var (
	_ port.Sink    = (*Buffer)(nil)
	_ port.Drainer = (*Buffer)(nil)
)
