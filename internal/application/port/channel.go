package port

import (
	"context"
	"errors"
	"time"
)

// ErrChannelClosed is returned by Channel.Err when the peer closed the
// channel cleanly or Close was called locally.
var ErrChannelClosed = errors.New("channel closed")

// Frame is one inbound text frame.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// Channel is a bidirectional text-message channel to the exchange.
type Channel interface {
	// Send writes one text message. Safe for concurrent use.
	Send(data []byte) error
	// Messages delivers inbound text frames in receipt order. It is closed
	// once the channel stops; Err then tells why.
	Messages() <-chan Frame
	// Err is nil while the channel is open, ErrChannelClosed after a clean
	// close, or the transport error otherwise.
	Err() error
	Close() error
}

// Handshaker is implemented by channels whose protocol handshake is a
// separate step after the connection is opened.
type Handshaker interface {
	Handshake(ctx context.Context) error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context, url string) (Channel, error)
}

// SymbolSource lists the tradable symbol universe.
type SymbolSource interface {
	Name() string
	FetchSymbols(ctx context.Context) ([]string, error)
}
