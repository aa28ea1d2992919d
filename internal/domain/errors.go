package domain

import "fmt"

// ConfigurationError reports an invalid setting, e.g. a non-positive batch size.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// ConnectError is a failure to open or handshake a shard's channel.
type ConnectError struct {
	ShardID int
	URL     string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("shard %d: connect %s: %v", e.ShardID, e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DecodeError is a single inbound frame that is not valid JSON.
// It never terminates a session.
type DecodeError struct {
	ShardID int
	Frame   []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("shard %d: decode frame (%d bytes): %v", e.ShardID, len(e.Frame), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError is a channel failure after the session was established.
type TransportError struct {
	ShardID int
	Op      string // "send", "ping", "read", "subscribe"
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("shard %d: %s: %v", e.ShardID, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
