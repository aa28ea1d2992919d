package domain

import (
	"encoding/json"
	"time"
)

// Message is one decoded inbound frame.
type Message struct {
	ShardID    int
	ReceivedAt time.Time
	Raw        json.RawMessage
	Value      any
}

// DrainReport summarises one monitor drain.
type DrainReport struct {
	RunID  string
	At     time.Time
	Count  int
	Active int
	Closed int
	Failed int
	Total  int // sessions started
}

// SessionEvent records one shard session state transition.
type SessionEvent struct {
	RunID   string
	ShardID int
	From    string
	To      string
	Cause   string
	At      time.Time
}
