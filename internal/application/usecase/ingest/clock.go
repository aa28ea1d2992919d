package ingest

import "time"

// Ticker is the part of time.Ticker the session and monitor use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates tickers; tests swap it for a manual one.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}
