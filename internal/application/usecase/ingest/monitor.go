package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

// ReportRecorder persists monitor output and session lifecycle events.
type ReportRecorder interface {
	RecordDrain(ctx context.Context, r domain.DrainReport)
	RecordTransition(ctx context.Context, ev domain.SessionEvent)
}

type MonitorDeps struct {
	Drainer   port.Drainer
	Reporter  port.Reporter  // optional
	Recorder  ReportRecorder // optional
	Stats     func() Counts  // defaults to the owning supervisor's
	Interval  time.Duration
	Formatter *Formatter
	NewTicker TickerFactory
}

// Monitor periodically drains the aggregator and reports the count.
type Monitor struct {
	deps MonitorDeps
}

func NewMonitor(deps MonitorDeps) *Monitor {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	if deps.Formatter == nil {
		deps.Formatter = NewFormatter(false)
	}
	if deps.NewTicker == nil {
		deps.NewTicker = NewTicker
	}
	return &Monitor{deps: deps}
}

// Run ticks until ctx is cancelled. The first drain happens one interval
// after start.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.deps.NewTicker(m.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if m.deps.Reporter != nil {
				_ = m.deps.Reporter.NewLine()
			}
			return ctx.Err()
		case now := <-ticker.C():
			m.Tick(ctx, now)
		}
	}
}

// Tick performs one atomic drain and emits the report.
func (m *Monitor) Tick(ctx context.Context, now time.Time) domain.DrainReport {
	rep := domain.DrainReport{
		At:    now,
		Count: m.deps.Drainer.DrainAndCount(),
	}
	if m.deps.Stats != nil {
		c := m.deps.Stats()
		rep.Active, rep.Closed, rep.Failed, rep.Total = c.Active, c.Closed, c.Failed, c.Total
	}

	if m.deps.Reporter != nil {
		if err := m.deps.Reporter.WriteReport(now, m.deps.Formatter.Render(rep)); err != nil {
			log.Warn().Err(err).Msg("write report failed")
		}
	}
	if m.deps.Recorder != nil {
		m.deps.Recorder.RecordDrain(ctx, rep)
	}

	log.Debug().
		Int("count", rep.Count).
		Int("active", rep.Active).
		Int("failed", rep.Failed).
		Msg("drained")
	return rep
}

// RecorderObserver turns session transitions into persisted events.
func RecorderObserver(rec ReportRecorder) StateObserver {
	return func(ctx context.Context, t Transition) {
		ev := domain.SessionEvent{
			ShardID: t.ShardID,
			From:    t.From.String(),
			To:      t.To.String(),
			At:      t.At,
		}
		if t.Cause != nil {
			ev.Cause = t.Cause.Error()
		}
		rec.RecordTransition(ctx, ev)
	}
}
