package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

var ErrAlreadyStarted = errors.New("supervisor already started")

// SessionFailure reports a session that ended Failed.
type SessionFailure struct {
	ShardID int
	Symbols []string
	Err     error
}

type SupervisorDeps struct {
	Shards   []domain.Shard
	Session  SessionConfig
	Dialer   port.Dialer
	Sink     port.Sink
	Observer StateObserver

	// Monitor is started alongside the sessions when Monitor.Drainer is set.
	Monitor MonitorDeps

	SessionOptions []SessionOption
}

// Supervisor runs one session per shard plus the monitor. Sessions are
// independent: a failure or panic in one never affects the others.
type Supervisor struct {
	deps     SupervisorDeps
	sessions []*Session
	monitor  *Monitor

	failures  chan SessionFailure
	sessionWG sync.WaitGroup
	monitorWG sync.WaitGroup
	started   atomic.Bool
}

func NewSupervisor(deps SupervisorDeps) *Supervisor {
	s := &Supervisor{
		deps:     deps,
		sessions: make([]*Session, 0, len(deps.Shards)),
		// every session reports at most once, so sends never block
		failures: make(chan SessionFailure, len(deps.Shards)),
	}

	opts := make([]SessionOption, 0, len(deps.SessionOptions)+1)
	if deps.Observer != nil {
		opts = append(opts, WithStateObserver(deps.Observer))
	}
	opts = append(opts, deps.SessionOptions...)

	for _, shard := range deps.Shards {
		s.sessions = append(s.sessions, NewSession(shard, deps.Session, deps.Dialer, deps.Sink, opts...))
	}

	if deps.Monitor.Drainer != nil {
		mdeps := deps.Monitor
		if mdeps.Stats == nil {
			mdeps.Stats = s.Stats
		}
		s.monitor = NewMonitor(mdeps)
	}
	return s
}

// Start launches every session and the monitor and returns immediately.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	for _, sess := range s.sessions {
		s.sessionWG.Add(1)
		go s.runSession(ctx, sess)
	}
	go func() {
		s.sessionWG.Wait()
		close(s.failures)
	}()

	if s.monitor != nil {
		s.monitorWG.Add(1)
		go func() {
			defer s.monitorWG.Done()
			_ = s.monitor.Run(ctx)
		}()
	}

	log.Info().Int("sessions", len(s.sessions)).Bool("monitor", s.monitor != nil).Msg("supervisor started")
	return nil
}

func (s *Supervisor) runSession(ctx context.Context, sess *Session) {
	defer s.sessionWG.Done()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("shard %d: panic: %v", sess.Shard().ID, r)
			sess.markPanicked(ctx, err)
			s.report(sess, err)
		}
	}()

	if err := sess.Run(ctx); err != nil {
		s.report(sess, err)
	}
}

func (s *Supervisor) report(sess *Session, err error) {
	sh := sess.Shard()
	s.failures <- SessionFailure{ShardID: sh.ID, Symbols: sh.Symbols, Err: err}
}

// Failures delivers one entry per failed session. It is closed once every
// session has ended.
func (s *Supervisor) Failures() <-chan SessionFailure { return s.failures }

// Wait blocks until every session and the monitor have returned.
func (s *Supervisor) Wait() {
	s.sessionWG.Wait()
	s.monitorWG.Wait()
}

// Run starts everything, logs failures as they arrive and returns after ctx
// is cancelled and all goroutines have exited.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	failures := s.Failures()
	for {
		select {
		case <-ctx.Done():
			s.Wait()
			if failures != nil {
				for f := range failures {
					s.logFailure(f)
				}
			}
			return nil
		case f, ok := <-failures:
			if !ok {
				failures = nil
				log.Warn().Msg("all sessions ended")
				continue
			}
			s.logFailure(f)
		}
	}
}

func (s *Supervisor) logFailure(f SessionFailure) {
	log.Error().Int("shard", f.ShardID).Strs("symbols", f.Symbols).Err(f.Err).Msg("session failed")
}

func (s *Supervisor) Sessions() []*Session { return s.sessions }

func (s *Supervisor) Monitor() *Monitor { return s.monitor }

// Stats counts sessions per state.
func (s *Supervisor) Stats() Counts {
	c := Counts{Total: len(s.sessions)}
	for _, sess := range s.sessions {
		switch sess.State() {
		case StateActive:
			c.Active++
		case StateClosed:
			c.Closed++
		case StateFailed:
			c.Failed++
		default:
			c.Pending++
		}
	}
	return c
}
