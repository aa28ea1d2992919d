package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

// SessionConfig holds per-session protocol settings.
type SessionConfig struct {
	URL            string
	ChannelPrefix  string
	PingInterval   time.Duration
	ConnectTimeout time.Duration // dial + handshake; 0 = bounded only by ctx
	LogMessages    bool          // debug-log every decoded message
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithStateObserver registers a transition callback.
func WithStateObserver(obs StateObserver) SessionOption {
	return func(s *Session) { s.observer = obs }
}

// WithTickerFactory replaces the keep-alive ticker source.
func WithTickerFactory(f TickerFactory) SessionOption {
	return func(s *Session) { s.newTicker = f }
}

// SessionStats is a snapshot of a session's counters.
type SessionStats struct {
	ShardID      int
	State        SessionState
	Received     int64
	DecodeErrors int64
	Dropped      int64
	Pings        int64
}

// Session owns one channel subscribed to one shard's symbols.
type Session struct {
	shard     domain.Shard
	cfg       SessionConfig
	dialer    port.Dialer
	sink      port.Sink
	observer  StateObserver
	newTicker TickerFactory
	logger    zerolog.Logger

	mu    sync.Mutex
	state SessionState
	err   error

	received     atomic.Int64
	decodeErrors atomic.Int64
	dropped      atomic.Int64
	pings        atomic.Int64
}

func NewSession(shard domain.Shard, cfg SessionConfig, dialer port.Dialer, sink port.Sink, opts ...SessionOption) *Session {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 3 * time.Second
	}
	s := &Session{
		shard:     shard,
		cfg:       cfg,
		dialer:    dialer,
		sink:      sink,
		newTicker: NewTicker,
		state:     StateConnecting,
		logger: log.With().
			Int("shard", shard.ID).
			Int("symbols", len(shard.Symbols)).
			Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Shard() domain.Shard { return s.shard }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Stats() SessionStats {
	return SessionStats{
		ShardID:      s.shard.ID,
		State:        s.State(),
		Received:     s.received.Load(),
		DecodeErrors: s.decodeErrors.Load(),
		Dropped:      s.dropped.Load(),
		Pings:        s.pings.Load(),
	}
}

// Run drives the session until it closes or fails. It returns nil when the
// session ends Closed, and the failure (ConnectError or TransportError)
// when it ends Failed. Run must be called once.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info().Strs("list", s.shard.Symbols).Str("url", s.cfg.URL).Msg("ws connecting")

	ch, err := s.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.transition(ctx, StateClosed, ctx.Err(), true)
			return nil
		}
		return s.fail(ctx, err)
	}
	defer ch.Close()

	s.transition(ctx, StateSubscribing, nil, false)
	sub, _ := json.Marshal(NewSubscription(s.cfg.ChannelPrefix, s.shard.Symbols))
	if err := ch.Send(sub); err != nil {
		return s.fail(ctx, &domain.TransportError{ShardID: s.shard.ID, Op: "subscribe", Err: err})
	}
	s.logger.Info().Msg("ws connected & subscribed")

	s.transition(ctx, StateActive, nil, false)
	return s.loop(ctx, ch)
}

// connect dials and, for channels with a separate handshake step, performs
// it. Both are bounded by ConnectTimeout.
func (s *Session) connect(ctx context.Context) (port.Channel, error) {
	cctx := ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	ch, err := s.dialer.Dial(cctx, s.cfg.URL)
	if err != nil {
		return nil, &domain.ConnectError{ShardID: s.shard.ID, URL: s.cfg.URL, Err: err}
	}

	if hs, ok := ch.(port.Handshaker); ok {
		s.transition(ctx, StateHandshaking, nil, false)
		if err := hs.Handshake(cctx); err != nil {
			_ = ch.Close()
			return nil, &domain.ConnectError{ShardID: s.shard.ID, URL: s.cfg.URL, Err: err}
		}
	}
	return ch, nil
}

func (s *Session) loop(ctx context.Context, ch port.Channel) error {
	ticker := s.newTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	ping := encodePing()
	// fixed-rate schedule starting at zero delay
	if err := s.sendPing(ch, ping); err != nil {
		return s.fail(ctx, err)
	}

	frames := ch.Messages()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("ws closing on shutdown")
			s.transition(ctx, StateClosed, ctx.Err(), true)
			return nil

		case <-ticker.C():
			if err := s.sendPing(ch, ping); err != nil {
				return s.fail(ctx, err)
			}

		case f, ok := <-frames:
			if !ok {
				cause := ch.Err()
				if cause == nil || errors.Is(cause, port.ErrChannelClosed) {
					s.logger.Info().Err(cause).Msg("ws closed")
					s.transition(ctx, StateClosed, cause, false)
					return nil
				}
				return s.fail(ctx, &domain.TransportError{ShardID: s.shard.ID, Op: "read", Err: cause})
			}
			if err := s.handle(ctx, f); err != nil {
				// only a cancelled context stops a blocked append
				s.transition(ctx, StateClosed, err, true)
				return nil
			}
		}
	}
}

func (s *Session) sendPing(ch port.Channel, ping []byte) error {
	if err := ch.Send(ping); err != nil {
		return &domain.TransportError{ShardID: s.shard.ID, Op: "ping", Err: err}
	}
	s.pings.Add(1)
	return nil
}

// handle decodes one frame and appends it. Decode errors and drops are
// absorbed here; only a context error is returned.
func (s *Session) handle(ctx context.Context, f port.Frame) error {
	var v any
	if err := json.Unmarshal(f.Data, &v); err != nil {
		derr := &domain.DecodeError{ShardID: s.shard.ID, Frame: f.Data, Err: err}
		s.decodeErrors.Add(1)
		s.logger.Warn().Err(derr).Msg("json unmarshal failed")
		return nil
	}

	at := f.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	msg := domain.Message{
		ShardID:    s.shard.ID,
		ReceivedAt: at,
		Raw:        json.RawMessage(f.Data),
		Value:      v,
	}

	if err := s.sink.Append(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.dropped.Add(1)
		s.logger.Debug().Err(err).Msg("message dropped")
		return nil
	}
	s.received.Add(1)

	if s.cfg.LogMessages {
		s.logger.Debug().RawJSON("msg", f.Data).Msg("new message")
	}
	return nil
}

func (s *Session) fail(ctx context.Context, err error) error {
	s.logger.Error().Err(err).Msg("session failed")
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.transition(ctx, StateFailed, err, false)
	return err
}

// transition moves to a new state if the state machine allows it and
// notifies the observer. Disallowed moves are ignored.
func (s *Session) transition(ctx context.Context, to SessionState, cause error, shutdown bool) {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to, shutdown) {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state")

	if s.observer != nil {
		s.observer(ctx, Transition{
			ShardID: s.shard.ID,
			From:    from,
			To:      to,
			Cause:   cause,
			At:      time.Now(),
		})
	}
}

// markPanicked forces Failed after a recovered panic.
func (s *Session) markPanicked(ctx context.Context, err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.transition(ctx, StateFailed, err, false)
}
