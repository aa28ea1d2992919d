package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

// fakeChannel is a scripted port.Channel.
type fakeChannel struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	err     error
	closed  bool

	frames    chan port.Frame
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{frames: make(chan port.Frame, 16)}
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Messages() <-chan port.Frame { return c.frames }

func (c *fakeChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) setSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *fakeChannel) push(data string) {
	c.frames <- port.Frame{Data: []byte(data), ReceivedAt: time.Now()}
}

// finish ends the inbound stream with err as the close reason.
func (c *fakeChannel) finish(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.frames)
	})
}

func (c *fakeChannel) sentMessages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// subscription returns the first sent message decoded, if any.
func (c *fakeChannel) subscription() (SubscriptionMessage, bool) {
	sent := c.sentMessages()
	if len(sent) == 0 {
		return SubscriptionMessage{}, false
	}
	var sub SubscriptionMessage
	if err := json.Unmarshal(sent[0], &sub); err != nil || sub.Method != MethodSubscription {
		return SubscriptionMessage{}, false
	}
	return sub, true
}

func (c *fakeChannel) pingCount() int {
	n := 0
	for _, m := range c.sentMessages() {
		if string(m) == `{"method":"PING"}` {
			n++
		}
	}
	return n
}

type handshakeChannel struct {
	*fakeChannel
	hsErr error
}

func (h *handshakeChannel) Handshake(ctx context.Context) error { return h.hsErr }

// fakeDialer hands out channels from next; a nil next blocks until ctx is done.
type fakeDialer struct {
	mu       sync.Mutex
	next     func(n int) (port.Channel, error)
	channels []port.Channel
	urls     []string
}

func dialerFor(ch port.Channel) *fakeDialer {
	return &fakeDialer{next: func(int) (port.Channel, error) { return ch, nil }}
}

func failingDialer(err error) *fakeDialer {
	return &fakeDialer{next: func(int) (port.Channel, error) { return nil, err }}
}

func blockingDialer() *fakeDialer {
	return &fakeDialer{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (port.Channel, error) {
	d.mu.Lock()
	n := len(d.urls)
	d.urls = append(d.urls, url)
	mk := d.next
	d.mu.Unlock()

	if mk == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ch, err := mk(n)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.channels = append(d.channels, ch)
	d.mu.Unlock()
	return ch, nil
}

func (d *fakeDialer) dialed() []port.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]port.Channel, len(d.channels))
	copy(out, d.channels)
	return out
}

// manualTicker fires only when tick is called.
type manualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.c }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// tick blocks until the consumer receives it.
func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.c <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("ticker not consumed")
	}
}

func (m *manualTicker) factory() TickerFactory {
	return func(time.Duration) Ticker { return m }
}

// recordingSink is a minimal port.Sink.
type recordingSink struct {
	mu   sync.Mutex
	msgs []domain.Message
	err  error
}

func (s *recordingSink) Append(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSink) messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// transitionLog records observer callbacks.
type transitionLog struct {
	mu  sync.Mutex
	all []Transition
}

func (l *transitionLog) observe(ctx context.Context, tr Transition) {
	l.mu.Lock()
	l.all = append(l.all, tr)
	l.mu.Unlock()
}

func (l *transitionLog) path(shardID int) []SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []SessionState
	for _, tr := range l.all {
		if tr.ShardID == shardID {
			if len(out) == 0 {
				out = append(out, tr.From)
			}
			out = append(out, tr.To)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		URL:            "wss://example.test/ws",
		ChannelPrefix:  DefaultChannelPrefix,
		PingInterval:   3 * time.Second,
		ConnectTimeout: time.Second,
	}
}
