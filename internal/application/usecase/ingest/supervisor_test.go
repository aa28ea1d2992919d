package ingest

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
	"github.com/tyura/websocket-clients/internal/infrastructure/aggregator"
)

func newChannelDialer() *fakeDialer {
	return &fakeDialer{next: func(int) (port.Channel, error) { return newFakeChannel(), nil }}
}

// channelFor finds the dialed channel subscribed to symbol.
func channelFor(t *testing.T, d *fakeDialer, symbol string) *fakeChannel {
	t.Helper()
	var found *fakeChannel
	waitFor(t, "subscription for "+symbol, func() bool {
		for _, ch := range d.dialed() {
			fc := ch.(*fakeChannel)
			sub, ok := fc.subscription()
			if !ok {
				continue
			}
			for _, p := range sub.Params {
				if strings.HasSuffix(p, "@"+symbol) {
					found = fc
					return true
				}
			}
		}
		return false
	})
	return found
}

func TestSupervisorEndToEnd(t *testing.T) {
	shards, err := domain.Partition([]string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}, 2)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(shards))
	}

	buf := aggregator.New(0, aggregator.PolicyBlock)
	dialer := newChannelDialer()
	sup := NewSupervisor(SupervisorDeps{
		Shards:         shards,
		Session:        testSessionConfig(),
		Dialer:         dialer,
		Sink:           buf,
		SessionOptions: []SessionOption{WithTickerFactory(func(time.Duration) Ticker { return newManualTicker() })},
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	first := channelFor(t, dialer, "BTCUSDT")
	second := channelFor(t, dialer, "BNBUSDT")
	if first == second {
		t.Fatal("shards share a channel")
	}

	sub, _ := first.subscription()
	want := []string{"spot@public.deals.v3.api@BTCUSDT", "spot@public.deals.v3.api@ETHUSDT"}
	if !reflect.DeepEqual(sub.Params, want) {
		t.Errorf("session 1 params: expected %v, got %v", want, sub.Params)
	}
	sub2, _ := second.subscription()
	if !reflect.DeepEqual(sub2.Params, []string{"spot@public.deals.v3.api@BNBUSDT"}) {
		t.Errorf("session 2 params: got %v", sub2.Params)
	}

	waitFor(t, "both active", func() bool { return sup.Stats().Active == 2 })

	first.push(`{"price":"100"}`)
	waitFor(t, "message buffered", func() bool { return buf.Len() == 1 })

	batch := buf.Drain()
	if len(batch) != 1 {
		t.Fatalf("expected 1 drained message, got %d", len(batch))
	}
	obj, ok := batch[0].Value.(map[string]any)
	if !ok || obj["price"] != "100" || batch[0].ShardID != 1 {
		t.Errorf("unexpected drained message: %+v", batch[0])
	}

	first.push(`{"price":"100"}`)
	waitFor(t, "message buffered", func() bool { return buf.Len() == 1 })
	if n := buf.DrainAndCount(); n != 1 {
		t.Errorf("expected DrainAndCount 1, got %d", n)
	}

	cancel()
	sup.Wait()

	if c := sup.Stats(); c.Closed != 2 || c.Total != 2 {
		t.Errorf("expected both sessions closed, got %+v", c)
	}
}

func TestSupervisorIsolatesConnectFailure(t *testing.T) {
	shards, _ := domain.Partition([]string{"BTCUSDT", "ETHUSDT"}, 1)

	var mu sync.Mutex
	failed := false
	dialer := &fakeDialer{next: func(int) (port.Channel, error) {
		mu.Lock()
		defer mu.Unlock()
		if !failed {
			failed = true
			return nil, errors.New("connection refused")
		}
		return newFakeChannel(), nil
	}}

	sup := NewSupervisor(SupervisorDeps{
		Shards:         shards,
		Session:        testSessionConfig(),
		Dialer:         dialer,
		Sink:           &recordingSink{},
		SessionOptions: []SessionOption{WithTickerFactory(func(time.Duration) Ticker { return newManualTicker() })},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case f := <-sup.Failures():
		var cerr *domain.ConnectError
		if !errors.As(f.Err, &cerr) {
			t.Errorf("expected ConnectError, got %v", f.Err)
		}
		if len(f.Symbols) != 1 {
			t.Errorf("expected failing shard symbols, got %v", f.Symbols)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no failure reported")
	}

	waitFor(t, "survivor active", func() bool { return sup.Stats().Active == 1 })
	if c := sup.Stats(); c.Failed != 1 {
		t.Errorf("expected 1 failed, got %+v", c)
	}

	cancel()
	sup.Wait()

	// channel closes once every session has ended
	select {
	case _, ok := <-sup.Failures():
		if ok {
			t.Errorf("unexpected second failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failures channel not closed")
	}
}

type panicDialer struct {
	inner *fakeDialer
	once  sync.Once
}

func (p *panicDialer) Dial(ctx context.Context, url string) (port.Channel, error) {
	first := false
	p.once.Do(func() { first = true })
	if first {
		panic("dialer exploded")
	}
	return p.inner.Dial(ctx, url)
}

func TestSupervisorRecoversPanic(t *testing.T) {
	shards, _ := domain.Partition([]string{"BTCUSDT", "ETHUSDT"}, 1)
	sup := NewSupervisor(SupervisorDeps{
		Shards:         shards,
		Session:        testSessionConfig(),
		Dialer:         &panicDialer{inner: newChannelDialer()},
		Sink:           &recordingSink{},
		SessionOptions: []SessionOption{WithTickerFactory(func(time.Duration) Ticker { return newManualTicker() })},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = sup.Start(ctx)

	select {
	case f := <-sup.Failures():
		if !strings.Contains(f.Err.Error(), "panic") {
			t.Errorf("expected panic failure, got %v", f.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic not reported")
	}

	waitFor(t, "survivor active", func() bool { return sup.Stats().Active == 1 })
	if c := sup.Stats(); c.Failed != 1 {
		t.Errorf("panicked session should be Failed, got %+v", c)
	}
}

func TestSupervisorStartTwice(t *testing.T) {
	sup := NewSupervisor(SupervisorDeps{Dialer: newChannelDialer(), Sink: &recordingSink{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sup.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSupervisorRunReturnsOnShutdown(t *testing.T) {
	shards, _ := domain.Partition([]string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}, 2)
	sup := NewSupervisor(SupervisorDeps{
		Shards:  shards,
		Session: testSessionConfig(),
		Dialer:  failingDialer(errors.New("no route to host")),
		Sink:    &recordingSink{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitFor(t, "all failed", func() bool { return sup.Stats().Failed == 2 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil from Run, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSupervisorStartsMonitor(t *testing.T) {
	shards, _ := domain.Partition([]string{"BTCUSDT"}, 15)
	buf := aggregator.New(0, aggregator.PolicyBlock)
	dialer := newChannelDialer()
	reporter := &fakeReporter{}
	monTicker := newManualTicker()

	sup := NewSupervisor(SupervisorDeps{
		Shards:  shards,
		Session: testSessionConfig(),
		Dialer:  dialer,
		Sink:    buf,
		Monitor: MonitorDeps{
			Drainer:   buf,
			Reporter:  reporter,
			NewTicker: monTicker.factory(),
		},
		SessionOptions: []SessionOption{WithTickerFactory(func(time.Duration) Ticker { return newManualTicker() })},
	})
	if sup.Monitor() == nil {
		t.Fatal("monitor not created")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = sup.Start(ctx)

	ch := channelFor(t, dialer, "BTCUSDT")
	waitFor(t, "active", func() bool { return sup.Stats().Active == 1 })
	ch.push(`{"p":1}`)
	ch.push(`{"p":2}`)
	waitFor(t, "buffered", func() bool { return buf.Len() == 2 })

	monTicker.tick(t)
	waitFor(t, "report", func() bool { return len(reporter.lines()) == 1 })

	line := reporter.lines()[0]
	if !strings.Contains(line, "Number of messages: 2") || !strings.Contains(line, "sessions 1/1 active") {
		t.Errorf("unexpected report line %q", line)
	}
	if buf.Len() != 0 {
		t.Errorf("monitor did not drain, %d left", buf.Len())
	}
}
