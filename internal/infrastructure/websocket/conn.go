package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
)

// conn implements port.Channel over one gorilla connection.
type conn struct {
	ws   *websocket.Conn
	opts Options

	messages chan port.Frame
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, opts Options) *conn {
	c := &conn{
		ws:       ws,
		opts:     opts,
		messages: make(chan port.Frame, opts.BufferSize),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *conn) Send(data []byte) error {
	select {
	case <-c.done:
		return port.ErrChannelClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Messages() <-chan port.Frame { return c.messages }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a normal close frame and releases the socket. Safe to call
// more than once.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

// readLoop is the only reader. It blocks on a full queue instead of
// dropping, so frames reach the consumer in wire order.
func (c *conn) readLoop() {
	defer close(c.messages)

	for {
		if c.opts.ReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		}

		mt, data, err := c.ws.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.setErr(c.classify(err))
			return
		}
		if mt != websocket.TextMessage {
			log.Debug().Int("type", mt).Int("bytes", len(data)).Msg("ignoring non-text frame")
			continue
		}

		select {
		case c.messages <- port.Frame{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			c.setErr(port.ErrChannelClosed)
			return
		}
	}
}

func (c *conn) classify(err error) error {
	select {
	case <-c.done:
		return port.ErrChannelClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %v", port.ErrChannelClosed, err)
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("closed abnormally: %w", err)
	}
	return fmt.Errorf("read: %w", err)
}

func (c *conn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

var _ port.Channel = (*conn)(nil)
