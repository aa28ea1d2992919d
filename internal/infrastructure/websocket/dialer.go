package websocket

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
)

// Options tunes the gorilla transport.
type Options struct {
	HandshakeTimeout  time.Duration // TCP+TLS+upgrade
	WriteTimeout      time.Duration // per Send
	ReadTimeout       time.Duration // 0 = no read deadline
	EnableCompression bool          // permessage-deflate
	BufferSize        int           // inbound frame queue
	Header            http.Header
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// Dialer opens gorilla websocket channels. TLS uses the system roots with
// normal certificate verification.
type Dialer struct {
	opts   Options
	dialer *websocket.Dialer
}

func NewDialer(opts Options) *Dialer {
	def := DefaultOptions()
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}

	nd := &net.Dialer{
		Timeout:   opts.HandshakeTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &Dialer{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			NetDialContext:    nd.DialContext,
			HandshakeTimeout:  opts.HandshakeTimeout,
			EnableCompression: opts.EnableCompression,
		},
	}
}

// Dial connects and completes the HTTP upgrade. The returned channel is
// already reading.
func (d *Dialer) Dial(ctx context.Context, url string) (port.Channel, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, d.opts.Header)
	if err != nil {
		if resp != nil {
			log.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("ws upgrade rejected")
		}
		return nil, err
	}
	return newConn(ws, d.opts), nil
}

var _ port.Dialer = (*Dialer)(nil)
