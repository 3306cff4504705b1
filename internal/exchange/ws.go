// ws.go implements the per-venue WebSocket connection.
//
// One Client owns one connection to one venue. It handles dialing with a
// connect timeout, subscription replay on every (re)connect, keepalive
// pings, exponential-backoff reconnects, and a circuit breaker that
// opens after repeated connect failures. Raw frames and lifecycle
// transitions are emitted on a bounded channel; the client never parses
// application payloads.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"arb-scanner/internal/metrics"
	"arb-scanner/pkg/types"
)

const frameBufferSize = 1000 // client → runner channel capacity

// subscribeSpacing is the pause between consecutive subscribe messages,
// required by venues that rate-limit subscription bursts.
const subscribeSpacing = 50 * time.Millisecond

// VenueConfig is everything the client needs to maintain one connection.
type VenueConfig struct {
	Venue                types.Venue
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration
	ConnectTimeout       time.Duration
	BreakerCooldown      time.Duration
	SubscribeMessages    []string
}

// DefaultVenueConfig returns the timing defaults shared by all venues.
func DefaultVenueConfig(venue types.Venue, url string) VenueConfig {
	return VenueConfig{
		Venue:                venue,
		URL:                  url,
		ReconnectDelay:       time.Second,
		MaxReconnectAttempts: 5,
		PingInterval:         30 * time.Second,
		ConnectTimeout:       10 * time.Second,
		BreakerCooldown:      60 * time.Second,
	}
}

// Client maintains a single venue WebSocket connection.
type Client struct {
	cfg    VenueConfig
	out    chan types.WsFrame
	logger *slog.Logger

	breaker *gobreaker.CircuitBreaker

	conn   *websocket.Conn
	connMu sync.Mutex // serializes writes (ping ticker vs pong replies)

	everConnected bool
}

// NewClient creates a client for one venue connection.
func NewClient(cfg VenueConfig, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		out:    make(chan types.WsFrame, frameBufferSize),
		logger: logger.With("component", "ws", "venue", cfg.Venue.String()),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Venue.String(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.MaxReconnectAttempts
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.emit(types.WsFrame{Kind: types.FrameBreakerOpen, Cooldown: cfg.BreakerCooldown})
			}
		},
	})

	return c
}

// Frames returns the channel frames are delivered on.
func (c *Client) Frames() <-chan types.WsFrame { return c.out }

// Run dials and maintains the connection until ctx is cancelled or the
// venue sends a close frame. Reconnect attempts back off exponentially;
// once MaxReconnectAttempts consecutive dials fail, the breaker opens
// and no further attempt is made until the cooldown elapses.
func (c *Client) Run(ctx context.Context) {
	defer close(c.out)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.dialAndSubscribe(ctx)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState {
				// Breaker event already emitted on transition; wait out
				// the cooldown before the half-open probe.
				if !sleepCtx(ctx, c.cfg.BreakerCooldown) {
					return
				}
				attempt = 0
				continue
			}

			attempt++
			c.emit(types.WsFrame{Kind: types.FrameError, Err: err.Error()})
			delay := c.backoff(attempt)
			c.logger.Warn("connect failed", "error", err, "attempt", attempt, "backoff", delay)
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		// Dial succeeded; the breaker saw a success and reset its counts.
		attempt = 0
		if c.everConnected {
			c.emit(types.WsFrame{Kind: types.FrameReconnected})
		} else {
			c.everConnected = true
			c.emit(types.WsFrame{Kind: types.FrameConnected})
		}
		c.logger.Info("connected")

		clean := c.readLoop(ctx)
		c.closeConn()
		if ctx.Err() != nil {
			return
		}
		if clean {
			// Venue closed the stream deliberately; no reconnect.
			c.logger.Info("closed by venue")
			return
		}

		c.emit(types.WsFrame{Kind: types.FrameDisconnected})
		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			return
		}
	}
}

// backoff computes the reconnect delay: base * 2^min(attempt, 5).
func (c *Client) backoff(attempt int) time.Duration {
	shift := attempt
	if shift > 5 {
		shift = 5
	}
	return c.cfg.ReconnectDelay * time.Duration(1<<shift)
}

// dialAndSubscribe opens the connection and replays all subscription
// messages in order. Only this phase is guarded by the circuit breaker.
func (c *Client) dialAndSubscribe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	// Answer venue pings with pongs through the serialized writer.
	conn.SetPingHandler(func(data string) error {
		return c.write(websocket.PongMessage, []byte(data))
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	for i, msg := range c.cfg.SubscribeMessages {
		if err := c.write(websocket.TextMessage, []byte(msg)); err != nil {
			c.closeConn()
			return fmt.Errorf("subscribe: %w", err)
		}
		if i < len(c.cfg.SubscribeMessages)-1 {
			if !sleepCtx(ctx, subscribeSpacing) {
				c.closeConn()
				return ctx.Err()
			}
		}
	}

	return nil
}

// readLoop pumps frames until the connection drops. Returns true when the
// venue sent a clean close frame.
func (c *Client) readLoop(ctx context.Context) bool {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return false
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return false
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
		}

		switch msgType {
		case websocket.TextMessage:
			c.emit(types.TextFrame(string(data)))
		case websocket.BinaryMessage:
			c.emit(types.BinaryFrame(data))
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msgType int, data []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(msgType, data)
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// emit delivers a frame without ever blocking the socket reader. On a
// full channel the newest frame is dropped and counted.
func (c *Client) emit(f types.WsFrame) {
	select {
	case c.out <- f:
	default:
		metrics.FramesDropped.WithLabelValues(c.cfg.Venue.String()).Inc()
		c.logger.Warn("frame channel full, dropping", "kind", f.Kind)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
