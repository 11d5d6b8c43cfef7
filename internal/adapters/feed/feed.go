// Package feed consumes the simulation source over a WebSocket push
// channel: one scenario bootstrap, then frames and lifecycle signals. The
// client owns connection retry; the engine itself never retries transport
// failures, it only surfaces them.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
	"github.com/okian/precinct/pkg/metrics"
)

const component = "feed"

// Envelope message types on the feed channel.
const (
	TypeScenario  = "scenario"
	TypeFrame     = "frame"
	TypeReady     = "ready"
	TypeCompleted = "completed"
	TypeError     = "error"
)

// Default client configuration constants.
const (
	defaultMinBackoff  = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
	defaultDialTimeout = 10 * time.Second
)

// Envelope is one message on the feed channel. Exactly one payload field is
// set, selected by Type. The simulation source emits the same shape.
type Envelope struct {
	Type     string          `json:"type"`
	Scenario *model.Scenario `json:"scenario,omitempty"`
	Frame    *model.Frame    `json:"frame,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Sink receives decoded feed traffic. The engine facade implements this.
type Sink interface {
	// LoadScenario installs a new scenario, replacing all prior state.
	LoadScenario(ctx context.Context, sc model.Scenario) error

	// IngestFrame buffers one frame. Arrival never triggers a replay.
	IngestFrame(ctx context.Context, f model.Frame)

	// SourceReady signals the buffer can support arbitrary seeking.
	SourceReady(ctx context.Context)

	// SourceCompleted signals the source has delivered every frame.
	SourceCompleted(ctx context.Context)

	// SourceFailed surfaces a transport failure to the timeline.
	SourceFailed(ctx context.Context, err error)
}

// Client maintains the connection to the simulation source.
type Client struct {
	url  string
	sink Sink

	minBackoff  time.Duration
	maxBackoff  time.Duration
	dialTimeout time.Duration
	dialer      *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	done   chan struct{}
	logger logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBackoff bounds the reconnect backoff range.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		if min > 0 && max >= min {
			c.minBackoff = min
			c.maxBackoff = max
		}
	}
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a feed client for the given WebSocket URL.
func NewClient(url string, sink Sink, opts ...Option) *Client {
	c := &Client{
		url:         url,
		sink:        sink,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		dialTimeout: defaultDialTimeout,
		done:        make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named(component)
	}
	c.dialer = &websocket.Dialer{HandshakeTimeout: c.dialTimeout}

	return c
}

// Run connects and pumps messages until ctx is canceled or Close is called.
// Connection loss surfaces to the sink as a failure, then the client backs
// off and reconnects; the source re-bootstraps on a fresh connection.
func (c *Client) Run(ctx context.Context) {
	defer close(c.done)

	backoff := c.minBackoff
	for {
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			metrics.UpdateFeedConnected(false)
			c.logger.Warn(ctx, "feed dial failed",
				logger.String("url", c.url), logger.Error(err))
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.maxBackoff)
			continue
		}
		backoff = c.minBackoff
		c.setConn(conn)
		metrics.UpdateFeedConnected(true)
		c.logger.Info(ctx, "feed connected", logger.String("url", c.url))

		err = c.pump(ctx, conn)
		c.setConn(nil)
		metrics.UpdateFeedConnected(false)
		if c.isClosed() || ctx.Err() != nil {
			return
		}
		if err != nil {
			c.sink.SourceFailed(ctx, fmt.Errorf("%w: %w", ErrTransport, err))
			metrics.RecordFeedReconnect()
			c.logger.Warn(ctx, "feed connection lost; reconnecting", logger.Error(err))
		}
		if !c.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.maxBackoff)
	}
}

// Close tears down the connection and stops the reconnect loop.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

// Done is closed when the run loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// pump reads envelopes off one connection until it fails or closes cleanly.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := c.dispatch(ctx, data); err != nil {
			// Malformed payloads are transport errors per the taxonomy, but
			// one bad message should not tear the connection down.
			metrics.RecordFrameDecodeError()
			metrics.RecordErrorByComponent(component, "decode")
			c.logger.Warn(ctx, "dropping malformed feed message", logger.Error(err))
		}
	}
}

// dispatch decodes one envelope and routes it to the sink.
func (c *Client) dispatch(ctx context.Context, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	switch env.Type {
	case TypeScenario:
		if env.Scenario == nil {
			return fmt.Errorf("%w: scenario envelope without payload", ErrMalformedPayload)
		}
		if err := c.sink.LoadScenario(ctx, *env.Scenario); err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
	case TypeFrame:
		if env.Frame == nil {
			return fmt.Errorf("%w: frame envelope without payload", ErrMalformedPayload)
		}
		c.sink.IngestFrame(ctx, *env.Frame)
	case TypeReady:
		c.sink.SourceReady(ctx)
	case TypeCompleted:
		c.sink.SourceCompleted(ctx)
	case TypeError:
		c.sink.SourceFailed(ctx, fmt.Errorf("%w: %s", ErrTransport, env.Message))
	default:
		return fmt.Errorf("%w: unknown envelope type %q", ErrMalformedPayload, env.Type)
	}
	return nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sleep waits for the backoff period, aborting early on cancellation.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return !c.isClosed()
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
