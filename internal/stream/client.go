package stream

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairs-sentinel/internal/metrics"
)

// ConnectionState represents the state of the websocket connection
// (for health checks and monitoring)
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ClientConfig holds the stream client parameters.
type ClientConfig struct {
	// URL is the websocket host, e.g. wss://stream.binance.com:9443
	URL         string
	Symbols     []string
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Client connects to the trade feed, decodes messages and offers validated
// ticks to the bounded queue. It owns reconnection: connection loss is
// recoverable and retried forever with exponential backoff plus jitter.
// Malformed messages are dropped and counted, never fatal.
type Client struct {
	cfg   ClientConfig
	queue *Queue

	known map[string]bool

	mu      sync.RWMutex
	state   ConnectionState
	conn    *websocket.Conn
	onState func(ConnectionState)

	malformed atomic.Int64
	received  atomic.Int64
}

func NewClient(cfg ClientConfig, queue *Queue) (*Client, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols to subscribe")
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}

	known := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		known[strings.ToUpper(s)] = true
	}

	return &Client{
		cfg:   cfg,
		queue: queue,
		known: known,
		state: Disconnected,
	}, nil
}

// OnStateChange registers a callback for connection-state transitions.
// Must be called before Start.
func (c *Client) OnStateChange(fn func(ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mu.Unlock()

	metrics.ConnectionState.Set(float64(s))
	if fn != nil {
		fn(s)
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns true if the websocket is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == Connected && c.conn != nil
}

// Malformed returns the count of dropped malformed messages.
func (c *Client) Malformed() int64 { return c.malformed.Load() }

// Received returns the count of valid ticks offered to the queue.
func (c *Client) Received() int64 { return c.received.Load() }

// streamURL builds the combined-stream endpoint for the subscribed symbols,
// e.g. wss://host/stream?streams=btcusdt@trade/ethusdt@trade
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid stream url %q: %w", c.cfg.URL, err)
	}
	u.Path = "/stream"

	parts := make([]string, 0, len(c.cfg.Symbols))
	for _, s := range c.cfg.Symbols {
		parts = append(parts, strings.ToLower(s)+"@trade")
	}
	// Set RawQuery directly: url.Values would escape the stream separators.
	u.RawQuery = "streams=" + strings.Join(parts, "/")
	return u.String(), nil
}

// Start runs the connect/reconnect loop until ctx is canceled.
func (c *Client) Start(ctx context.Context) {
	go func() {
		retryDelay := c.cfg.BackoffBase
		for {
			select {
			case <-ctx.Done():
				c.setState(Disconnected)
				return
			default:
			}

			if err := c.connectAndStream(ctx); err != nil {
				c.setState(Disconnected)
				if ctx.Err() != nil {
					return
				}
				// Full jitter on the current delay avoids reconnect stampedes.
				sleep := time.Duration(rand.Int63n(int64(retryDelay))) + retryDelay/2
				log.Printf("Stream | Disconnected, retrying in %v: %v", sleep, err)
				metrics.Reconnects.Inc()
				select {
				case <-time.After(sleep):
				case <-ctx.Done():
					return
				}
				if retryDelay < c.cfg.BackoffMax {
					retryDelay *= 2
				}
				if retryDelay > c.cfg.BackoffMax {
					retryDelay = c.cfg.BackoffMax
				}
				continue
			}
			// Clean exit (ctx canceled)
			c.setState(Disconnected)
			return
		}
	}()
}

// connectAndStream handles a single websocket connection session.
func (c *Client) connectAndStream(ctx context.Context) error {
	c.setState(Connecting)

	endpoint, err := c.streamURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(Connected)
	log.Printf("Stream | Connected to %s (%d symbols)", c.cfg.URL, len(c.cfg.Symbols))

	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		c.handleMessage(raw)
	}
}

// handleMessage decodes and validates one frame. Suspension only happens at
// the queue boundary, never inside decode logic, and the offer itself is
// non-blocking.
func (c *Client) handleMessage(raw []byte) {
	msg, err := decodeTrade(raw)
	if err != nil {
		c.malformed.Add(1)
		metrics.TicksMalformed.Inc()
		return
	}
	if msg == nil {
		// Not a trade event (subscription ack, ping payload, ...)
		return
	}

	t := msg.ToTick()
	if !c.known[t.Symbol] {
		c.malformed.Add(1)
		metrics.TicksMalformed.Inc()
		return
	}
	if err := t.Validate(); err != nil {
		c.malformed.Add(1)
		metrics.TicksMalformed.Inc()
		return
	}

	c.received.Add(1)
	metrics.TicksReceived.WithLabelValues(t.Symbol).Inc()
	if !c.queue.Offer(t) {
		metrics.QueueDrops.Inc()
	}
}
