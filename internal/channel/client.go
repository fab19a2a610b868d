// Package channel maintains the push connection that delivers download
// progress events for one client identity.
//
// A single websocket serves all of the client's concurrent downloads: the
// identity is part of the channel address, not a per-message field. The
// connection is resilient within bounds: closes trigger reconnects with
// exponential backoff until the retry budget is spent, after which the
// client is terminally closed until a fresh session constructs a new one.
package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/logger"
	"github.com/zeticontents/zetisync/internal/progress"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is the subset of *websocket.Conn the client reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens push connections. Swapped for a fake in tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler schedules reconnect attempts. Swapped for a manual fake in
// tests so backoff is observable without real timers.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config configures a channel client. Zero fields get defaults: gorilla
// dialer, real timers, 3 retries, 1s initial delay.
type Config struct {
	URL          string
	MaxRetries   int
	InitialDelay time.Duration
	Dialer       Dialer
	Scheduler    Scheduler
}

// Client owns the push connection for one client identity and forwards
// parsed events to the progress store.
type Client struct {
	cfg   Config
	store *progress.Store
	log   *logger.Logger
	boff  *backoff.ExponentialBackOff

	mu      sync.Mutex
	state   State
	conn    Conn
	retries int
	timer   Timer
	stopped bool
}

func NewClient(cfg Config, store *progress.Store, log *logger.Logger) *Client {
	if cfg.Dialer == nil {
		cfg.Dialer = wsDialer{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = clockScheduler{}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = time.Second
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = cfg.InitialDelay
	boff.Multiplier = 2
	boff.RandomizationFactor = 0
	boff.MaxInterval = 5 * time.Minute
	boff.MaxElapsedTime = 0
	boff.Reset()

	return &Client{
		cfg:   cfg,
		store: store,
		log:   log.WithComponent("channel"),
		boff:  boff,
	}
}

// Connect starts the connection attempt. It returns immediately; all
// progress arrives through the store.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.stopped || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial()
}

// Stop marks the client unmounted: the active socket is closed and any
// pending reconnect timer is cancelled. Stop is the only thing that cancels
// a scheduled reconnect; a pending timer otherwise always fires.
func (c *Client) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.state = StateClosed
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) dial() {
	conn, err := c.cfg.Dialer.Dial(context.Background(), c.cfg.URL)
	if err != nil {
		c.log.Warn("connection attempt failed", "url", c.cfg.URL, "error", err)
		c.handleClose()
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.retries = 0
	c.boff.Reset()
	c.mu.Unlock()

	c.log.Info("channel connected", "url", c.cfg.URL)
	go c.readLoop(conn)
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Transport errors force closure; the close path is the single
			// owner of reconnect decisions.
			conn.Close()
			c.handleClose()
			return
		}

		var ev domain.ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("dropping malformed frame", "error", err)
			continue
		}
		if ev.JobID == "" {
			c.log.Warn("dropping frame without job_id")
			continue
		}

		c.store.Upsert(ev)
	}
}

func (c *Client) handleClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = nil
	if c.stopped {
		c.state = StateClosed
		return
	}

	if c.retries >= c.cfg.MaxRetries {
		c.state = StateClosed
		c.log.Warn("reconnect budget exhausted, channel closed", "retries", c.retries)
		return
	}

	c.retries++
	delay := c.boff.NextBackOff()
	c.state = StateDisconnected
	c.log.Info("scheduling reconnect", "attempt", c.retries, "delay", delay)
	c.timer = c.cfg.Scheduler.AfterFunc(delay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.stopped || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.timer = nil
	c.mu.Unlock()

	c.dial()
}
