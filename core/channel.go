package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lisuiheng/opsfeed/pkg/interfaces"
	"github.com/lisuiheng/opsfeed/utils"
)

// State is the lifecycle state of a Channel.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateClosed       State = "closed"
)

// Status is a point-in-time copy of a channel's observable state.
type Status struct {
	ID           string
	State        State
	Connected    bool
	LastError    string
	CurrentDelay time.Duration
	RetryDelay   time.Duration
	HistoryLen   int
	Discarded    int64
}

// Channel keeps a message stream to one endpoint alive until Close is
// called or the context passed to Open is cancelled. A single goroutine
// performs every transition and invokes every callback.
type Channel struct {
	id      string
	cfg     ChannelConfig
	logger  *slog.Logger
	history *History

	mu         sync.RWMutex
	state      State
	lastError  string
	backoff    utils.ReconnectStrategy
	retryDelay time.Duration
	transport  interfaces.TransportProtocol
	released   bool

	discarded atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// Open creates a channel and starts connecting immediately.
func Open(ctx context.Context, cfg ChannelConfig) (*Channel, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	cfg = cfg.withDefaults()

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	c := &Channel{
		id:      id,
		cfg:     cfg,
		logger:  cfg.Logger.With("channel", id, "endpoint", cfg.Endpoint),
		history: NewHistory(cfg.HistoryCapacity),
		state:   StateConnecting,
		backoff: utils.NewExponentialBackoffWith(cfg.Backoff.Initial, cfg.Backoff.Factor, cfg.Backoff.Max),
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.run()
	return c, nil
}

func (c *Channel) run() {
	defer close(c.done)
	defer c.Close()

	for {
		c.connect()
		if c.ctx.Err() != nil {
			return
		}

		delay := c.scheduleRetry()
		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect performs one open attempt and, on success, serves the
// connection until it ends.
func (c *Channel) connect() {
	if !c.setState(StateConnecting) {
		return
	}

	t, err := c.cfg.Transport(c.cfg.Endpoint, c.cfg.Protocols, c.cfg.Headers)
	if err != nil {
		c.fail(fmt.Errorf("create transport: %w", err))
		return
	}
	if err := t.Connect(c.ctx); err != nil {
		_ = t.Close()
		c.fail(err)
		return
	}

	c.mu.Lock()
	if c.released || c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = t.Close()
		return
	}
	c.transport = t
	c.state = StateConnected
	c.retryDelay = 0
	c.backoff.Reset()
	c.mu.Unlock()

	c.logger.Info("Channel connected", "transport", t.ProtocolType())
	if c.cfg.OnOpen != nil {
		c.cfg.OnOpen()
	}

	c.serve(t)
	if c.ctx.Err() != nil {
		return
	}

	ev := t.CloseReason()
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.state = StateDisconnected
	c.lastError = ev.String()
	c.mu.Unlock()
	_ = t.Close()

	c.logger.Warn("Channel disconnected", "code", ev.Code, "reason", ev.Reason, "clean", ev.Clean, "error", ev.Err)
	if ev.Err != nil && !ev.Clean && c.cfg.OnError != nil {
		c.cfg.OnError(ev.Err)
	}
	if c.cfg.OnClose != nil {
		c.cfg.OnClose(&ev)
	}
}

func (c *Channel) serve(t interfaces.TransportProtocol) {
	frames := t.Receive()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-frames:
			if !ok {
				return
			}
			c.handleFrame(msg)
		}
	}
}

func (c *Channel) handleFrame(frame interfaces.Message) {
	if frame.Type != interfaces.MsgText {
		c.discard(frame.Payload, fmt.Errorf("%w: unexpected frame type %d", ErrMalformedMessage, frame.Type))
		return
	}

	msg, err := DecodeInbound(frame.Payload)
	if err != nil {
		c.discard(frame.Payload, err)
		return
	}

	c.history.Push(msg)
	if c.cfg.OnMessage != nil {
		c.cfg.OnMessage(msg)
	}
}

func (c *Channel) discard(raw []byte, err error) {
	c.discarded.Add(1)
	c.logger.Debug("Discarded inbound frame", "error", err, "size", len(raw))
	if c.cfg.OnDiscard != nil {
		c.cfg.OnDiscard(raw, err)
	}
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	if c.released || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.lastError = err.Error()
	c.mu.Unlock()

	c.logger.Warn("Channel connect failed", "error", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

// scheduleRetry returns the wait before the next attempt and grows the
// backoff for the attempt after it.
func (c *Channel) scheduleRetry() time.Duration {
	c.mu.Lock()
	delay := c.backoff.NextDelay()
	c.retryDelay = delay
	next := c.backoff.Current()
	c.mu.Unlock()

	c.logger.Info("Reconnect scheduled", "delay", delay, "next_delay", next)
	return delay
}

// setState reports false once the channel has been released.
func (c *Channel) setState(newState State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return false
	}
	oldState := c.state
	if oldState != newState {
		c.state = newState
		c.logger.Debug("State changed", "from", oldState, "to", newState)
	}
	return true
}

// Send serializes payload as JSON and writes it as one text frame. It
// returns false without queueing when the channel is not connected.
func (c *Channel) Send(payload any) bool {
	c.mu.RLock()
	t := c.transport
	connected := c.state == StateConnected && t != nil
	c.mu.RUnlock()

	if !connected {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to marshal outbound payload", "error", err)
		return false
	}
	if err := t.Send(data, interfaces.MsgText); err != nil {
		c.logger.Warn("Failed to send frame", "error", err)
		return false
	}
	return true
}

// Close stops reconnecting and closes the transport. Calling it more than
// once is a no-op. It does not wait for the run loop; use Done for that.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.released = true
		c.state = StateClosed
		c.retryDelay = 0
		t := c.transport
		c.transport = nil
		c.mu.Unlock()

		c.cancel()
		if t != nil {
			if err := t.Close(); err != nil {
				c.logger.Debug("Transport close failed", "error", err)
			}
		}
		c.logger.Info("Channel closed")
	})
	return nil
}

// Done is closed once the channel's goroutine has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateConnected
}

func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError is the most recent transport error description, or "" if
// none has occurred. Reconnecting does not clear it.
func (c *Channel) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// CurrentDelay is the wait that the next failure will schedule.
func (c *Channel) CurrentDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backoff.Current()
}

// History returns the validated messages, newest first.
func (c *Channel) History() []InboundMessage {
	return c.history.Snapshot()
}

func (c *Channel) Discarded() int64 {
	return c.discarded.Load()
}

func (c *Channel) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Status{
		ID:           c.id,
		State:        c.state,
		Connected:    c.state == StateConnected,
		LastError:    c.lastError,
		CurrentDelay: c.backoff.Current(),
		RetryDelay:   c.retryDelay,
		HistoryLen:   c.history.Len(),
		Discarded:    c.discarded.Load(),
	}
}
