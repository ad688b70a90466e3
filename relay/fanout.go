package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lisuiheng/opsfeed/core"
	"golang.org/x/sync/errgroup"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

type FanoutConfig struct {
	QueueSize      int
	PublishTimeout time.Duration
	Logger         *slog.Logger
}

type Stats struct {
	Published int64
	Failed    int64
	Dropped   int64
}

// Fanout decouples a channel from its sinks: Enqueue never blocks, and Run
// publishes each queued alert to every sink concurrently.
type Fanout struct {
	sinks   []Sink
	queue   chan core.InboundMessage
	timeout time.Duration
	logger  *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewFanout(cfg FanoutConfig, sinks ...Sink) *Fanout {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fanout{
		sinks:   sinks,
		queue:   make(chan core.InboundMessage, cfg.QueueSize),
		timeout: cfg.PublishTimeout,
		logger:  cfg.Logger,
	}
}

// Enqueue reports false when the queue is full and the alert was dropped.
func (f *Fanout) Enqueue(msg core.InboundMessage) bool {
	select {
	case f.queue <- msg:
		return true
	default:
		f.dropped.Add(1)
		f.logger.Warn("Relay queue full, dropping alert", "id", msg.ID)
		return false
	}
}

// Run publishes queued alerts until ctx is cancelled.
func (f *Fanout) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.queue:
			if err := f.Publish(ctx, msg); err != nil {
				f.logger.Error("Relay publish failed", "id", msg.ID, "error", err)
			}
		}
	}
}

// Publish sends msg to every sink and returns the first sink error.
func (f *Fanout) Publish(ctx context.Context, msg core.InboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range f.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Publish(ctx, msg); err != nil {
				f.failed.Add(1)
				f.logger.Warn("Sink publish failed", "sink", sink.Name(), "id", msg.ID, "error", err)
				return err
			}
			f.published.Add(1)
			return nil
		})
	}
	return g.Wait()
}

func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Stats() Stats {
	return Stats{
		Published: f.published.Load(),
		Failed:    f.failed.Load(),
		Dropped:   f.dropped.Load(),
	}
}
