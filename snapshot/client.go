// Package snapshot fetches a static copy of the alert feed over HTTP and
// serves it while the live channel is disconnected.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lisuiheng/opsfeed/core"
	"golang.org/x/time/rate"
)

var (
	ErrURLRequired      = errors.New("snapshot url is required")
	ErrUnexpectedStatus = errors.New("unexpected snapshot status")
	ErrRateLimited      = errors.New("snapshot fetch rate limited")
)

const (
	defaultTimeout = 5 * time.Second
	defaultRate    = 0.2
	maxBodyBytes   = 8 << 20
)

type Config struct {
	URL           string
	Token         string
	RatePerSecond float64
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client fetches snapshots. Fetches beyond RatePerSecond (burst 1) fail
// fast with ErrRateLimited instead of waiting.
type Client struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		url:     cfg.URL,
		token:   cfg.Token,
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  cfg.Logger.With("snapshot_url", cfg.URL),
	}, nil
}

// Fetch returns the snapshot's valid alerts in the order served. Entries
// failing validation are skipped.
func (c *Client) Fetch(ctx context.Context) ([]core.InboundMessage, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	out := make([]core.InboundMessage, 0, len(raw))
	for _, item := range raw {
		msg, err := core.DecodeInbound(item)
		if err != nil {
			c.logger.Debug("Skipping invalid snapshot entry", "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
