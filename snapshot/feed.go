package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/lisuiheng/opsfeed/core"
)

type Mode string

const (
	ModeLive     Mode = "live"
	ModeSnapshot Mode = "snapshot"
)

// LiveSource is satisfied by *core.Channel.
type LiveSource interface {
	Connected() bool
	History() []core.InboundMessage
}

var _ LiveSource = (*core.Channel)(nil)

type Fetcher interface {
	Fetch(ctx context.Context) ([]core.InboundMessage, error)
}

// View is what a consumer renders: live history when connected, otherwise
// the most recent snapshot.
type View struct {
	Mode      Mode                  `json:"mode"`
	Messages  []core.InboundMessage `json:"messages"`
	FetchedAt time.Time             `json:"fetched_at"`
	Err       error                 `json:"-"`
}

type Feed struct {
	live    LiveSource
	fetcher Fetcher

	mu        sync.Mutex
	last      []core.InboundMessage
	fetchedAt time.Time
}

func NewFeed(live LiveSource, fetcher Fetcher) *Feed {
	return &Feed{live: live, fetcher: fetcher}
}

// View never fails; a fetch error is reported in View.Err alongside the
// previous snapshot.
func (f *Feed) View(ctx context.Context) View {
	if f.live.Connected() {
		return View{Mode: ModeLive, Messages: f.live.History()}
	}

	msgs, err := f.fetcher.Fetch(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.last = msgs
		f.fetchedAt = time.Now()
	}

	out := make([]core.InboundMessage, len(f.last))
	copy(out, f.last)
	return View{
		Mode:      ModeSnapshot,
		Messages:  out,
		FetchedAt: f.fetchedAt,
		Err:       err,
	}
}
