package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lisuiheng/opsfeed/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotBody = `[
  {"id":"a1","severity":"critical","title":"PSP down","summary":"5xx","timestamp":"2026-01-02T03:04:05Z"},
  {"id":"a2","severity":"bogus","title":"x","summary":"x","timestamp":"2026-01-02T03:04:05Z"},
  {"id":"a3","severity":"info","title":"Deploy","summary":"v2","timestamp":"2026-01-02T03:05:05Z","meta":{"by":"ci"}}
]`

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestClient_Fetch(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(snapshotBody))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, Token: "secret"})
	require.NoError(t, err)

	msgs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a1", msgs[0].ID)
	assert.Equal(t, "a3", msgs[1].ID)
	assert.Equal(t, "ci", msgs[1].Meta["by"])
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`, wantErr: ErrUnexpectedStatus},
		{name: "unauthorized", status: http.StatusUnauthorized, body: ``, wantErr: ErrUnexpectedStatus},
		{name: "not an array", status: http.StatusOK, body: `{"id":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{URL: srv.URL})
			require.NoError(t, err)

			_, err = c.Fetch(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, RatePerSecond: 0.001})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.NoError(t, err)
	_, err = c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

type fakeLive struct {
	mu        sync.Mutex
	connected bool
	history   []core.InboundMessage
}

func (f *fakeLive) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLive) History() []core.InboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history
}

type fakeFetcher struct {
	calls int
	msgs  []core.InboundMessage
	err   error
}

func (f *fakeFetcher) Fetch(context.Context) ([]core.InboundMessage, error) {
	f.calls++
	return f.msgs, f.err
}

func TestFeed_LiveWhenConnected(t *testing.T) {
	live := &fakeLive{connected: true, history: []core.InboundMessage{{ID: "live-1"}}}
	fetcher := &fakeFetcher{}

	v := NewFeed(live, fetcher).View(context.Background())
	assert.Equal(t, ModeLive, v.Mode)
	assert.Equal(t, "live-1", v.Messages[0].ID)
	assert.Zero(t, fetcher.calls)
}

func TestFeed_SnapshotWhenDisconnected(t *testing.T) {
	live := &fakeLive{}
	fetcher := &fakeFetcher{msgs: []core.InboundMessage{{ID: "snap-1"}}}
	feed := NewFeed(live, fetcher)

	v := feed.View(context.Background())
	require.NoError(t, v.Err)
	assert.Equal(t, ModeSnapshot, v.Mode)
	require.Len(t, v.Messages, 1)
	assert.Equal(t, "snap-1", v.Messages[0].ID)
	assert.False(t, v.FetchedAt.IsZero())

	fetcher.msgs = nil
	fetcher.err = errors.New("upstream down")
	v2 := feed.View(context.Background())
	assert.Equal(t, ModeSnapshot, v2.Mode)
	assert.EqualError(t, v2.Err, "upstream down")
	require.Len(t, v2.Messages, 1, "previous snapshot is kept")
	assert.Equal(t, v.FetchedAt, v2.FetchedAt)
}
