package prefetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/campus-menu-client/internal/testutil"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/client"
)

type fetcherFunc func(ctx context.Context, ep client.Endpoint) error

func (f fetcherFunc) Fetch(ctx context.Context, ep client.Endpoint) error { return f(ctx, ep) }

func endpoints(paths ...string) []client.Endpoint {
	eps := make([]client.Endpoint, len(paths))
	for i, p := range paths {
		eps[i] = client.Endpoint{BaseURL: "http://menu.test", Path: p}
	}
	return eps
}

func TestNew_Defaults(t *testing.T) {
	p := New(fetcherFunc(nil), Config{}, zerolog.Nop())
	assert.Equal(t, DefaultConfig(), p.config)
}

func TestWarm_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	fetch := fetcherFunc(func(ctx context.Context, ep client.Endpoint) error {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	p := New(fetch, Config{MaxConcurrency: 2, Timeout: time.Second}, zerolog.Nop())
	outcomes, err := p.Warm(context.Background(), endpoints("/a", "/b", "/c", "/d", "/e", "/f"))

	require.NoError(t, err)
	assert.Len(t, outcomes, 6)
	assert.Equal(t, 6, Succeeded(outcomes))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestWarm_ReportsFailuresPerEndpoint(t *testing.T) {
	boom := errors.New("boom")
	fetch := fetcherFunc(func(ctx context.Context, ep client.Endpoint) error {
		if ep.Path == "/bad" {
			return boom
		}
		return nil
	})

	p := New(fetch, DefaultConfig(), zerolog.Nop())
	outcomes, err := p.Warm(context.Background(), endpoints("/ok", "/bad", "/also-ok"))

	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "/ok", outcomes[0].Endpoint.Path)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, boom)
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, 2, Succeeded(outcomes))
}

func TestWarm_AppliesTimeout(t *testing.T) {
	fetch := fetcherFunc(func(ctx context.Context, ep client.Endpoint) error {
		<-ctx.Done()
		return ctx.Err()
	})

	p := New(fetch, Config{MaxConcurrency: 1, Timeout: 5 * time.Millisecond}, zerolog.Nop())
	outcomes, err := p.Warm(context.Background(), endpoints("/slow"))

	require.NoError(t, err)
	assert.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
}

func TestWarm_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	fetch := fetcherFunc(func(ctx context.Context, ep client.Endpoint) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(fetch, DefaultConfig(), zerolog.Nop())
	outcomes, err := p.Warm(ctx, endpoints("/a", "/b"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestClientFetcher_WarmsCache(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("/menus", testutil.NewJSONResponse(`[{"meal_name":"Risotto"}]`))
	api.SetResponse("/broken", testutil.NewErrorResponse(http.StatusInternalServerError))

	disk, err := cache.NewDiskTier(t.TempDir())
	require.NoError(t, err)
	store := cache.NewStore(cache.Options{Persistent: disk})

	c, err := client.New(client.Config{HTTPClient: api.Client(), Cache: store, Logger: zerolog.Nop()})
	require.NoError(t, err)

	eps := []client.Endpoint{
		{BaseURL: api.URL(), Path: "/menus"},
		{BaseURL: api.URL(), Path: "/broken"},
	}
	p := New(ClientFetcher{Client: c}, DefaultConfig(), zerolog.Nop())
	outcomes, err := p.Warm(context.Background(), eps)
	require.NoError(t, err)
	assert.Equal(t, 1, Succeeded(outcomes))

	var cached json.RawMessage
	require.True(t, store.Get(context.Background(), eps[0].CacheKey(), &cached))
	assert.JSONEq(t, `[{"mealName":"Risotto"}]`, string(cached))
	assert.False(t, store.Get(context.Background(), eps[1].CacheKey(), &cached))
}

