package gasstation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientFastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"safeLow":{"maxFee":30.1},"fast":{"maxPriorityFee":40,"maxFee":45.123456789123},"blockNumber":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	price, err := c.FastPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "45123456790", price.String())
}

func TestClientMissingFastTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"standard":{"maxFee":1}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, testLogger()).FastPrice(context.Background())
	assert.Error(t, err)
}

func TestGweiToWei(t *testing.T) {
	wei, err := gweiToWei("1")
	require.NoError(t, err)
	assert.Equal(t, "1000000000", wei.String())

	_, err = gweiToWei("0")
	assert.Error(t, err)
	_, err = gweiToWei("abc")
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	_, _, err := c.FastPrice(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)

	at := time.Unix(1_700_000_000, 0)
	require.NoError(t, c.SetFastPrice(context.Background(), big.NewInt(42), at))
	p, got, err := c.FastPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.Int64())
	assert.True(t, at.Equal(got))
}

type stubSource struct {
	price *big.Int
	err   error
}

func (s stubSource) FastPrice(context.Context) (*big.Int, error) { return s.price, s.err }

func TestRefresherStoresPrice(t *testing.T) {
	cache := NewMemoryCache()
	at := time.Unix(1_700_000_000, 0)
	r := NewRefresher(stubSource{price: big.NewInt(7)}, cache, time.Hour, testLogger())
	r.now = func() time.Time { return at }

	r.refresh(context.Background())
	p, got, err := cache.FastPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Int64())
	assert.True(t, at.Equal(got))
}

func TestRefresherKeepsOldPriceOnFailure(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.SetFastPrice(context.Background(), big.NewInt(5), time.Unix(1, 0)))

	r := NewRefresher(stubSource{err: errors.New("down")}, cache, time.Hour, testLogger())
	r.refresh(context.Background())

	p, _, err := cache.FastPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Int64())
}

func TestRefresherRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRefresher(stubSource{price: big.NewInt(1)}, NewMemoryCache(), time.Hour, testLogger())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
