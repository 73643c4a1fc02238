package redis

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*GasPriceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGasPriceCache(NewFromRedis(rdb, "test"), ttl), mr
}

func TestGasPriceCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	observed := time.Unix(1_700_000_000, 123)

	price, ok := new(big.Int).SetString("123456789012345678901", 10)
	require.True(t, ok)
	require.NoError(t, cache.SetFastPrice(ctx, price, observed))

	assert.True(t, mr.Exists("test:gas:fast"))
	assert.Equal(t, "123456789012345678901", mr.HGet("test:gas:fast", "wei"))

	got, at, err := cache.FastPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, price.Cmp(got))
	assert.True(t, observed.Equal(at))
}

func TestGasPriceCacheEmpty(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	_, _, err := cache.FastPrice(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGasPriceCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.SetFastPrice(ctx, big.NewInt(42), time.Now()))

	mr.FastForward(61 * time.Second)
	_, _, err := cache.FastPrice(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGasPriceCacheZeroTTLKeepsKey(t *testing.T) {
	cache, mr := newTestCache(t, 0)
	require.NoError(t, cache.SetFastPrice(context.Background(), big.NewInt(42), time.Now()))
	assert.Equal(t, time.Duration(0), mr.TTL("test:gas:fast"))
}

func TestGasPriceCacheRejectsNilPrice(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	assert.Error(t, cache.SetFastPrice(context.Background(), nil, time.Now()))
}

func TestGasPriceCacheMalformedHash(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		notFound bool
	}{
		{name: "missing ts", fields: map[string]string{"wei": "100"}, notFound: true},
		{name: "missing wei", fields: map[string]string{"ts": "1"}, notFound: true},
		{name: "bad wei", fields: map[string]string{"wei": "lots", "ts": "1"}},
		{name: "bad ts", fields: map[string]string{"wei": "100", "ts": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, mr := newTestCache(t, time.Minute)
			for k, v := range tt.fields {
				mr.HSet("test:gas:fast", k, v)
			}

			_, _, err := cache.FastPrice(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, domain.ErrNotFound))
		})
	}
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "poolkeeper:gas:fast", c.key("gas", "fast"))

	addr := mr.Addr()
	mr.Close()
	_, err = New(context.Background(), ClientConfig{Addr: addr, MaxRetries: -1})
	assert.Error(t, err)
}
