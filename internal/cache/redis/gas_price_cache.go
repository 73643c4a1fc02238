package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// GasPriceCache implements domain.GasPriceCache with a Redis hash at
// "{prefix}:gas:fast" holding fields "wei" and "ts" (Unix nanoseconds). The
// key expires after ttl so a dead feed ages out on its own.
type GasPriceCache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewGasPriceCache creates a GasPriceCache backed by c.
func NewGasPriceCache(c *Client, ttl time.Duration) *GasPriceCache {
	return &GasPriceCache{rdb: c.Underlying(), key: c.key("gas", "fast"), ttl: ttl}
}

// SetFastPrice stores price observed at observedAt.
func (g *GasPriceCache) SetFastPrice(ctx context.Context, price *big.Int, observedAt time.Time) error {
	if price == nil {
		return errors.New("redis: set fast gas price: nil price")
	}
	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, g.key, map[string]interface{}{
			"wei": price.String(),
			"ts":  strconv.FormatInt(observedAt.UnixNano(), 10),
		})
		if g.ttl > 0 {
			pipe.Expire(ctx, g.key, g.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set fast gas price: %w", err)
	}
	return nil
}

// FastPrice returns the stored price and its observation time. It returns
// domain.ErrNotFound when nothing is stored.
func (g *GasPriceCache) FastPrice(ctx context.Context) (*big.Int, time.Time, error) {
	vals, err := g.rdb.HGetAll(ctx, g.key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get fast gas price: %w", err)
	}
	weiStr, ok := vals["wei"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	price, ok := new(big.Int).SetString(weiStr, 10)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("redis: parse fast gas price %q", weiStr)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse fast gas price ts: %w", err)
	}
	return price, time.Unix(0, tsNano), nil
}
