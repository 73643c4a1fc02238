package gasstation

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// PriceSource yields the current fast gas price.
type PriceSource interface {
	FastPrice(ctx context.Context) (*big.Int, error)
}

// Refresher copies the source price into the cache on every tick.
type Refresher struct {
	source   PriceSource
	cache    domain.GasPriceCache
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewRefresher creates a Refresher. interval defaults to one minute.
func NewRefresher(source PriceSource, cache domain.GasPriceCache, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		source:   source,
		cache:    cache,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "gasstation")),
	}
}

// Run refreshes immediately and then every interval until ctx is cancelled.
// Fetch failures are logged; the cached value simply ages.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refresh(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	price, err := r.source.FastPrice(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("fast gas price fetch failed", slog.String("error", err.Error()))
		}
		return
	}
	if err := r.cache.SetFastPrice(ctx, price, r.now()); err != nil {
		r.logger.Warn("fast gas price store failed", slog.String("error", err.Error()))
		return
	}
	r.logger.Debug("fast gas price updated", slog.String("wei", price.String()))
}
