// Package gasstation polls an HTTP gas station for the network's fast gas
// price and keeps the latest observation in a domain.GasPriceCache.
package gasstation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/platform/rest"
)

// Client reads the fast tier from a gas station endpoint. The response shape
// is {"fast": {"maxFee": <gwei>, "maxPriorityFee": <gwei>}, ...}.
type Client struct {
	url  string
	rest *rest.Client
}

// NewClient returns a gas station client for url.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		rest: rest.New(rest.Options{
			Timeout:       timeout,
			RatePerSecond: 1,
			Burst:         2,
			MaxRetries:    2,
		}, logger.With(slog.String("component", "gasstation"))),
	}
}

type tier struct {
	MaxFee         json.Number `json:"maxFee"`
	MaxPriorityFee json.Number `json:"maxPriorityFee"`
}

type stationResponse struct {
	Fast tier `json:"fast"`
}

// FastPrice returns the fast-tier max fee in wei.
func (c *Client) FastPrice(ctx context.Context) (*big.Int, error) {
	var resp stationResponse
	if err := c.rest.GetJSON(ctx, c.url, &resp); err != nil {
		return nil, fmt.Errorf("gasstation: fetch: %w", err)
	}
	if resp.Fast.MaxFee == "" {
		return nil, fmt.Errorf("gasstation: response has no fast.maxFee")
	}
	return gweiToWei(resp.Fast.MaxFee.String())
}

var gwei = math.LegacyNewDec(1_000_000_000)

// gweiToWei converts a decimal gwei string to wei, rounding up.
func gweiToWei(s string) (*big.Int, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return nil, fmt.Errorf("gasstation: parse %q: %w", s, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("gasstation: non-positive price %q", s)
	}
	return d.Mul(gwei).Ceil().TruncateInt().BigInt(), nil
}
