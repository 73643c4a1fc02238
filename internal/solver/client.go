// Package solver adapts the external allocation solver and scores its
// proposals the way the coordinator contract does.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/platform/rest"
)

// Config configures the HTTP solver client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client calls a solver service over HTTP: POST <url>/solve.
type Client struct {
	url  string
	rest *rest.Client
}

// NewClient returns a solver client for cfg.URL.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		url: strings.TrimRight(cfg.URL, "/") + "/solve",
		rest: rest.New(rest.Options{
			Timeout:       cfg.Timeout,
			RatePerSecond: 5,
			Burst:         5,
		}, logger.With(slog.String("component", "solver"))),
	}
}

type solveRequest struct {
	PoolID         string             `json:"poolId"`
	Reserve        math.Int           `json:"reserve"`
	NetAssetValue  math.Int           `json:"netAssetValue"`
	SeniorDebt     math.Int           `json:"seniorDebt"`
	SeniorBalance  math.Int           `json:"seniorBalance"`
	MaxReserve     math.Int           `json:"maxReserve"`
	MaxSeniorRatio math.Int           `json:"maxSeniorRatio"`
	SeniorRatio    math.Int           `json:"seniorRatio"`
	Orders         domain.Orders      `json:"orders"`
	Weights        domain.Weights     `json:"weights"`
	CreditLine     *domain.CreditLine `json:"creditLine,omitempty"`
}

type solveResponse struct {
	Solution domain.Solution `json:"solution"`
	Error    string          `json:"error,omitempty"`
}

// Solve asks the service for an allocation of st's pending orders.
func (c *Client) Solve(ctx context.Context, st domain.PoolState) (domain.Solution, error) {
	req := solveRequest{
		PoolID:         st.PoolID,
		Reserve:        st.Reserve,
		NetAssetValue:  st.NetAssetValue,
		SeniorDebt:     st.SeniorDebt,
		SeniorBalance:  st.SeniorBalance,
		MaxReserve:     st.MaxReserve,
		MaxSeniorRatio: st.MaxSeniorRatio,
		SeniorRatio:    st.SeniorRatio,
		Orders:         st.Orders,
		Weights:        st.Weights,
		CreditLine:     st.CreditLine,
	}
	var resp solveResponse
	if err := c.rest.PostJSON(ctx, c.url, req, &resp); err != nil {
		return domain.Solution{}, fmt.Errorf("solver: solve %s: %w", st.PoolID, err)
	}
	if resp.Error != "" {
		return domain.Solution{}, fmt.Errorf("solver: solve %s: %s", st.PoolID, resp.Error)
	}
	sol := resp.Solution
	sol.SeniorSupply = domain.ZeroIfNil(sol.SeniorSupply)
	sol.JuniorSupply = domain.ZeroIfNil(sol.JuniorSupply)
	sol.SeniorRedeem = domain.ZeroIfNil(sol.SeniorRedeem)
	sol.JuniorRedeem = domain.ZeroIfNil(sol.JuniorRedeem)
	return sol, nil
}
