package registry

import (
	"log/slog"
	"strings"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// Document is the pool-set document the registry points at.
type Document struct {
	Pools []domain.Pool `json:"pools" yaml:"pools"`
}

// Filter keeps the pools the keeper should manage, in document order: not
// archived, not upcoming, on network (when set), with every required
// contract, first occurrence of each ID. Pools without an ID take their root
// contract address.
func Filter(pools []domain.Pool, network string, logger *slog.Logger) []domain.Pool {
	out := make([]domain.Pool, 0, len(pools))
	seen := make(map[string]bool, len(pools))

	for _, p := range pools {
		if p.ID == "" {
			p.ID = p.Address(domain.ContractRoot)
		}
		p.ID = strings.ToLower(p.ID)

		switch {
		case p.Metadata.IsArchived, p.Metadata.IsUpcoming:
			continue
		case network != "" && p.Metadata.Network != "" && !strings.EqualFold(p.Metadata.Network, network):
			continue
		}
		if err := p.Validate(); err != nil {
			logger.Warn("skipping pool", slog.String("pool", p.DisplayName()), slog.String("error", err.Error()))
			continue
		}
		if seen[p.ID] {
			logger.Warn("duplicate pool entry", slog.String("pool", p.ID))
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
