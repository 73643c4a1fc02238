// Package registry discovers the set of pools to manage, either from the
// on-chain pool registry and its metadata document or from a static file.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
	"github.com/alanyoungcy/poolkeeper/internal/platform/rest"
)

// BatchReader executes ledger reads. *ledger.MulticallReader satisfies it.
type BatchReader interface {
	ReadBatch(ctx context.Context, calls []ledger.Call) (*ledger.Results, error)
}

// Config configures the on-chain registry source.
type Config struct {
	Address     string
	Network     string
	IPFSGateway string
	Timeout     time.Duration
}

const findKey = "registry/find"

// Registry resolves the pool-set document pointer from the registry contract
// and fetches the document through an IPFS gateway.
type Registry struct {
	reader BatchReader
	http   *rest.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Registry.
func New(reader BatchReader, cfg Config, logger *slog.Logger) *Registry {
	logger = logger.With(slog.String("component", "registry"))
	return &Registry{
		reader: reader,
		http: rest.New(rest.Options{
			Timeout:       cfg.Timeout,
			RatePerSecond: 2,
			Burst:         2,
		}, logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Pointer returns the document pointer currently stored in the registry.
func (r *Registry) Pointer(ctx context.Context) (string, error) {
	call := ledger.NewCall(r.cfg.Address, "find(address)", ledger.Ret(findKey, ledger.AsString())).
		WithArgs(common.HexToAddress(r.cfg.Address))
	res, err := r.reader.ReadBatch(ctx, []ledger.Call{call})
	if err != nil {
		return "", fmt.Errorf("registry: find: %w", err)
	}
	v, err := res.Get(findKey)
	if err != nil {
		return "", fmt.Errorf("registry: find: %w", err)
	}
	ptr, err := v.Text()
	if err != nil {
		return "", fmt.Errorf("registry: find: %w", err)
	}
	if strings.TrimSpace(ptr) == "" {
		return "", fmt.Errorf("registry: find: empty pointer: %w", domain.ErrNotFound)
	}
	return ptr, nil
}

// Pools implements domain.PoolSource.
func (r *Registry) Pools(ctx context.Context) ([]domain.Pool, error) {
	ptr, err := r.Pointer(ctx)
	if err != nil {
		return nil, err
	}

	url := DocumentURL(r.cfg.IPFSGateway, ptr)
	var doc Document
	if err := r.http.GetJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("registry: fetch %s: %w", url, err)
	}

	pools := Filter(doc.Pools, r.cfg.Network, r.logger)
	r.logger.Info("pool set loaded",
		slog.String("pointer", ptr),
		slog.Int("listed", len(doc.Pools)),
		slog.Int("active", len(pools)),
	)
	return pools, nil
}

// DocumentURL turns a registry pointer into a fetchable URL. Plain hashes and
// ipfs:// URIs go through gateway; http(s) URLs are used as is.
func DocumentURL(gateway, ptr string) string {
	ptr = strings.TrimSpace(ptr)
	switch {
	case strings.HasPrefix(ptr, "http://"), strings.HasPrefix(ptr, "https://"):
		return ptr
	case strings.HasPrefix(ptr, "ipfs://"):
		ptr = strings.TrimPrefix(ptr, "ipfs://")
	}
	ptr = strings.TrimPrefix(ptr, "/ipfs/")
	return strings.TrimRight(gateway, "/") + "/ipfs/" + ptr
}
