package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// FileSource reads the pool set from a local YAML (or JSON) document with the
// same shape as the registry document. Used on test networks.
type FileSource struct {
	path    string
	network string
	logger  *slog.Logger
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path, network string, logger *slog.Logger) *FileSource {
	return &FileSource{
		path:    path,
		network: network,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Pools implements domain.PoolSource. The file is re-read on every call.
func (f *FileSource) Pools(_ context.Context) ([]domain.Pool, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", f.path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", f.path, err)
	}
	return Filter(doc.Pools, f.network, f.logger), nil
}
