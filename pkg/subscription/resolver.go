package subscription

import (
	"context"

	"github.com/rzbill/subrelay/pkg/types"
)

// ConfigFinder looks up a configuration by exact name.
type ConfigFinder interface {
	FindByName(ctx context.Context, name string) (*types.Configuration, error)
}

// Resolver maps a subscription name to its configuration.
type Resolver struct {
	finder ConfigFinder
}

func NewResolver(finder ConfigFinder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve returns the configuration named name. An empty name never
// matches. Misses are reported as *types.NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, name string) (*types.Configuration, error) {
	if name == "" {
		return nil, types.NewNotFoundError("config name", name)
	}
	return r.finder.FindByName(ctx, name)
}
