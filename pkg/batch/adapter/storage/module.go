package storage

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
)

// ResolverParams collects the providers contributed by adapter modules.
type ResolverParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Providers []StorageProvider `group:"storage_providers"`
}

// NewResolverProvider builds the Resolver and closes its connections on stop.
func NewResolverProvider(p ResolverParams) StorageConnectionResolver {
	r := NewResolver(p.Config, p.Providers)
	p.Lifecycle.Append(fx.StopHook(func(context.Context) error {
		return r.CloseAll()
	}))
	return r
}

// Module provides the StorageConnectionResolver.
var Module = fx.Options(
	fx.Provide(NewResolverProvider),
)
