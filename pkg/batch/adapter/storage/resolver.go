package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/tigerroll/epiflow/pkg/batch/adapter/storage/config"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// Resolver opens connections lazily from epiflow.adapter.storage and caches them.
type Resolver struct {
	definitions map[string]map[string]interface{}
	providers   map[string]StorageProvider

	mu    sync.Mutex
	conns map[string]StorageConnection
}

// NewResolver creates a Resolver over the configured connection blocks.
func NewResolver(cfg *config.Config, providers []StorageProvider) *Resolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &Resolver{
		definitions: cfg.Epiflow.Adapter.Storage,
		providers:   byType,
		conns:       make(map[string]StorageConnection),
	}
}

// ResolveStorageConnection returns the connection called name, opening it on first use.
func (r *Resolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[name]; ok {
		return conn, nil
	}
	props, ok := r.definitions[name]
	if !ok {
		return nil, fmt.Errorf("storage connection %q is not configured", name)
	}
	cfg, err := storageConfig.Decode(props)
	if err != nil {
		return nil, fmt.Errorf("storage connection %q: %w", name, err)
	}
	provider, ok := r.providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("storage connection %q: no provider for type %q (available: %v)", name, cfg.Type, r.providerTypes())
	}
	conn, err := provider.Connect(ctx, name, props)
	if err != nil {
		return nil, fmt.Errorf("storage connection %q: %w", name, err)
	}
	logger.Debugf("Opened %s storage connection '%s'.", cfg.Type, name)
	r.conns[name] = conn
	return conn, nil
}

func (r *Resolver) providerTypes() []string {
	types := make([]string, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CloseAll closes every open connection and reports all failures together.
func (r *Resolver) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *multierror.Error
	for name, conn := range r.conns {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
		}
		delete(r.conns, name)
	}
	return result.ErrorOrNil()
}

var _ StorageConnectionResolver = (*Resolver)(nil)
