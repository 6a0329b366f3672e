// Package drivers opens the storage driver named by configuration.
package drivers

import (
	"context"
	"fmt"

	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/inmemory"
	"github.com/papercomputeco/streamflow/pkg/storage/postgres"
)

// Provider names.
const (
	ProviderMemory   = "memory"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderLibSQL   = "libsql"
)

// Config selects and configures a driver.
type Config struct {
	Provider    string
	SQLitePath  string
	PostgresDSN string
	LibSQLURL   string
}

type opener func(ctx context.Context, cfg Config) (storage.Driver, error)

// openers is filled by build-tagged files for drivers that cannot be linked
// together.
var openers = map[string]opener{
	ProviderMemory: func(context.Context, Config) (storage.Driver, error) {
		return inmemory.NewDriver(), nil
	},
	ProviderPostgres: func(ctx context.Context, cfg Config) (storage.Driver, error) {
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres provider requires a DSN")
		}
		return postgres.NewDriver(ctx, cfg.PostgresDSN)
	},
}

// Open returns the driver for cfg.Provider. An empty provider picks sqlite
// when a path is set and memory otherwise.
func Open(ctx context.Context, cfg Config) (storage.Driver, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderMemory
		if cfg.SQLitePath != "" {
			provider = ProviderSQLite
		}
	}

	open, ok := openers[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported storage provider %q (available: %v)", provider, Providers())
	}
	return open(ctx, cfg)
}

// Providers lists the providers compiled into this binary.
func Providers() []string {
	out := make([]string, 0, len(openers))
	for _, name := range []string{ProviderMemory, ProviderSQLite, ProviderPostgres, ProviderLibSQL} {
		if _, ok := openers[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
