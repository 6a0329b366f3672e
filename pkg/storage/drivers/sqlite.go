//go:build !libsql

package drivers

import (
	"context"
	"fmt"

	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/sqlite"
)

func init() {
	openers[ProviderSQLite] = func(ctx context.Context, cfg Config) (storage.Driver, error) {
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite provider requires a database path")
		}
		return sqlite.NewDriver(ctx, cfg.SQLitePath)
	}
}
