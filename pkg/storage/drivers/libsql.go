//go:build libsql

package drivers

import (
	"context"
	"fmt"

	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/libsql"
)

func init() {
	openers[ProviderLibSQL] = func(ctx context.Context, cfg Config) (storage.Driver, error) {
		if cfg.LibSQLURL == "" {
			return nil, fmt.Errorf("libsql provider requires a database URL")
		}
		return libsql.NewDriver(ctx, cfg.LibSQLURL)
	}
}
