//go:build libsql

// Package libsql provides a libSQL (Turso) storage driver.
//
// go-libsql bundles its own SQLite build, which clashes with
// mattn/go-sqlite3 at link time, so this package is only compiled with the
// "libsql" build tag. Such binaries drop the sqlite driver.
package libsql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql" // register the libSQL driver as "libsql"

	"github.com/papercomputeco/streamflow/pkg/storage/sqlstore"
)

// Driver implements storage.Driver using libSQL via the shared sqlstore.
type Driver struct {
	*sqlstore.Store
}

// NewDriver creates a new libSQL-backed driver. url is either a local
// "file:" URL or a remote "libsql://host?authToken=..." URL.
func NewDriver(ctx context.Context, url string) (*Driver, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := sqlstore.New(ctx, db, sqlstore.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Store: store}, nil
}
