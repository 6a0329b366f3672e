// Package sqlitepath locates the SQLite database that recorded turns are
// written to and read from.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/streamflow/pkg/dotdir"
)

// DefaultFile is the database file name inside a .streamflow/ directory.
const DefaultFile = "streamflow.sqlite"

// ResolveSQLitePath returns the database path to use. Order of precedence:
//  1. override
//  2. STREAMFLOW_SQLITE
//  3. configDir/streamflow.sqlite when configDir is set
//  4. the first existing well-known location
//  5. streamflow.sqlite inside the resolved .streamflow/ directory
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("STREAMFLOW_SQLITE")); envPath != "" {
		return envPath, nil
	}

	if configDir != "" {
		return filepath.Join(configDir, DefaultFile), nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	target, err := dotdir.NewManager().Target("")
	if err != nil {
		return "", fmt.Errorf("resolving sqlite path: %w", err)
	}
	return filepath.Join(target, DefaultFile), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		"streamflow.db",
		DefaultFile,
		filepath.Join(".streamflow", DefaultFile),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".streamflow", DefaultFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "streamflow", DefaultFile))
	}

	return candidates
}
