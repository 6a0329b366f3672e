// Package backend opens the storage driver and turn publisher shared by
// the serve commands.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamflow/cmd/streamflow/sqlitepath"
	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/config"
	"github.com/papercomputeco/streamflow/pkg/eventstream"
	"github.com/papercomputeco/streamflow/pkg/eventstream/kafka"
	"github.com/papercomputeco/streamflow/pkg/eventstream/nop"
	"github.com/papercomputeco/streamflow/pkg/logger"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/drivers"
)

// NewLogger returns the CLI logger: pretty output on stderr, debug level
// when requested.
func NewLogger(debug bool) *slog.Logger {
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
}

// LogOptions selects the output of the service logger.
type LogOptions struct {
	Debug bool
	JSON  bool
	File  string
}

// AddLogFlags registers --log-json and --log-file on a service command.
func AddLogFlags(cmd *cobra.Command, opts *LogOptions) {
	cmd.Flags().BoolVar(&opts.JSON, "log-json", false, "Write JSON log records instead of pretty output")
	cmd.Flags().StringVar(&opts.File, "log-file", "", "Also append JSON log records to this file")
}

// NewServiceLogger returns the logger for the long-running services.
// Records go to w, pretty by default or JSON with opts.JSON. When opts.File
// is set every record is also appended to it as JSON. The returned func
// closes the file.
func NewServiceLogger(w io.Writer, opts LogOptions) (*slog.Logger, func() error, error) {
	if opts.File == "" {
		return logger.New(
			logger.WithDebug(opts.Debug),
			logger.WithPretty(!opts.JSON),
			logger.WithJSON(opts.JSON),
			logger.WithSource(opts.Debug && opts.JSON),
			logger.WithWriter(w),
		), func() error { return nil }, nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	if opts.JSON {
		return logger.New(
			logger.WithDebug(opts.Debug),
			logger.WithJSON(true),
			logger.WithSource(opts.Debug),
			logger.WithWriters(w, f),
		), f.Close, nil
	}

	terminal := logger.New(
		logger.WithDebug(opts.Debug),
		logger.WithPretty(true),
		logger.WithWriter(w),
	)
	file := logger.New(
		logger.WithDebug(opts.Debug),
		logger.WithJSON(true),
		logger.WithSource(opts.Debug),
		logger.WithWriter(f),
	)
	return logger.Multi(terminal, file), f.Close, nil
}

// OpenStorage opens the driver selected by the storage.* keys in v.
func OpenStorage(ctx context.Context, v *viper.Viper, configDir string, log *slog.Logger) (storage.Driver, error) {
	cfg := drivers.Config{
		Provider:    v.GetString("storage.provider"),
		SQLitePath:  v.GetString("storage.sqlite_path"),
		PostgresDSN: v.GetString("storage.postgres_dsn"),
		LibSQLURL:   v.GetString("storage.libsql_url"),
	}

	if cfg.Provider == "" {
		cfg.Provider = drivers.ProviderSQLite
	}
	if cfg.Provider == drivers.ProviderSQLite {
		path, err := sqlitepath.ResolveSQLitePath(cfg.SQLitePath, configDir)
		if err != nil {
			return nil, err
		}
		cfg.SQLitePath = path
	}

	driver, err := drivers.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	attrs := []any{"provider", cfg.Provider}
	if cfg.SQLitePath != "" {
		attrs = append(attrs, "path", cfg.SQLitePath)
	}
	log.Debug("opened storage", attrs...)
	return driver, nil
}

// StepOpenStorage is OpenStorage behind a progress step written to w.
func StepOpenStorage(ctx context.Context, w io.Writer, v *viper.Viper, configDir string, log *slog.Logger) (storage.Driver, error) {
	var driver storage.Driver
	err := cliui.Step(w, "Opening "+v.GetString("storage.provider")+" storage", func() error {
		var err error
		driver, err = OpenStorage(ctx, v, configDir, log)
		return err
	})
	return driver, err
}

// OpenPublisher returns the turn publisher selected by the eventstream.*
// keys in v.
func OpenPublisher(v *viper.Viper, log *slog.Logger) (eventstream.Publisher, error) {
	provider := v.GetString("eventstream.provider")
	switch provider {
	case "", config.EventStreamNop:
		return nop.NewPublisher(), nil

	case config.EventStreamKafka:
		brokers := SplitBrokers(v.GetString("eventstream.kafka_brokers"))
		topic := v.GetString("eventstream.kafka_topic")
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   topic,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing turn events to kafka", "brokers", brokers, "topic", topic)
		return pub, nil

	default:
		return nil, fmt.Errorf("unsupported eventstream provider %q", provider)
	}
}

// SplitBrokers parses a comma separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
