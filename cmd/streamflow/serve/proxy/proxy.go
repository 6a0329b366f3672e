// Package proxycmder provides the recording proxy command.
package proxycmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamflow/cmd/streamflow/backend"
	"github.com/papercomputeco/streamflow/pkg/config"
	"github.com/papercomputeco/streamflow/pkg/eventstream"
	"github.com/papercomputeco/streamflow/proxy"
)

// StorageFlags are the registry keys every command that opens storage binds.
var StorageFlags = []string{
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagLibSQLURL,
}

// PublisherFlags are the registry keys for the turn event publisher.
var PublisherFlags = []string{
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

type proxyCommander struct {
	flags   Flags
	logOpts backend.LogOptions
	viper   *viper.Viper
	confDir string
}

// Flags holds the values cobra parses for the proxy. They are only used as
// flag targets; settings are read back through viper.
type Flags struct {
	Listen       string
	Upstream     string
	ResponseNode string
	Timeout      time.Duration
	Storage      string
	SQLite       string
	PostgresDSN  string
	LibSQLURL    string
	EventStream  string
	KafkaBrokers string
	KafkaTopic   string
}

const proxyLongDesc string = `Run the recording proxy.

The proxy forwards every request to the configured upstream producer and
streams the response back unchanged. Chat turns (POST requests carrying
messages) are reconstructed from the event stream and stored, and each
stored turn is published to the configured event stream.`

const proxyShortDesc string = "Run the streamflow recording proxy"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.confDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.confDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, []string{
				config.FlagProxyListenStandalone,
				config.FlagUpstream,
				config.FlagResponseNode,
				config.FlagTimeout,
			})
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, StorageFlags)
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, PublisherFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.logOpts.Debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.flags.Listen)
	AddProxyFlags(cmd, &cmder.flags)
	AddStorageFlags(cmd, &cmder.flags)
	backend.AddLogFlags(cmd, &cmder.logOpts)

	return cmd
}

// AddProxyFlags registers the upstream and publisher flags.
func AddProxyFlags(cmd *cobra.Command, f *Flags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &f.Upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagResponseNode, &f.ResponseNode)
	config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &f.Timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &f.EventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.KafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.KafkaTopic)
}

// AddStorageFlags registers the storage flags.
func AddStorageFlags(cmd *cobra.Command, f *Flags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &f.Storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.SQLite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.PostgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagLibSQLURL, &f.LibSQLURL)
}

func (c *proxyCommander) run() error {
	log, closeLog, err := backend.NewServiceLogger(os.Stderr, c.logOpts)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	driver, err := backend.StepOpenStorage(context.Background(), os.Stderr, c.viper, c.confDir, log)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.OpenPublisher(c.viper, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	p, err := proxy.New(NewConfig(c.viper, c.viper.GetString("proxy.listen"), publisher), driver, log)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	log.Info("starting proxy server",
		"listen", c.viper.GetString("proxy.listen"),
		"upstream", c.viper.GetString("proxy.upstream"),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// NewConfig builds a proxy.Config from the proxy.* and client.* keys.
func NewConfig(v *viper.Viper, listen string, publisher eventstream.Publisher) proxy.Config {
	return proxy.Config{
		ListenAddr:   listen,
		UpstreamURL:  v.GetString("proxy.upstream"),
		ResponseNode: v.GetString("client.response_node"),
		Timeout:      v.GetDuration("client.timeout"),
		Publisher:    publisher,
	}
}
