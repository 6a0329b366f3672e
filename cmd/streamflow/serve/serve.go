// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamflow/api"
	"github.com/papercomputeco/streamflow/cmd/streamflow/backend"
	apicmder "github.com/papercomputeco/streamflow/cmd/streamflow/serve/api"
	proxycmder "github.com/papercomputeco/streamflow/cmd/streamflow/serve/proxy"
	"github.com/papercomputeco/streamflow/pkg/config"
	"github.com/papercomputeco/streamflow/proxy"
)

type ServeCommander struct {
	flags     proxycmder.Flags
	apiListen string
	logOpts   backend.LogOptions
	viper     *viper.Viper
	configDir string
}

const serveLongDesc string = `Run streamflow services.

Use subcommands to run individual services or all services together:
  streamflow serve          Run both proxy and API server together
  streamflow serve api      Run just the API server
  streamflow serve proxy    Run just the recording proxy

Both services share one storage driver.`

const serveShortDesc string = "Run streamflow services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, []string{
				config.FlagProxyListen,
				config.FlagAPIListen,
				config.FlagUpstream,
				config.FlagResponseNode,
				config.FlagTimeout,
			})
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, proxycmder.StorageFlags)
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, proxycmder.PublisherFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.logOpts.Debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.flags.Listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	proxycmder.AddProxyFlags(cmd, &cmder.flags)
	proxycmder.AddStorageFlags(cmd, &cmder.flags)
	backend.AddLogFlags(cmd, &cmder.logOpts)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run() error {
	log, closeLog, err := backend.NewServiceLogger(os.Stderr, c.logOpts)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	// Create shared driver
	driver, err := backend.StepOpenStorage(context.Background(), os.Stderr, c.viper, c.configDir, log)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.OpenPublisher(c.viper, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	proxyListen := c.viper.GetString("proxy.listen")
	p, err := proxy.New(proxycmder.NewConfig(c.viper, proxyListen, publisher), driver, log)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	log.Info("starting proxy",
		"proxy_addr", proxyListen,
		"upstream", c.viper.GetString("proxy.upstream"),
	)

	apiListen := c.viper.GetString("api.listen")
	apiServer := api.NewServer(api.Config{ListenAddr: apiListen}, driver, log)
	defer func() { _ = apiServer.Shutdown() }()

	log.Info("starting api server", "api_addr", apiListen)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
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
