// Package apicmder provides the streamflow API server cobra command.
package apicmder

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
	proxycmder "github.com/papercomputeco/streamflow/cmd/streamflow/serve/proxy"
	"github.com/papercomputeco/streamflow/pkg/config"
)

type apiCommander struct {
	flags   proxycmder.Flags
	logOpts backend.LogOptions
	viper   *viper.Viper
	confDir string
}

const apiLongDesc string = `Run the streamflow API server for inspecting recorded sessions and turns.`

const apiShortDesc string = "Run the streamflow API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.confDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.confDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, []string{config.FlagAPIListenStandalone})
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, proxycmder.StorageFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.flags.Listen)
	proxycmder.AddStorageFlags(cmd, &cmder.flags)
	backend.AddLogFlags(cmd, &cmder.logOpts)

	return cmd
}

func (c *apiCommander) run() error {
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

	listen := c.viper.GetString("api.listen")
	server := api.NewServer(api.Config{ListenAddr: listen}, driver, log)
	defer func() { _ = server.Shutdown() }()

	log.Info("starting API server", "listen", listen)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
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
