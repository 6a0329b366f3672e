// Package streamflowcmder
package streamflowcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/streamflow/cmd/streamflow/chat"
	configcmder "github.com/papercomputeco/streamflow/cmd/streamflow/config"
	replaycmder "github.com/papercomputeco/streamflow/cmd/streamflow/replay"
	servecmder "github.com/papercomputeco/streamflow/cmd/streamflow/serve"
	versioncmder "github.com/papercomputeco/streamflow/cmd/version"
)

const streamflowLongDesc string = `Streamflow is a terminal client and recording proxy for streaming
dashboard assistants.

Chat with an assistant:
  streamflow chat             Interactive chat with a live dashboard
  streamflow replay <file>    Rebuild a turn from a captured stream

Run services using:
  streamflow serve api      Run the API server
  streamflow serve proxy    Run the recording proxy
  streamflow serve          Run both servers together`

const streamflowShortDesc string = "Streamflow - streaming dashboard client"

func NewStreamflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "streamflow",
		Short:        streamflowShortDesc,
		Long:         streamflowLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .streamflow/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
