package main

import (
	"os"

	apicmder "github.com/papercomputeco/streamflow/cmd/streamflow/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "streamflowapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .streamflow/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
