package main

import (
	"os"

	streamflowcmder "github.com/papercomputeco/streamflow/cmd/streamflow"
)

func main() {
	cmd := streamflowcmder.NewStreamflowCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
