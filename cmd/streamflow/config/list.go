package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every key grouped by its TOML section (client, proxy, storage,
eventstream, notifications, ...) with the value from the config.toml file
stored in the .streamflow/ directory. Keys without a value fall back to
their defaults at runtime.

Use --section to show a single section.

Examples:
  streamflow config list
  streamflow config list --section client
  streamflow config list --config-dir ./project/.streamflow`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	var section string

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir, section)
		},
	}

	cmd.Flags().StringVar(&section, "section", "", "Only list keys in this section")

	return cmd
}

func runList(w io.Writer, configDir, section string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
	} else {
		fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	var keys []string
	for _, k := range config.ValidConfigKeys() {
		if section == "" || sectionOf(k) == section {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("unknown config section: %q", section)
	}

	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(k))
	}

	current := ""
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		if s := sectionOf(key); s != current {
			current = s
			fmt.Fprintf(w, "\n  %s\n", cliui.TitleStyle.Render("["+s+"]"))
		}

		padded := fmt.Sprintf("%-*s", maxLen, key)
		if value == "" {
			fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render(padded), cliui.DimStyle.Render("<not set>"))
		} else {
			fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render(padded), cliui.ValueStyle.Render(value))
		}
	}
	fmt.Fprintln(w)

	return nil
}

func sectionOf(key string) string {
	s, _, _ := strings.Cut(key, ".")
	return s
}
