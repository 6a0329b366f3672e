// Package configcmder provides the config command for managing persistent
// streamflow configuration stored in the .streamflow/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent streamflow configuration.

Configuration is stored as config.toml in the .streamflow/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  client.endpoint, client.response_node, client.timeout,
  notifications.ttl,
  proxy.upstream, proxy.listen, api.listen,
  storage.provider, storage.sqlite_path, storage.postgres_dsn, storage.libsql_url,
  eventstream.provider, eventstream.kafka_brokers, eventstream.kafka_topic

Use subcommands to get, set, or list configuration values:
  streamflow config set <key> <value>    Set a configuration value
  streamflow config get <key>            Get a configuration value
  streamflow config list                 List all configuration values

Examples:
  streamflow config set client.endpoint http://localhost:8080/api/chat
  streamflow config set storage.provider postgres
  streamflow config get client.endpoint
  streamflow config list`

const configShortDesc string = "Manage persistent streamflow configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
