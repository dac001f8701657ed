// Package configcmder provides the config command for managing persistent
// algoqa configuration stored in the .algoqa/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent algoqa configuration.

Configuration is stored as config.toml in the .algoqa/ directory and provides
default values for command flags. ALGOQA_* environment variables override
the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  client.base_url, client.token, client.timeout, client.top_k,
  decoder.unrecognized, decoder.read_buffer,
  proxy.listen, proxy.upstream,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  algoqa config set <key> <value>    Set a configuration value
  algoqa config get <key>            Get a configuration value
  algoqa config list                 List all configuration values

Examples:
  algoqa config set client.base_url https://qa.example.com/api
  algoqa config set decoder.unrecognized report
  algoqa config get storage.driver
  algoqa config list`

const configShortDesc string = "Manage persistent algoqa configuration"

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

// completeKeys offers config keys for the first positional argument.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return validKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
