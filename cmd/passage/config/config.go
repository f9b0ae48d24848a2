// Package configcmder provides the config command for managing persistent
// passage configuration stored in the .passage/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent passage configuration.

Configuration is stored as config.toml in the .passage/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path,
  api.listen, client.api_target,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  generation.provider, generation.target, generation.model,
  chunking.size, chunking.overlap,
  retrieval.top_k, retrieval.threshold

Use subcommands to get, set, or list configuration values:
  passage config set <key> <value>    Set a configuration value
  passage config get <key>            Get a configuration value
  passage config list                 List all configuration values

Examples:
  passage config set embedding.model nomic-embed-text
  passage config set retrieval.top_k 10
  passage config get generation.provider
  passage config list`

const configShortDesc string = "Manage persistent passage configuration"

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
