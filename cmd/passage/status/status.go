// Package statuscmder provides the status command for displaying pipeline
// state from a running API server.
package statuscmder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/passagehq/passage/pkg/client"
	"github.com/passagehq/passage/pkg/cliui"
	"github.com/passagehq/passage/pkg/config"
)

const statusLongDesc string = `Show the pipeline status of a running passage API server.

Reports document, chunk, and index counts together with the storage, vector
store, embedding, and generation providers the server was assembled with.

Examples:
  passage status
  passage status --api-target http://localhost:9090`

const statusShortDesc string = "Show pipeline status"

func NewStatusCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), apiTarget)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runStatus(ctx context.Context, apiTarget string) error {
	cli, err := client.New(apiTarget)
	if err != nil {
		return err
	}

	status, err := cli.Status(ctx)
	if err != nil {
		return err
	}

	row := func(key, value string) {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-16s", key)), cliui.ValueStyle.Render(value))
	}

	fmt.Printf("\n  %s\n\n", cliui.HeaderStyle.Render("Passage status"))
	row("Documents:", strconv.Itoa(status.Documents))
	row("Chunks:", strconv.Itoa(status.Chunks))
	row("Indexed records:", strconv.Itoa(status.IndexedRecords))
	fmt.Println()
	row("Storage:", status.StorageProvider)
	row("Vector store:", status.VectorProvider)
	row("Embedding:", status.EmbeddingProvider+"/"+status.EmbeddingModel)
	if status.GenerationProvider != "" {
		row("Generation:", status.GenerationProvider+"/"+status.GenerationModel)
	}
	fmt.Println()

	if status.Chunks != status.IndexedRecords {
		fmt.Printf("  %s store and index are out of sync; run 'passage reindex'\n\n",
			cliui.WarnStyle.Render("!"),
		)
	}

	return nil
}
