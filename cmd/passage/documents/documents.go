// Package documentscmder provides the documents command for listing and
// deleting ingested documents.
package documentscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passagehq/passage/pkg/client"
	"github.com/passagehq/passage/pkg/cliui"
	"github.com/passagehq/passage/pkg/config"
)

const documentsLongDesc string = `Manage the ingested documents.

Use subcommands to list documents or delete one, along with its chunks and
index records:
  passage documents list          List all ingested documents
  passage documents delete <id>   Delete a document

Examples:
  passage documents list
  passage documents delete report.txt`

const documentsShortDesc string = "Manage ingested documents"

func NewDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: documentsShortDesc,
		Long:  documentsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// resolveTarget applies the config-file API target unless the flag was set
// explicitly.
func resolveTarget(cmd *cobra.Command, apiTarget *string) error {
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
		*apiTarget = cfg.Client.APITarget
	}
	return nil
}

const listLongDesc string = `List all ingested documents.

Shows each document's ID, source filename, and ingestion time, as reported
by the passage API server.

Examples:
  passage documents list`

func newListCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all ingested documents",
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveTarget(cmd, &apiTarget)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), apiTarget)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runList(ctx context.Context, apiTarget string) error {
	cli, err := client.New(apiTarget)
	if err != nil {
		return err
	}

	response, err := cli.Documents(ctx)
	if err != nil {
		return err
	}

	if response.Count == 0 {
		fmt.Printf("\n  %s No documents ingested yet. Use 'passage ingest <files...>' to add some.\n\n",
			cliui.DimStyle.Render("●"),
		)
		return nil
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.HeaderStyle.Render("Documents"),
		cliui.DimStyle.Render(fmt.Sprintf("(%d)", response.Count)),
	)

	for _, doc := range response.Documents {
		filename := doc.Filename
		if filename == "" {
			filename = "<no filename>"
		}

		fmt.Printf("  %s %s %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(doc.ID),
			cliui.DimStyle.Render(filename),
			cliui.DimStyle.Render(doc.IngestedAt.Format("2006-01-02 15:04")),
		)
	}
	fmt.Println()

	return nil
}

const deleteLongDesc string = `Delete an ingested document.

Removes the document, its stored chunks, and its vector index records, and
publishes a deletion event.

Examples:
  passage documents delete report.txt`

func newDeleteCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an ingested document",
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveTarget(cmd, &apiTarget)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), apiTarget, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runDelete(ctx context.Context, apiTarget, id string) error {
	cli, err := client.New(apiTarget)
	if err != nil {
		return err
	}

	if err := cli.DeleteDocument(ctx, id); err != nil {
		return err
	}

	fmt.Printf("\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
	return nil
}
