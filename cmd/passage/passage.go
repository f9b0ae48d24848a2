// Package passagecmder
package passagecmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/passagehq/passage/cmd/passage/ask"
	authcmder "github.com/passagehq/passage/cmd/passage/auth"
	configcmder "github.com/passagehq/passage/cmd/passage/config"
	documentscmder "github.com/passagehq/passage/cmd/passage/documents"
	ingestcmder "github.com/passagehq/passage/cmd/passage/ingest"
	initcmder "github.com/passagehq/passage/cmd/passage/init"
	reindexcmder "github.com/passagehq/passage/cmd/passage/reindex"
	searchcmder "github.com/passagehq/passage/cmd/passage/search"
	servecmder "github.com/passagehq/passage/cmd/passage/serve"
	statuscmder "github.com/passagehq/passage/cmd/passage/status"
	watchcmder "github.com/passagehq/passage/cmd/passage/watch"
	versioncmder "github.com/passagehq/passage/cmd/version"
)

const passageLongDesc string = `Passage ingests documents and answers questions grounded in them.

Documents are chunked, embedded, and indexed into a vector store. Questions
retrieve the most relevant passages and synthesize an answer with citations
back to the source chunks.

Common workflows:
  passage init                    Initialize a local .passage/ directory
  passage serve                   Run the API server
  passage ingest notes.txt        Ingest documents from files
  passage watch ./docs            Continuously ingest a directory
  passage ask "who signed off?"   Ask a question over ingested documents
  passage search "sign-off"       Retrieve passages without synthesis`

const passageShortDesc string = "Passage - Grounded document question answering"

func NewPassageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passage",
		Short: passageShortDesc,
		Long:  passageLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .passage directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(documentscmder.NewDocumentsCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(reindexcmder.NewReindexCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
