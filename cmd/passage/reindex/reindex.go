// Package reindexcmder provides the reindex command for repairing or
// rebuilding the vector index from the document store.
package reindexcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/dotdir"
	"github.com/passagehq/passage/pkg/ingest"
	"github.com/passagehq/passage/pkg/logger"
	"github.com/passagehq/passage/pkg/pipeline"
)

const reindexLongDesc string = `Re-embed stored chunks and repair the vector index.

By default only documents with chunks missing from the index are repaired,
which recovers from a crash between the store and index commits. With --all
every stored document is re-embedded, which rebuilds the index after an
embedding model change.

Chunks are re-embedded from their stored text; the original source files are
not needed.

Examples:
  passage reindex
  passage reindex --dry-run
  passage reindex --all
  passage reindex --all --embedding-model mxbai-embed-large`

const reindexShortDesc string = "Repair or rebuild the vector index"

type reindexCommander struct {
	all    bool
	dryRun bool

	storageProvider string
	sqlitePath      string
	vectorProvider  string
	vectorTarget    string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDims       uint

	debug     bool
	configDir string
	cfg       *config.Config
	logger    *zap.Logger
}

var reindexFlagKeys = []string{
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

func NewReindexCmd() *cobra.Command {
	cmder := &reindexCommander{}

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: reindexShortDesc,
		Long:  reindexLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, reindexFlagKeys)

			cmder.cfg = config.FromViper(v)
			return config.Validate(cmder.cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.all, "all", false, "re-embed every stored document, not just gaps")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "preview what would be reindexed without writing")
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageProv, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)

	return cmd
}

func (c *reindexCommander) run(ctx context.Context, cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run mode — no changes will be written")
	}

	dataDir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	p, err := pipeline.NewIngestion(ctx, c.cfg, dataDir, c.logger)
	if err != nil {
		return fmt.Errorf("assembling pipeline: %w", err)
	}
	defer p.Close()

	r := p.NewReindexer(ingest.Options{
		All:    c.all,
		DryRun: c.dryRun,
	})

	result, err := r.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	return nil
}
