// Package ingestcmder provides the ingest command for loading documents into
// the pipeline from files.
package ingestcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/cliui"
	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/dotdir"
	"github.com/passagehq/passage/pkg/logger"
	"github.com/passagehq/passage/pkg/pipeline"
	"github.com/passagehq/passage/pkg/rag"
)

type ingestCommander struct {
	workers         uint
	chunkSize       uint
	chunkOverlap    uint
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

var ingestFlagKeys = []string{
	config.FlagWorkers,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const ingestLongDesc string = `Ingest documents from files.

Each file becomes one document: its text is chunked, embedded, and committed
to the vector index and document store. Documents are keyed by base filename,
so re-ingesting a file replaces the previous version instead of appending a
duplicate.

Files are ingested in parallel on a bounded worker pool. A document either
reaches the index completely or not at all; per-file failures are reported
individually and do not stop the batch.

Examples:
  passage ingest notes.txt
  passage ingest docs/*.md --workers 5
  passage ingest report.txt --chunk-size 500 --chunk-overlap 50`

const ingestShortDesc string = "Ingest documents from files"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, ingestFlagKeys)

			cmder.cfg = config.FromViper(v)
			return config.Validate(cmder.cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
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

func (c *ingestCommander) run(ctx context.Context, paths []string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	dataDir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	p, err := pipeline.NewIngestion(ctx, c.cfg, dataDir, c.logger)
	if err != nil {
		return fmt.Errorf("assembling pipeline: %w", err)
	}
	defer p.Close()

	var reqs []rag.IngestRequest
	err = cliui.Step(os.Stdout, fmt.Sprintf("Reading %d file(s)", len(paths)), func() error {
		var rerr error
		reqs, rerr = readRequests(paths)
		return rerr
	})
	if err != nil {
		return err
	}

	var results []rag.IngestionResult
	msg := fmt.Sprintf("Ingesting %d document(s), %d workers", len(reqs), c.cfg.Ingest.Workers)
	_ = cliui.Step(os.Stdout, msg, func() error {
		results = p.Orchestrator.IngestBatch(ctx, reqs, c.cfg.Ingest.Workers)
		return nil
	})

	fmt.Println()
	failures := 0
	for _, res := range results {
		if res.Status == rag.StatusIndexed {
			fmt.Printf("  %s %s %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(res.DocumentID),
				cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", res.ChunkCount)),
			)
			continue
		}

		failures++
		fmt.Printf("  %s %s %s\n",
			cliui.FailMark,
			cliui.NameStyle.Render(res.DocumentID),
			cliui.DimStyle.Render(fmt.Sprintf("failed at %s: %s", res.Stage, res.Error)),
		)
	}
	fmt.Println()

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(results))
	}
	return nil
}

func readRequests(paths []string) ([]rag.IngestRequest, error) {
	reqs := make([]rag.IngestRequest, 0, len(paths))
	for _, path := range paths {
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		reqs = append(reqs, fileRequest(path, string(text)))
	}
	return reqs, nil
}

// fileRequest keys the document by its base filename so re-ingesting the same
// file replaces the previous version.
func fileRequest(path, text string) rag.IngestRequest {
	name := filepath.Base(path)
	return rag.IngestRequest{
		DocumentID: name,
		Text:       text,
		Filename:   name,
		Metadata:   map[string]string{"source_path": path},
	}
}
