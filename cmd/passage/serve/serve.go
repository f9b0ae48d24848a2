// Package servecmder provides the serve command for running the passage API
// server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passagehq/passage/api"
	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/dotdir"
	"github.com/passagehq/passage/pkg/logger"
	"github.com/passagehq/passage/pkg/pipeline"
)

type serveCommander struct {
	listen          string
	storageProvider string
	sqlitePath      string
	vectorProvider  string
	vectorTarget    string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDims       uint
	embedCache      string
	genProvider     string
	genTarget       string
	genModel        string
	eventsProvider  string
	eventsBrokers   string
	eventsTopic     string

	debug     bool
	configDir string
	cfg       *config.Config
	logger    *zap.Logger
}

// serveFlagKeys are the registry flags the serve command exposes and binds
// into the viper precedence chain.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEmbeddingCache,
	config.FlagGenerationProv,
	config.FlagGenerationTgt,
	config.FlagGenerationModel,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the passage API server.

Assembles the full pipeline (chunker, embedder, vector index, document store,
generation backend) from configuration and serves the REST API, including the
/mcp endpoint for MCP clients.

On startup the index integrity check runs: vector records whose chunks are
missing from the document store are purged before any query is served.

Configuration precedence: flags, then PASSAGE_* environment variables, then
config.toml in the .passage/ directory, then defaults.

Examples:
  passage serve
  passage serve --listen :9090
  passage serve --vector-store-provider pgvector --vector-store-target postgres://localhost/passage
  passage serve --events-provider kafka --events-brokers localhost:9092`

const serveShortDesc string = "Run the passage API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)

			cmder.cfg = config.FromViper(v)
			return config.Validate(cmder.cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageProv, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingCache, &cmder.embedCache)
	config.AddStringFlag(cmd, config.Flags, config.FlagGenerationProv, &cmder.genProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagGenerationTgt, &cmder.genTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagGenerationModel, &cmder.genModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if c.cfg.Log.Path != "" {
		c.logger = logger.NewFileLogger(c.debug, c.cfg.Log.Path)
	} else {
		c.logger = logger.NewLogger(c.debug)
	}
	defer func() { _ = c.logger.Sync() }()

	dataDir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	p, err := pipeline.New(ctx, c.cfg, dataDir, c.logger)
	if err != nil {
		return fmt.Errorf("assembling pipeline: %w", err)
	}
	defer p.Close()

	// Reconcile the index against the document store before serving: orphaned
	// vector records must never reach a query result.
	purged, err := p.Orchestrator.CheckIntegrity(ctx)
	if err != nil {
		return fmt.Errorf("index integrity check: %w", err)
	}
	if purged > 0 {
		c.logger.Warn("purged orphaned index records", zap.Int("records", purged))
	}

	server, err := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, p, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("starting API server",
		zap.String("listen", c.cfg.API.Listen),
		zap.String("data_dir", dataDir),
		zap.String("storage", c.cfg.Storage.Provider),
		zap.String("vector_store", c.cfg.VectorStore.Provider),
		zap.String("embedding", c.cfg.Embedding.Provider+"/"+c.cfg.Embedding.Model),
		zap.String("generation", c.cfg.Generation.Provider+"/"+c.cfg.Generation.Model),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
