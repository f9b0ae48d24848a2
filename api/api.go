package api

import (
	"errors"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/passagehq/passage/api/mcp"
	"github.com/passagehq/passage/pkg/pipeline"
)

// Server is the API server for ingesting, querying, and managing documents.
type Server struct {
	config   Config
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	app      *fiber.App
	validate *validator.Validate
}

// NewServer creates a new API server over an assembled pipeline. The
// pipeline is injected so the server shares components with other surfaces
// (e.g. an ingestion pool run alongside it). A pipeline without a
// synthesizer serves every route except /v1/query, which reports 503.
func NewServer(config Config, p *pipeline.Pipeline, logger *zap.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	if p.Store == nil {
		return nil, errors.New("document store is required")
	}
	if p.Index == nil {
		return nil, errors.New("vector index is required")
	}
	if p.Orchestrator == nil {
		return nil, errors.New("ingestion orchestrator is required")
	}
	if p.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		pipeline: p,
		logger:   logger,
		app:      app,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/status", s.handleStatus)
	app.Post("/v1/ingest", s.handleIngest)
	app.Post("/v1/query", s.handleQuery)
	app.Get("/v1/search", s.handleSearch)
	app.Get("/v1/documents", s.handleListDocuments)
	app.Get("/v1/documents/:id", s.handleGetDocument)
	app.Delete("/v1/documents/:id", s.handleDeleteDocument)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Retriever:   p.Retriever,
		Synthesizer: p.Synthesizer,
		TopK:        int(p.Config.Retrieval.TopK),
		Threshold:   p.Config.Retrieval.Threshold,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", listener.Addr().String()),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
