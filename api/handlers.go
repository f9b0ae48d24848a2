package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage"
	"github.com/passagehq/passage/pkg/vector"
)

// IngestRequest is the POST /v1/ingest payload. The document ID is optional;
// omitting it ingests the text under a generated uuid.
type IngestRequest struct {
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text" validate:"required"`
	Filename   string            `json:"filename"`
	Metadata   map[string]string `json:"metadata"`
}

// QueryRequest is the POST /v1/query payload.
type QueryRequest struct {
	Question string `json:"question" validate:"required"`

	// TopK bounds the evidence set; zero uses the configured default.
	TopK int `json:"top_k" validate:"omitempty,gte=1,lte=100"`

	// Threshold overrides the configured similarity threshold. A pointer so
	// an explicit zero is distinguishable from absent.
	Threshold *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`

	Filters QueryFilters `json:"filters"`
}

// QueryFilters restricts retrieval before ranking.
type QueryFilters struct {
	DocumentIDs []string          `json:"document_ids"`
	Metadata    map[string]string `json:"metadata"`
}

// SearchResponse is the GET /v1/search response body.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []rag.EvidenceItem `json:"results"`
	Count   int                `json:"count"`
}

// DocumentsResponse is the GET /v1/documents response body.
type DocumentsResponse struct {
	Count     int             `json:"count"`
	Documents []*rag.Document `json:"documents"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus reports store and index counts plus the configured providers.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status, err := s.pipeline.Status(c.Context())
	if err != nil {
		s.logger.Error("failed to read pipeline status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(rag.ErrorResponse{Error: "failed to read status"})
	}

	return c.JSON(status)
}

// handleIngest runs one document through the ingestion pipeline. The result
// is returned with 200 when every chunk reached the index and 202 when the
// pipeline stopped at a failure stage, with the stage reported in the body.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: err.Error()})
	}

	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}

	result := s.pipeline.Orchestrator.Ingest(c.Context(), rag.IngestRequest{
		DocumentID: req.DocumentID,
		Text:       req.Text,
		Filename:   req.Filename,
		Metadata:   req.Metadata,
	})

	if result.Status == rag.StatusFailed {
		return c.Status(fiber.StatusAccepted).JSON(result)
	}

	return c.JSON(result)
}

// handleQuery answers a question over the indexed documents. When the
// generation backend is exhausted the retrieved evidence is still returned
// alongside the error so the caller can fall back to raw passages.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	if s.pipeline.Synthesizer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(rag.ErrorResponse{
			Error: "answer synthesis is not configured: generation backend is required",
		})
	}

	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: err.Error()})
	}

	topK := req.TopK
	if topK <= 0 {
		topK = int(s.pipeline.Config.Retrieval.TopK)
	}
	threshold := s.pipeline.Config.Retrieval.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	ctx := c.Context()
	evidence, err := s.pipeline.Retriever.Retrieve(ctx, req.Question, topK, threshold, vector.Filters{
		DocumentIDs: req.Filters.DocumentIDs,
		Metadata:    req.Filters.Metadata,
	})
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		status := fiber.StatusInternalServerError
		if errors.Is(err, rag.ErrEmbeddingUnavailable) {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(rag.ErrorResponse{Error: err.Error()})
	}

	answer, err := s.pipeline.Synthesizer.Synthesize(ctx, req.Question, evidence)
	if err != nil {
		s.logger.Error("answer synthesis failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(rag.ErrorResponse{
			Error:    err.Error(),
			Evidence: evidence,
		})
	}

	return c.JSON(answer)
}

// handleSearch runs retrieval only, without answer synthesis.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional): number of results to return
//   - threshold (optional): minimum similarity score in [0,1]
//   - document_id (optional): restrict results to one document
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := int(s.pipeline.Config.Retrieval.TopK)
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	threshold := s.pipeline.Config.Retrieval.Threshold
	if thresholdStr := c.Query("threshold"); thresholdStr != "" {
		parsed, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{
				Error: "threshold must be a number between 0 and 1",
			})
		}
		threshold = parsed
	}

	var filters vector.Filters
	if documentID := c.Query("document_id"); documentID != "" {
		filters.DocumentIDs = []string{documentID}
	}

	evidence, err := s.pipeline.Retriever.Retrieve(c.Context(), query, topK, threshold, filters)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		status := fiber.StatusInternalServerError
		if errors.Is(err, rag.ErrEmbeddingUnavailable) {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(rag.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(SearchResponse{
		Query:   query,
		Results: evidence,
		Count:   len(evidence),
	})
}

// handleListDocuments returns all stored documents.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	docs, err := s.pipeline.Store.ListDocuments(c.Context())
	if err != nil {
		s.logger.Error("failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(rag.ErrorResponse{Error: "failed to list documents"})
	}

	return c.JSON(DocumentsResponse{
		Count:     len(docs),
		Documents: docs,
	})
}

// handleGetDocument returns a single document by ID.
func (s *Server) handleGetDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := s.pipeline.Store.GetDocument(c.Context(), id)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(rag.ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to get document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(rag.ErrorResponse{Error: "failed to get document"})
	}

	return c.JSON(doc)
}

// handleDeleteDocument removes a document from the store and purges its
// indexed chunks.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.pipeline.Orchestrator.Delete(c.Context(), id); err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(rag.ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to delete document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(rag.ErrorResponse{Error: "failed to delete document"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
