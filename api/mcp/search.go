package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/vector"
)

var (
	searchToolName    = "search"
	searchDescription = "Search ingested documents using semantic similarity. Returns the most relevant text passages with their document IDs and similarity scores."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant passages"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string             `json:"query"`
	Results []rag.EvidenceItem `json:"results"`
	Count   int                `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	// Default topK if not specified
	topK := input.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	logger.Debug("MCP search request",
		zap.String("query", input.Query),
		zap.Int("topK", topK),
	)

	evidence, err := s.config.Retriever.Retrieve(ctx, input.Query, topK, s.config.Threshold, vector.Filters{})
	if err != nil {
		logger.Error("failed to retrieve evidence", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to search documents: %v", err)},
			},
		}, SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: evidence,
		Count:   len(evidence),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
