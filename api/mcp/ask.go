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
	askToolName    = "ask"
	askDescription = "Answer a question over the ingested documents. Retrieves the most relevant passages and synthesizes an answer grounded in them, with inline citations back to the source chunks."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the ingested documents"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of evidence passages to retrieve (default: 5)"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Citations  []rag.Citation `json:"citations"`
	Confidence float32        `json:"confidence"`
	Grounded   bool           `json:"grounded"`
}

// handleAsk processes an ask request: retrieval followed by synthesis.
func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	logger.Debug("MCP ask request",
		zap.String("question", input.Question),
		zap.Int("topK", topK),
	)

	evidence, err := s.config.Retriever.Retrieve(ctx, input.Question, topK, s.config.Threshold, vector.Filters{})
	if err != nil {
		logger.Error("failed to retrieve evidence", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to retrieve evidence: %v", err)},
			},
		}, AskOutput{}, nil
	}

	answer, err := s.config.Synthesizer.Synthesize(ctx, input.Question, evidence)
	if err != nil {
		logger.Error("failed to synthesize answer", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to synthesize answer: %v", err)},
			},
		}, AskOutput{}, nil
	}

	output := AskOutput{
		Question:   input.Question,
		Answer:     answer.Text,
		Citations:  answer.Citations,
		Confidence: answer.Confidence,
		Grounded:   answer.Grounded,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal ask output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize answer: %v", err)},
			},
		}, AskOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
