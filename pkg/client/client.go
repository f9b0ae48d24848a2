// Package client is the HTTP client for the passage API server, used by the
// CLI commands that talk to a running `passage serve`.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/passagehq/passage/api"
	"github.com/passagehq/passage/pkg/pipeline"
	"github.com/passagehq/passage/pkg/rag"
)

// defaultTimeout bounds every API call. Sized for query requests, which
// block on the generation backend.
const defaultTimeout = 120 * time.Second

// APIError is a non-2xx response from the API server.
type APIError struct {
	StatusCode int
	Message    string

	// Evidence carries the retrieved passages when answer synthesis failed
	// (HTTP 502), so callers can fall back to presenting them raw.
	Evidence []rag.EvidenceItem
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client calls the passage REST API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a Client for the API server at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", baseURL)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Ping checks that the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var pong string
	return c.get(ctx, "/ping", &pong)
}

// Status reports document, chunk, and index counts plus the providers the
// server was assembled with.
func (c *Client) Status(ctx context.Context) (*pipeline.Status, error) {
	var status pipeline.Status
	if err := c.get(ctx, "/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Ingest submits one document for ingestion. A failed ingestion is not a
// client error: the server reports it with 202 and the result carries the
// stage the pipeline stopped at.
func (c *Client) Ingest(ctx context.Context, req api.IngestRequest) (*rag.IngestionResult, error) {
	var result rag.IngestionResult
	if err := c.post(ctx, "/v1/ingest", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Query asks a question over the ingested documents. When generation is
// degraded the returned *APIError carries the retrieved evidence.
func (c *Client) Query(ctx context.Context, req api.QueryRequest) (*rag.Answer, error) {
	var answer rag.Answer
	if err := c.post(ctx, "/v1/query", req, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Search retrieves the passages most similar to query without synthesizing
// an answer. Zero values leave the corresponding parameter to the server's
// configured default; documentID restricts results to a single document.
func (c *Client) Search(ctx context.Context, query string, topK int, threshold float64, documentID string) (*api.SearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	if topK > 0 {
		params.Set("top_k", strconv.Itoa(topK))
	}
	if threshold > 0 {
		params.Set("threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	}
	if documentID != "" {
		params.Set("document_id", documentID)
	}

	var response api.SearchResponse
	if err := c.get(ctx, "/v1/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Documents lists every ingested document.
func (c *Client) Documents(ctx context.Context) (*api.DocumentsResponse, error) {
	var response api.DocumentsResponse
	if err := c.get(ctx, "/v1/documents", &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Document fetches a single document by ID.
func (c *Client) Document(ctx context.Context, id string) (*rag.Document, error) {
	var doc rag.Document
	if err := c.get(ctx, "/v1/documents/"+url.PathEscape(id), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document, its chunks, and its index records.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/documents/"+url.PathEscape(id), nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to passage API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apiError(resp.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// apiError shapes a non-2xx response into an *APIError, falling back to the
// raw body when it is not the standard error envelope.
func apiError(status int, payload []byte) error {
	var envelope rag.ErrorResponse
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error != "" {
		return &APIError{
			StatusCode: status,
			Message:    envelope.Error,
			Evidence:   envelope.Evidence,
		}
	}

	return &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(string(payload)),
	}
}
