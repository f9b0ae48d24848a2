// Package api provides the HTTP API server for ingesting, querying, and
// managing documents.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
