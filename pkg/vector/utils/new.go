// Package vectorutils is the vector store utility package
package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/vector"
	"github.com/passagehq/passage/pkg/vector/chroma"
	"github.com/passagehq/passage/pkg/vector/memory"
	"github.com/passagehq/passage/pkg/vector/pgvector"
	"github.com/passagehq/passage/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is provider-specific: a file path for sqlite, a DSN for
	// pgvector, a base URL for chroma. Ignored by the memory provider.
	TargetURL string

	// Dimensions fixes the embedding width for providers that need it at
	// table-creation time (sqlite, pgvector).
	Dimensions uint

	// Collection names the chroma collection. Empty uses the provider default.
	Collection string

	Logger *zap.Logger
}

// NewVectorDriver builds the vector index driver for the configured provider.
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "memory":
		return memory.NewDriver(), nil
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{
			DSN:        o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(ctx, chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
