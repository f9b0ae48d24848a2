// Package retrieval turns a natural-language query into a ranked evidence
// set by embedding the query and searching the vector index.
package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/vector"
)

const (
	// oversampleFactor scales k when querying the index so threshold and
	// de-duplication filtering still leave enough candidates.
	oversampleFactor = 3

	// oversampleMin is the smallest candidate set requested from the index.
	oversampleMin = 20
)

// Retriever embeds queries and ranks matching chunks from the vector index.
type Retriever struct {
	embedder embeddings.Embedder
	index    vector.Driver
	logger   *zap.Logger
}

// New creates a Retriever over the given embedder and index.
func New(embedder embeddings.Embedder, index vector.Driver, logger *zap.Logger) *Retriever {
	logger.Debug("creating retriever")

	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Retrieve returns up to k evidence items for the query, scores descending
// with ties broken by ascending chunk ID. Items scoring below threshold are
// dropped, and near-duplicate chunks from the same document region collapse
// to their highest-scoring representative. An empty result means no grounded
// answer is possible; it is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, threshold float64, filters vector.Filters) ([]rag.EvidenceItem, error) {
	if k <= 0 {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	embedding = embeddings.Normalize(embedding)

	oversample := k * oversampleFactor
	if oversample < oversampleMin {
		oversample = oversampleMin
	}

	results, err := r.index.Search(ctx, embedding, oversample, filters)
	if err != nil {
		return nil, err
	}

	kept := results[:0]
	for _, res := range results {
		if float64(res.Score) >= threshold {
			kept = append(kept, res)
		}
	}

	collapsed := collapse(kept)

	sort.Slice(collapsed, func(i, j int) bool {
		if collapsed[i].Score != collapsed[j].Score {
			return collapsed[i].Score > collapsed[j].Score
		}
		return collapsed[i].ChunkID < collapsed[j].ChunkID
	})
	if len(collapsed) > k {
		collapsed = collapsed[:k]
	}

	evidence := make([]rag.EvidenceItem, 0, len(collapsed))
	for i, res := range collapsed {
		evidence = append(evidence, rag.EvidenceItem{
			ChunkID:    res.ChunkID,
			DocumentID: res.DocumentID,
			Text:       res.Text,
			Score:      res.Score,
			Rank:       i + 1,
		})
	}

	r.logger.Debug("retrieved evidence",
		zap.String("query", query),
		zap.Int("candidates", len(results)),
		zap.Int("returned", len(evidence)),
	)

	return evidence, nil
}

// collapse merges results whose chunk spans overlap or touch within the same
// document, keeping the highest-scoring representative of each contiguous
// region. Ties go to the smaller chunk ID.
func collapse(results []vector.SearchResult) []vector.SearchResult {
	if len(results) <= 1 {
		return results
	}

	byDocument := make(map[string][]vector.SearchResult)
	for _, res := range results {
		byDocument[res.DocumentID] = append(byDocument[res.DocumentID], res)
	}

	collapsed := make([]vector.SearchResult, 0, len(results))
	for _, group := range byDocument {
		sort.Slice(group, func(i, j int) bool {
			if group[i].Start != group[j].Start {
				return group[i].Start < group[j].Start
			}
			return group[i].ChunkID < group[j].ChunkID
		})

		best := group[0]
		regionEnd := group[0].End
		for _, res := range group[1:] {
			if res.Start <= regionEnd {
				if res.End > regionEnd {
					regionEnd = res.End
				}
				if res.Score > best.Score || (res.Score == best.Score && res.ChunkID < best.ChunkID) {
					best = res
				}
				continue
			}

			collapsed = append(collapsed, best)
			best = res
			regionEnd = res.End
		}
		collapsed = append(collapsed, best)
	}

	return collapsed
}
