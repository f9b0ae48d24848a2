package vector

import "sort"

// SortResults orders results by descending score, breaking score ties by
// ascending chunk ID so equal-scored results rank deterministically. Every
// driver applies it before returning search results.
func SortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
