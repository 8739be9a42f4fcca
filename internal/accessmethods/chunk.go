package accessmethods

import "github.com/mohammed-shakir/catalog-gateway/internal/state"

// DefaultChunkThreshold is the largest number of granules one order may hold.
const DefaultChunkThreshold = 2000

// ChunkCount is the number of sub-orders needed for a project collection.
// Explicitly added granules replace the collection's hit count.
func ChunkCount(pc state.ProjectCollection, hits, threshold int) int {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	n := hits
	if len(pc.AddedGranuleIDs) > 0 {
		n = len(pc.AddedGranuleIDs)
	}
	c := n / threshold
	if n%threshold != 0 {
		c++
	}
	if c < 1 {
		return 1
	}
	return c
}

// ShouldAttachOrderCount reports whether orderCount is meaningful for the
// caller: more granules than one chunk holds, or an explicit selection.
func ShouldAttachOrderCount(pc state.ProjectCollection, hits, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	return hits > threshold || len(pc.AddedGranuleIDs) > 0
}
