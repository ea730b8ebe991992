package matching

import "sort"

// pruneFloor is the minimum posting-list length that pruning will ever
// remove, so tiny catalogs keep all their tokens.
const pruneFloor = 10

// candidateIndex is an inverted index from token to the B-side markets
// containing it. It turns the quadratic all-pairs comparison into a
// candidate lookup: an A-side market is only scored against B-side
// markets sharing at least one discriminating token.
type candidateIndex struct {
	postings map[string][]int
	size     int
}

// buildIndex indexes the B-side keyword sets. Tokens whose posting list
// covers more than about a fifth of the catalog are dropped: a token
// carried by most markets selects nothing.
func buildIndex(keywords []*Keywords) *candidateIndex {
	idx := &candidateIndex{
		postings: make(map[string][]int),
		size:     len(keywords),
	}

	for i, kw := range keywords {
		if kw == nil {
			continue
		}
		for _, token := range kw.indexTokens() {
			idx.postings[token] = append(idx.postings[token], i)
		}
	}

	limit := len(keywords) / 5
	if limit < pruneFloor {
		limit = pruneFloor
	}
	for token, list := range idx.postings {
		if len(list) > limit {
			delete(idx.postings, token)
		}
	}

	return idx
}

// candidates returns the B-side indices sharing at least one index token
// with kw, in ascending order for deterministic iteration.
func (idx *candidateIndex) candidates(kw *Keywords) []int {
	seen := make(map[int]struct{})
	for _, token := range kw.indexTokens() {
		for _, i := range idx.postings[token] {
			seen[i] = struct{}{}
		}
	}

	result := make([]int, 0, len(seen))
	for i := range seen {
		result = append(result, i)
	}
	sort.Ints(result)

	return result
}
