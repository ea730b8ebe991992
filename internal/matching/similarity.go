package matching

import "strings"

// Component weights of the similarity score. Set components run first;
// the string similarity only runs when they clear the early-exit floor.
const (
	weightEntities = 0.25
	weightNumbers  = 0.20
	weightWords    = 0.35
	weightTitle    = 0.20

	earlyExitFloor = 0.15
)

// Exit and stay vocabularies for the directional reversal constraint.
// A shared entity plus one word from each set means the two titles ask
// opposite questions about the same subject.
var (
	exitWords = map[string]struct{}{
		"out": {}, "leave": {}, "resign": {}, "removed": {}, "fired": {},
		"ousted": {}, "impeach": {}, "depart": {}, "step": {}, "quit": {},
	}
	stayWords = map[string]struct{}{
		"remain": {}, "stay": {}, "continue": {}, "retain": {}, "keep": {},
		"hold": {}, "serve": {}, "reelect": {}, "win": {},
	}
)

// similarity scores two markets in [0,1]. A hard-constraint violation
// returns 0 with the rejection reason; reason is empty otherwise.
func similarity(a, b *Keywords, titleA, titleB string) (float64, string) {
	if bothNonEmptyDisjoint(a.years, b.years) {
		return 0, "year_conflict"
	}
	if bothNonEmptyDisjoint(a.prices, b.prices) {
		return 0, "price_conflict"
	}
	if len(a.Words) >= 2 && len(b.Words) >= 2 && disjoint(a.Words, b.Words) {
		return 0, "core_word_disjoint"
	}
	if !disjoint(a.Entities, b.Entities) && polarityConflict(a.Words, b.Words) {
		return 0, "polarity_conflict"
	}

	score := jaccard(a.Entities, b.Entities)*weightEntities +
		jaccard(a.otherNums, b.otherNums)*weightNumbers +
		jaccard(a.allWords, b.allWords)*weightWords

	if score < earlyExitFloor {
		return score, ""
	}

	score += lcsRatio(strings.ToLower(titleA), strings.ToLower(titleB)) * weightTitle
	if score > 1 {
		score = 1
	}

	return score, ""
}

// polarityConflict reports whether one side speaks of exiting and the
// other of staying, in either order.
func polarityConflict(wordsA, wordsB map[string]struct{}) bool {
	return (containsAny(wordsA, exitWords) && containsAny(wordsB, stayWords)) ||
		(containsAny(wordsA, stayWords) && containsAny(wordsB, exitWords))
}

func containsAny(words, vocabulary map[string]struct{}) bool {
	for w := range words {
		if _, ok := vocabulary[w]; ok {
			return true
		}
	}
	return false
}

func bothNonEmptyDisjoint(a, b map[string]struct{}) bool {
	return len(a) > 0 && len(b) > 0 && disjoint(a, b)
}

func disjoint(a, b map[string]struct{}) bool {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	for t := range small {
		if _, ok := large[t]; ok {
			return false
		}
	}
	return true
}

// jaccard is |a∩b| / |a∪b|, with two empty sets scoring 0 so absent
// signal never counts as agreement.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}

	return float64(shared) / float64(len(a)+len(b)-shared)
}

// lcsRatio is the longest-common-subsequence length over the longer
// title's length. Titles are short, so the quadratic table is cheap,
// but it is still the most expensive component and runs last.
func lcsRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}

	return float64(prev[len(rb)]) / float64(longest)
}
