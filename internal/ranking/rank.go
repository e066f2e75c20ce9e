package ranking

import (
	"sort"
	"time"
)

// Entry is one submission's ranking input.
type Entry struct {
	Score     float64
	VoteCount int
	CreatedAt time.Time
}

// Less implements the display tie-break order: higher score first, then
// higher raw vote count, then earlier creation. Earlier submissions win
// remaining ties so consistently good early entries are rewarded.
func Less(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.VoteCount != b.VoteCount {
		return a.VoteCount > b.VoteCount
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Sort orders entries in place using the tie-break rule. The extract function
// adapts arbitrary slices without copying into []Entry first.
func Sort[T any](items []T, extract func(T) Entry) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(extract(items[i]), extract(items[j]))
	})
}
