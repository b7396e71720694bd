package search

import (
	"slices"

	"github.com/poiesic/minutes/core"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant.
const DefaultRRFK = 60

// Fused is one entry of a fused ranking.
// Ranks holds the 1-based rank of the item in each input list, 0 when absent.
type Fused struct {
	ID    core.ID
	Score float64
	Ranks []int
}

// BestRank returns the best (lowest) rank across lists.
func (f Fused) BestRank() int {
	best := 0
	for _, r := range f.Ranks {
		if r > 0 && (best == 0 || r < best) {
			best = r
		}
	}
	return best
}

// FuseRRF merges rankings with Reciprocal Rank Fusion. An item at 1-based
// rank r of a list contributes 1/(k+r); lists it is absent from contribute
// nothing. The result is ordered by descending score, ties going to the
// better best single rank, then to the better rank in earlier lists, then to
// the lower id. Repeated ids within one list count at their first rank.
func FuseRRF(k int, lists ...[]core.ID) []Fused {
	if k <= 0 {
		k = DefaultRRFK
	}

	byID := make(map[core.ID]*Fused)
	var order []*Fused
	for li, list := range lists {
		for pos, id := range list {
			f, ok := byID[id]
			if !ok {
				f = &Fused{ID: id, Ranks: make([]int, len(lists))}
				byID[id] = f
				order = append(order, f)
			}
			if f.Ranks[li] != 0 {
				continue
			}
			rank := pos + 1
			f.Ranks[li] = rank
			f.Score += 1 / float64(k+rank)
		}
	}

	slices.SortFunc(order, compareFused)

	out := make([]Fused, len(order))
	for i, f := range order {
		out[i] = *f
	}
	return out
}

func compareFused(a, b *Fused) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if c := compareRank(a.BestRank(), b.BestRank()); c != 0 {
		return c
	}
	for i := range a.Ranks {
		if c := compareRank(a.Ranks[i], b.Ranks[i]); c != 0 {
			return c
		}
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// compareRank orders present ranks before absent (zero) ones.
func compareRank(a, b int) int {
	switch {
	case a == b:
		return 0
	case a == 0:
		return 1
	case b == 0:
		return -1
	case a < b:
		return -1
	}
	return 1
}
