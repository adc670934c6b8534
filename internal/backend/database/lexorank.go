package database

import "strings"

// Feed ranks are strings compared lexicographically. A new rank can always
// be found before, after or between existing ones without rewriting other
// rows, which keeps reordering the feed to a handful of updates.
const (
	minChar = '0'
	maxChar = 'z'
	midChar = 'U'
)

// After returns a rank sorting strictly after prev. The last character that
// can still be incremented is bumped; only when none can is a character
// appended.
func After(prev string) string {
	if prev == "" {
		return string(midChar)
	}
	p := []rune(prev)
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] < maxChar-1 {
			out := append([]rune{}, p[:i]...)
			return string(append(out, p[i]+1))
		}
	}
	return prev + string(midChar)
}

// Before returns a rank sorting strictly before next.
func Before(next string) string {
	if next == "" {
		return string(midChar)
	}
	return Between("", next)
}

// IsBetween reports whether rank lies strictly between prev and next, an
// empty bound meaning unbounded. With both bounds empty it reports false so
// that callers assign a canonical rank.
func IsBetween(prev, rank, next string) bool {
	if prev == "" && next == "" {
		return false
	}
	if prev == "" {
		return strings.Compare(rank, next) < 0
	}
	if next == "" {
		return strings.Compare(prev, rank) < 0
	}
	return strings.Compare(prev, rank) < 0 && strings.Compare(rank, next) < 0
}

// Between returns a rank strictly between prev and next. Characters are
// copied while the bounds agree; at the first position with room a
// midpoint is chosen, otherwise the lower character is kept and the search
// continues one position deeper, where an exhausted upper bound counts as
// maxChar.
func Between(prev, next string) string {
	if next == "" {
		return After(prev)
	}

	p := []rune(prev)
	n := []rune(next)

	var out []rune
	for i := 0; ; i++ {
		lo := rune(minChar)
		if i < len(p) {
			lo = p[i]
		}
		hi := rune(maxChar)
		if i < len(n) {
			hi = n[i]
		}

		if lo == hi {
			out = append(out, lo)
			continue
		}
		if lo+1 < hi {
			return string(append(out, lo+(hi-lo)/2))
		}
		out = append(out, lo)
	}
}

// Reorder returns new ranks for the ids in order whose current rank does
// not already sit between its neighbours. existing maps id to rank; ids
// missing from it are treated as unranked.
func Reorder(existing map[string]string, order []string) map[string]string {
	updates := make(map[string]string, len(order))

	rankOf := func(id string) string {
		if id == "" {
			return ""
		}
		if r, ok := updates[id]; ok {
			return r
		}
		return existing[id]
	}

	for i, id := range order {
		var prevID, nextID string
		if i > 0 {
			prevID = order[i-1]
		}
		if i < len(order)-1 {
			nextID = order[i+1]
		}

		prevRank := rankOf(prevID)
		nextRank := rankOf(nextID)
		current := existing[id]

		if current != "" && IsBetween(prevRank, current, nextRank) {
			continue
		}
		updates[id] = Between(prevRank, nextRank)
	}

	return updates
}
