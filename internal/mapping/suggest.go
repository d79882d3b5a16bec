package mapping

import (
	"strings"
	"unicode"
)

// DefaultSuggestThreshold is the minimum similarity for a suggestion.
const DefaultSuggestThreshold = 0.8

// Suggest fills unmapped entries with the most similar target key, comparing
// the last path segment of each side after folding case and dropping
// separators. Entries that already have a target are left alone. Ties keep
// the earlier target. It returns the number of entries filled.
func Suggest(s *Store, targets []string, threshold float64) int {
	if len(targets) == 0 {
		return 0
	}
	normTargets := make([]string, len(targets))
	for i, t := range targets {
		normTargets[i] = normalizeKey(t)
	}

	var filled int
	for _, e := range s.Entries() {
		if e.Target != "" {
			continue
		}
		src := normalizeKey(e.Source)
		best, bestScore := -1, threshold
		for i, nt := range normTargets {
			score := similarity(src, nt)
			if score > bestScore || (score == bestScore && best == -1) {
				best, bestScore = i, score
			}
		}
		if best >= 0 {
			s.Set(e.Source, targets[best])
			filled++
		}
	}
	return filled
}

// normalizeKey keeps the last path segment, strips any array index, folds
// case and drops separators: "order.Line_Items[2]" -> "lineitems".
func normalizeKey(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.IndexByte(key, '['); i >= 0 {
		key = key[:i]
	}
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)).
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(max(len(ra), len(rb)))
}

func levenshtein(a, b []rune) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}
