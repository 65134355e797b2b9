package compiler

import (
	"sort"
	"strings"
)

const maxSuggestions = 3

// suggest returns a "did you mean" hint for target among candidates, or an
// empty string when nothing is close.
func suggest(target string, candidates []string) string {
	type match struct {
		name     string
		distance int
	}
	threshold := 3
	if len(target) <= 3 {
		threshold = 1
	} else if len(target) <= 5 {
		threshold = 2
	}
	lower := strings.ToLower(target)
	seen := map[string]bool{}
	var matches []match
	for _, candidate := range candidates {
		if candidate == "" || candidate == target || seen[candidate] {
			continue
		}
		seen[candidate] = true
		if d := levenshteinDistance(lower, strings.ToLower(candidate)); d <= threshold {
			matches = append(matches, match{candidate, d})
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	if len(matches) == 1 {
		return "did you mean '" + matches[0].name + "'?"
	}
	var b strings.Builder
	b.WriteString("did you mean one of: ")
	for i, m := range matches {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("'" + m.name + "'")
	}
	b.WriteString("?")
	return b.String()
}

// levenshteinDistance computes the edit distance between two strings using
// two rows instead of a full matrix.
func levenshteinDistance(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) > len(br) {
		ar, br = br, ar
	}
	if len(ar) == 0 {
		return len(br)
	}
	prev := make([]int, len(ar)+1)
	curr := make([]int, len(ar)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(br); j++ {
		curr[0] = j
		for i := 1; i <= len(ar); i++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ar)]
}
