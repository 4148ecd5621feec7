package ui

import (
	"sort"
	"strings"
)

// maxSuggestDistance is the largest edit distance still offered as a suggestion
const maxSuggestDistance = 3

// Suggest returns up to three candidates close to target, closest first.
// Matching ignores case.
func Suggest(target string, candidates []string) []string {
	type scored struct {
		value    string
		distance int
	}

	lower := strings.ToLower(target)
	seen := make(map[string]bool, len(candidates))
	var matches []scored
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		if d := editDistance(lower, strings.ToLower(c)); d <= maxSuggestDistance {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].value < matches[j].value
	})

	out := make([]string, 0, 3)
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// editDistance is the Levenshtein distance between a and b, by rune
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
