package service

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// fuzzyThreshold is the share of the query length that may be misspelled.
const fuzzyThreshold = 0.3

// fuzzyMatch reports whether query occurs in text, allowing up to
// floor(0.3*len(query)) edits against some substring of text.
func fuzzyMatch(text, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(text, query) {
		return true
	}

	q := []rune(query)
	maxDist := int(fuzzyThreshold * float64(len(q)))
	if maxDist == 0 {
		return false
	}

	t := []rune(text)
	if len(t) <= len(q)+maxDist {
		return levenshtein.ComputeDistance(text, query) <= maxDist
	}
	return substringDistanceWithin(t, q, maxDist)
}

// substringDistanceWithin reports whether some substring of text is within
// maxDist edits of query. Row 0 of the edit matrix is all zeros so a match may
// start anywhere in text; one column is kept per text rune, O(len(text)*len(query)).
func substringDistanceWithin(text, query []rune, maxDist int) bool {
	prev := make([]int, len(query)+1)
	curr := make([]int, len(query)+1)
	for i := range prev {
		prev[i] = i
	}

	for _, r := range text {
		curr[0] = 0
		for i := 1; i <= len(query); i++ {
			cost := 1
			if query[i-1] == r {
				cost = 0
			}
			curr[i] = min(prev[i-1]+cost, prev[i]+1, curr[i-1]+1)
		}
		if curr[len(query)] <= maxDist {
			return true
		}
		prev, curr = curr, prev
	}
	return false
}

// fuzzyMatchFold is fuzzyMatch ignoring case.
func fuzzyMatchFold(text, query string) bool {
	return fuzzyMatch(strings.ToLower(text), strings.ToLower(query))
}
