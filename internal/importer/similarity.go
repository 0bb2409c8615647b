package importer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MatchThreshold is the lowest score accepted as a catalog match.
const MatchThreshold = 0.5

var bundleMarker = regexp.MustCompile(`(?i)\[bundle\]`)

// StripBundleMarker removes the "[bundle]" tag sellers put in product names.
func StripBundleMarker(name string) (string, bool) {
	if !bundleMarker.MatchString(name) {
		return strings.TrimSpace(name), false
	}
	cleaned := bundleMarker.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(cleaned), " "), true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Similarity scores two product names. Exact is 1, containment is
// shorter/longer + 0.3, anything else is normalized edit distance.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 1
	}

	longer, shorter := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		longer, shorter = shorter, longer
	}
	longLen := utf8.RuneCountInString(longer)
	if longLen == 0 {
		return 1
	}
	shortLen := utf8.RuneCountInString(shorter)

	if shortLen > 0 && strings.Contains(longer, shorter) {
		return float64(shortLen)/float64(longLen) + 0.3
	}

	return float64(longLen-Levenshtein(longer, shorter)) / float64(longLen)
}

// Levenshtein is the rune-level edit distance.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

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

// BestMatch returns the index of the best scoring candidate, or -1 when no
// candidate reaches MatchThreshold. An exact name wins outright.
func BestMatch(name string, candidates []string) (int, float64) {
	target := normalize(name)
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		if normalize(c) == target {
			return i, 1
		}
		if score := Similarity(name, c); score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore < MatchThreshold {
		return -1, bestScore
	}
	return best, bestScore
}
