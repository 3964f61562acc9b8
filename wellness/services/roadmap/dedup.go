package roadmap

import (
	"strings"
	"unicode"
)

const (
	titleOverlapLimit       = 0.5
	descriptionOverlapLimit = 0.4
)

// Recommendation is the comparable part of a roadmap item.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// words lowercases s, drops punctuation and keeps words longer than two characters.
func words(s string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)

	set := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// overlap is the share of the smaller word set found in the larger one.
func overlap(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// IsSimilar reports whether two recommendations say the same thing in other words.
func IsSimilar(a, b Recommendation) bool {
	if overlap(words(a.Title), words(b.Title)) > titleOverlapLimit {
		return true
	}
	return overlap(words(a.Description), words(b.Description)) > descriptionOverlapLimit
}

// FindSimilar returns the first existing recommendation similar to candidate.
func FindSimilar(candidate Recommendation, existing []Recommendation) (Recommendation, bool) {
	for _, e := range existing {
		if IsSimilar(candidate, e) {
			return e, true
		}
	}
	return Recommendation{}, false
}
