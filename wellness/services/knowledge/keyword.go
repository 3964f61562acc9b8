package knowledge

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "are": true, "was": true, "were": true,
	"been": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "not": true, "but": true, "all": true, "any": true,
	"how": true, "when": true, "where": true, "what": true, "which": true,
	"who": true, "whom": true, "why": true, "our": true, "your": true,
	"you": true, "they": true, "them": true, "their": true, "about": true,
	"into": true, "some": true, "more": true, "most": true, "there": true,
	"does": true, "did": true, "just": true, "also": true, "very": true,
}

// Terms extracts lowercase keywords of three or more characters, stopwords removed.
func Terms(text string) map[string]bool {
	out := map[string]bool{}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len([]rune(w)) >= 3 && !stopwords[w] {
			out[w] = true
		}
	}
	return out
}

// KeywordScore is the share of query terms that appear in content.
func KeywordScore(query map[string]bool, content string) float64 {
	if len(query) == 0 {
		return 0
	}
	have := Terms(content)
	hits := 0
	for t := range query {
		if have[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
