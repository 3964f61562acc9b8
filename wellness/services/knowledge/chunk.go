package knowledge

import (
	"strings"
	"unicode"
)

const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// Split cuts text into windows of about size characters that share overlap
// characters with the previous window. Cuts land on whitespace when one is
// available in the back half of the window.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	r := []rune(strings.TrimSpace(text))
	if len(r) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(r) {
		end := start + size
		if end >= len(r) {
			end = len(r)
		} else if cut := lastSpace(r, start+size/2, end); cut > 0 {
			end = cut
		}
		if c := strings.TrimSpace(string(r[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(r) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		// begin the overlap on a word boundary
		for next < end && !unicode.IsSpace(r[next]) && next > 0 && !unicode.IsSpace(r[next-1]) {
			next++
		}
		start = next
	}
	return chunks
}

func lastSpace(r []rune, from, to int) int {
	for i := to; i > from; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}
