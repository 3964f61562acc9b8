// Package jsonutils pulls JSON objects out of model replies.
package jsonutils

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// ErrNoObject is returned by Decode when the reply holds no JSON object.
var ErrNoObject = errors.New("no JSON object in reply")

// ExtractJSON returns the first JSON object in a model reply. A fenced block
// wins over bare text. Zero width characters and trailing commas are
// removed, and a fully escaped object (`{\"a\":1}`) is unescaped.
func ExtractJSON(input string) string {
	input = strings.Map(func(r rune) rune {
		switch r {
		case '\uFEFF', '\u200B', '\u200C', '\u200D':
			return -1
		}
		return r
	}, input)

	if m := fenceRe.FindStringSubmatch(input); len(m) > 1 {
		input = m[1]
	}
	if strings.Contains(input, `{\"`) {
		input = strings.ReplaceAll(input, `\"`, `"`)
	}
	obj := firstObject(input)
	return strings.TrimSpace(trailingCommaRe.ReplaceAllString(obj, "$1"))
}

// firstObject scans for the first balanced {...}, skipping braces inside
// strings. An unbalanced tail is returned as is.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return strings.TrimSpace(s)
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = inString
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// Decode extracts the first object in reply and unmarshals it into v.
func Decode(reply string, v any) error {
	raw := ExtractJSON(reply)
	if !strings.HasPrefix(raw, "{") {
		return ErrNoObject
	}
	return json.Unmarshal([]byte(raw), v)
}
