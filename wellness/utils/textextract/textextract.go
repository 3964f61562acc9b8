// Package textextract turns uploaded or scraped bytes into plain text.
package textextract

import (
	"bytes"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// BinaryPlaceholder stands in for content we cannot decode as text.
const BinaryPlaceholder = "[Binary document - full text extraction is not available for this file type]"

var spaces = regexp.MustCompile(`\s+`)

// FromBytes extracts text based on the file name. HTML is parsed, anything that
// decodes as UTF-8 is returned as is, and everything else gets the placeholder.
func FromBytes(filename string, data []byte) string {
	data = trimPartialRune(data)
	ext := strings.ToLower(path.Ext(filename))
	if ext == ".html" || ext == ".htm" {
		_, text := FromHTML(string(data))
		return text
	}
	if len(data) == 0 || !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return BinaryPlaceholder
	}
	return strings.TrimSpace(string(data))
}

// FromHTML returns the page title and visible text, with chrome like nav and
// footer dropped.
func FromHTML(raw string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", CleanText(raw)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, footer, header, iframe, svg, form").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	var parts []string
	root.Find("h1, h2, h3, h4, p, li, td, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(dedupeAdjacent(parts), "\n")
	if text == "" {
		text = collapse(root.Text())
	}
	if text == "" {
		text = CleanText(raw)
	}
	return title, text
}

// Links returns the absolute http(s) targets of every anchor in the page,
// resolved against base, without fragments or duplicates.
func Links(raw, base string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := baseURL.Parse(href); err == nil {
			baseURL = u
		}
	}

	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := baseURL.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		link := u.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

// CleanText walks the raw node tree and keeps every text node outside script
// and style elements.
func CleanText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return collapse(sb.String())
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// nested list items and table cells repeat their parent text
func dedupeAdjacent(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 && strings.Contains(parts[i-1], p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// trimPartialRune drops a multi-byte sequence cut off by a ranged read.
func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(data) > 0; i++ {
		r, size := utf8.DecodeLastRune(data)
		if r != utf8.RuneError || size != 1 {
			return data
		}
		data = data[:len(data)-1]
	}
	return data
}
