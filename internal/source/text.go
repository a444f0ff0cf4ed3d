package source

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/russross/blackfriday/v2"
)

// CleanText trims and collapses whitespace. Angle brackets and other
// markup-like text are kept as written.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// UnescapeText decodes HTML entities, then collapses whitespace. For
// upstream fields that are plain text with entity-escaped specials.
func UnescapeText(s string) string {
	return CleanText(html.UnescapeString(s))
}

// PlainText renders markdown and strips HTML, returning collapsed text.
// Only for free-form model output.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rendered := blackfriday.Run([]byte(s), blackfriday.WithExtensions(blackfriday.NoIntraEmphasis))
	return StripHTML(string(rendered))
}

// StripHTML removes tags, decodes entities and collapses whitespace.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
