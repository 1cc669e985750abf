package parser

import (
	"html"
	"strings"

	"github.com/jaytaylor/html2text"
)

// stripHTML renders an HTML body as plain text
func stripHTML(body string) string {
	text, err := html2text.FromString(body, html2text.Options{OmitLinks: true})
	if err != nil {
		return stripTags(body)
	}
	return collapseBlankLines(text)
}

// stripTags drops everything between angle brackets. Used only when the
// document cannot be parsed at all.
func stripTags(body string) string {
	var b strings.Builder
	inTag := false
	for _, r := range body {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return collapseBlankLines(html.UnescapeString(b.String()))
}

func collapseBlankLines(text string) string {
	text = strings.TrimSpace(text)
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}
