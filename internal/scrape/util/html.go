package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const blockTags = "p, div, li, h1, h2, h3, h4, h5, h6, tr, ul, ol"

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}

// HTMLToText flattens a job description into plain text, one line per
// block element. Input that fails to parse is returned cleaned as-is.
func HTMLToText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return CleanText(raw)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(newline())
	})
	doc.Find(blockTags).Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(newline())
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = CleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
