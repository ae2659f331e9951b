package extract

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor handles the register's published text pages.
type HTMLExtractor struct{}

func (p *HTMLExtractor) Extract(r io.Reader, filename string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "nav", "footer":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if buf.Len() > 0 {
					buf.WriteString(" ")
				}
				buf.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		// Block elements end a run of text.
		if n.Type == html.ElementNode && isBlockElement(n.Data) && buf.Len() > 0 {
			buf.WriteString("\n")
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String()), nil
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "tr", "br",
		"h1", "h2", "h3", "h4", "h5", "h6", "table":
		return true
	}
	return false
}
