package reconcile

import (
	"log"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jaytaylor/html2text"
)

// BodyConverter normalizes provider HTML bodies into markdown for indexing
// and plain text for snippets.
type BodyConverter struct {
	markdown *md.Converter
}

// NewBodyConverter creates a converter with default rules.
func NewBodyConverter() *BodyConverter {
	return &BodyConverter{markdown: md.NewConverter("", true, nil)}
}

// ToMarkdown converts an HTML body to markdown. On conversion failure the
// original HTML is returned so the message still gets indexed.
func (c *BodyConverter) ToMarkdown(html string) string {
	if html == "" {
		return ""
	}

	markdown, err := c.markdown.ConvertString(html)
	if err != nil {
		log.Printf("Warning: failed to convert body to markdown: %v", err)
		return html
	}
	return markdown
}

// ToPlainText converts an HTML body to plain text.
func (c *BodyConverter) ToPlainText(html string) string {
	if html == "" {
		return ""
	}

	text, err := html2text.FromString(html, html2text.Options{TextOnly: true})
	if err != nil {
		log.Printf("Warning: failed to convert body to text: %v", err)
		return html
	}
	return text
}
