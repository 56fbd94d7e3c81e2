package server

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// RenderMarkdown converts a Markdown answer to sanitized HTML.
func RenderMarkdown(text string) string {
	if text == "" {
		return ""
	}
	// Parsers carry state and cannot be reused.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(text))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(sanitizer.SanitizeBytes(markdown.Render(doc, renderer)))
}
