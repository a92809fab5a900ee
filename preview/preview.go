// Package preview renders static scrape payloads for display.
package preview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/scrapedesk/models"
)

// Preview is the display form of a static scrape result.
type Preview struct {
	Title    string
	Markdown string
	Links    []models.Link

	// Summary is the opening text of the page, cut by Snippet.
	Summary string
}

// Renderer turns static payloads into Markdown. The converter is created
// once and reused (goroutine-safe).
type Renderer struct {
	md *converter.Converter
}

// NewRenderer creates a Renderer with the default Markdown converter.
func NewRenderer() *Renderer {
	return &Renderer{md: newMarkdownConverter()}
}

// staticResult is the object shape the backend returns for GET /scrape.
type staticResult struct {
	Title   *string `json:"title"`
	Snippet *string `json:"snippet"`
	Error   *string `json:"error"`
	HTML    *string `json:"html"`
	Content *string `json:"content"`
}

// Render builds a preview of raw. sourceURL resolves relative links and may
// be empty.
//
// Flow:
//  1. {title, snippet} objects render as a heading plus the snippet.
//  2. HTML, from a JSON string or an html/content field, goes through
//     readability then Markdown, with a plain-text fallback.
//  3. Anything else is shown as pretty JSON in a code block.
func (r *Renderer) Render(raw json.RawMessage, sourceURL string) (*Preview, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return &Preview{Markdown: ""}, nil
	}

	// ── 1. JSON string ──────────────────────────────────────────────
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if looksLikeHTML(s) {
			return r.renderHTML(s, sourceURL), nil
		}
		return &Preview{Markdown: s}, nil
	}

	// ── 2. Static result object ─────────────────────────────────────
	var res staticResult
	if raw[0] == '{' && json.Unmarshal(raw, &res) == nil {
		switch {
		case res.Error != nil:
			return &Preview{Markdown: "**Error:** " + *res.Error}, nil
		case res.HTML != nil:
			return r.renderHTML(*res.HTML, sourceURL), nil
		case res.Content != nil && looksLikeHTML(*res.Content):
			return r.renderHTML(*res.Content, sourceURL), nil
		case res.Title != nil || res.Snippet != nil:
			return titled(deref(res.Title), deref(res.Snippet)), nil
		}
	}

	// ── 3. Anything else ────────────────────────────────────────────
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("preview: payload is not JSON: %w", err)
	}
	return &Preview{Markdown: "```json\n" + buf.String() + "\n```"}, nil
}

func (r *Renderer) renderHTML(rawHTML, sourceURL string) *Preview {
	article, ok := extractContent(rawHTML, sourceURL)
	title := article.Title
	if title == "" {
		title = documentTitle(rawHTML)
	}

	md, err := toMarkdown(r.md, article.Content, sourceURL)
	if err != nil || strings.TrimSpace(md) == "" {
		slog.Warn("preview: markdown conversion produced nothing, using plain text",
			"url", sourceURL, "readability", ok, "error", err,
		)
		md = PlainText(rawHTML)
	}

	text := PlainText(article.Content)
	if text == "" {
		text = PlainText(rawHTML)
	}

	return &Preview{
		Title:    title,
		Markdown: strings.TrimSpace(md),
		Links:    extractLinks(rawHTML, sourceURL),
		Summary:  Snippet(text),
	}
}

func titled(title, body string) *Preview {
	if title == "" {
		return &Preview{Markdown: body, Summary: Snippet(body)}
	}
	return &Preview{Title: title, Markdown: "# " + title + "\n\n" + body, Summary: Snippet(body)}
}

func looksLikeHTML(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "<") && strings.Contains(t, ">")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
