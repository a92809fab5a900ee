package preview

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length for readability output
// to be used. Shorter extractions fall back to the raw HTML.
const minContentLength = 50

// extractContent runs Readability on rawHTML. The bool reports whether
// the extraction was kept; on fallback the raw HTML is returned as Content.
func extractContent(rawHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL", "url", sourceURL, "error", err)
		return fallbackArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return fallbackArticle(rawHTML), false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return fallbackArticle(rawHTML), false
	}
	return article, true
}

func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{Content: rawHTML}
}

// documentTitle returns the trimmed text of the first <title>.
func documentTitle(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
