package preview

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/scrapedesk/models"
)

// extractLinks returns the unique http(s) anchors of rawHTML, resolved
// against sourceURL.
func extractLinks(rawHTML, sourceURL string) []models.Link {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []models.Link
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, models.Link{
			Href: abs,
			Text: strings.Join(strings.Fields(s.Text()), " "),
		})
	})
	return links
}
