package preview

import (
	"strings"

	"golang.org/x/net/html"
)

// snippetLength is the rune budget of Snippet.
const snippetLength = 200

// skipped elements contribute no visible text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"template": true,
}

// PlainText returns the visible text of an HTML document, whitespace
// collapsed to single spaces.
func PlainText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return strings.Join(strings.Fields(rawHTML), " ")
	}

	var words []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(words, " ")
}

// Snippet truncates text to 200 runes, appending "..." when cut.
func Snippet(text string) string {
	r := []rune(text)
	if len(r) <= snippetLength {
		return text
	}
	return string(r[:snippetLength]) + "..."
}
