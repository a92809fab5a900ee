package preview

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter strips noise elements (script, style, head...),
// renders CommonMark and keeps tables with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// toMarkdown converts HTML to Markdown, resolving relative links against
// domain when it is set.
func toMarkdown(conv *converter.Converter, htmlContent, domain string) (string, error) {
	if domain == "" {
		return conv.ConvertString(htmlContent)
	}
	return conv.ConvertString(htmlContent, converter.WithDomain(domain))
}
