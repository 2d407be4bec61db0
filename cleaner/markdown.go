// Package cleaner turns raw portal HTML into compact, human-readable digests
// stored next to the raw checkpoint artifacts.
package cleaner

import (
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var (
	convOnce sync.Once
	conv     *converter.Converter
)

// newMarkdownConverter creates a goroutine-safe Converter:
//
//   - base plugin: strips script, style, head, meta and comments.
//   - commonmark plugin: headings, lists, links, emphasis.
//   - table plugin: keeps result tables readable as Markdown tables.
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

// Markdown converts a page snapshot to Markdown. Only the page body is
// converted; baseURL resolves relative links and images.
func Markdown(rawHTML, baseURL string) (string, error) {
	convOnce.Do(func() { conv = newMarkdownConverter() })

	body, err := Scope(rawHTML, "body")
	if err != nil {
		return "", err
	}
	return conv.ConvertString(body, converter.WithDomain(baseURL))
}
