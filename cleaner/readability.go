package cleaner

import (
	nurl "net/url"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

// maxExcerptRunes bounds the excerpt attached to failure logs.
const maxExcerptRunes = 280

// Excerpt returns a short plain-text summary of the page, used to explain a
// failed run in the logs. It returns "" when nothing readable was found.
func Excerpt(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return ""
	}

	text := article.Excerpt
	if strings.TrimSpace(text) == "" {
		text = article.TextContent
	}
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, maxExcerptRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
