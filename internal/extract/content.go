package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanContent strips markup noise so the extraction service sees article
// text instead of scripts and chrome. Falls back to the raw input when the
// markup cannot be parsed.
func CleanContent(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	doc.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return markup
	}

	return strings.Join(strings.Fields(text), " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
