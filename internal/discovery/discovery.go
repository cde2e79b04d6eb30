// Package discovery finds candidate article links in raw page markup.
//
// The heuristic is deliberately simple: an ordered list of independent
// pattern rules is applied over every anchor target in the document, all
// matches are pooled (rules overlap on purpose), obvious non-content links
// are rejected, and survivors are resolved against the page URL and
// deduplicated. No relevance ranking is applied; precision/recall is a
// known limitation of the rules, and the extraction stage is expected to
// cope with false positives.
package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Ordered pattern rules. Each rule is matched against every harvested
// anchor target independently and matches are pooled rule-major, so output
// order is "all rule-1 hits in document order, then all rule-2 hits, ...".
var candidateRules = []*regexp.Regexp{
	// Date-path structure /YYYY/MM/DD/...
	regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`),
	// Month-path structure /YYYY/MM/...
	regexp.MustCompile(`/\d{4}/\d{2}/`),
	// Content vocabulary in a path segment.
	regexp.MustCompile(`(?i)/[^/?#]*(article|news|post|story|blog)[^/?#]*(/|$|\?|#)`),
	// A year anywhere in the path combined with a topic keyword.
	regexp.MustCompile(`(?i)(19|20)\d{2}.*(tech|business|startup|funding|market|economy)|(tech|business|startup|funding|market|economy).*(19|20)\d{2}`),
}

var excludedSegments = []string{
	"tag", "tags", "category", "categories", "author", "search", "rss",
	"feed", "comment", "comments", "email", "share", "print", "login",
	"signup", "subscribe", "facebook", "twitter", "linkedin", "whatsapp",
	"pinterest", "telegram",
}

var excludedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".tar", ".gz", ".rar", ".7z",
	".css", ".js", ".json", ".xml",
	".mp3", ".mp4", ".avi", ".mov",
	".woff", ".woff2", ".ttf", ".eot",
}

// CandidateURLs returns deduplicated absolute candidate URLs discovered in
// the markup, resolved against baseURL. Deterministic: identical input
// yields identical output order and content.
func CandidateURLs(markup, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	hrefs := anchorTargets(markup)

	var pooled []string
	for _, rule := range candidateRules {
		for _, href := range hrefs {
			if rule.MatchString(href) {
				pooled = append(pooled, href)
			}
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, href := range pooled {
		if excluded(href) {
			continue
		}
		abs, ok := resolve(base, href)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

// anchorTargets harvests href attributes of <a> tags in document order.
func anchorTargets(markup string) []string {
	var hrefs []string
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return hrefs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := z.Token()
		if token.Data != "a" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key == "href" && attr.Val != "" {
				hrefs = append(hrefs, attr.Val)
			}
		}
	}
}

func excluded(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return true
	}
	path := strings.ToLower(u.Path)
	if path == "" {
		// Parse treats bare relative hrefs like "news/item" as path-only,
		// so an empty path means fragment/query-only or opaque (mailto:).
		return true
	}

	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		for _, excl := range excludedSegments {
			if seg == excl {
				return true
			}
		}
	}

	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// resolve turns href into an absolute URL relative to base, handling
// root-relative (/x), dot-relative (./x), protocol-relative (//host/x) and
// bare relative forms, then filters to syntactically valid http(s) URLs.
func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}
