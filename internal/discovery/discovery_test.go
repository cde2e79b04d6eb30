package discovery_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulsedash.app/harvester/internal/discovery"
)

func page(hrefs ...string) string {
	markup := "<html><body>"
	for i, href := range hrefs {
		markup += fmt.Sprintf(`<a href="%s">link %d</a>`, href, i)
	}
	return markup + "</body></html>"
}

var _ = Describe("CandidateURLs", func() {
	const base = "https://example.com/"

	It("finds date-path and content-vocabulary links", func() {
		markup := page(
			"/2024/03/15/big-announcement",
			"/news/latest-roundup",
			"/about",
		)

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(ConsistOf(
			"https://example.com/2024/03/15/big-announcement",
			"https://example.com/news/latest-roundup",
		))
	})

	It("pools matches rule-major, date paths before vocabulary hits", func() {
		markup := page(
			"/news/latest-roundup",
			"/2024/03/15/big-announcement",
		)

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(Equal([]string{
			"https://example.com/2024/03/15/big-announcement",
			"https://example.com/news/latest-roundup",
		}))
	})

	It("is idempotent across runs", func() {
		markup := page(
			"/2024/03/15/one",
			"/2023/11/some-story",
			"/blog/entry",
			"//cdn.example.com/2024/05/01/mirror",
		)

		first := discovery.CandidateURLs(markup, base)
		second := discovery.CandidateURLs(markup, base)
		Expect(second).To(Equal(first))
		Expect(first).NotTo(BeEmpty())
	})

	It("rejects excluded path segments even when a rule matches", func() {
		markup := page(
			"/2024/03/15/tag/golang",
			"/news/tag/golang",
			"/category/news",
			"/author/jane-doe/2024/01/02/profile",
			"/news/search",
			"/feed/2024/05/",
			"/2024/06/01/kept-story",
		)

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(Equal([]string{"https://example.com/2024/06/01/kept-story"}))
	})

	It("rejects non-document file extensions", func() {
		markup := page(
			"/2024/03/15/photo.jpg",
			"/2024/03/15/report.pdf",
			"/news/widget.js",
			"/news/theme.css",
			"/2024/03/15/readable-story",
		)

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(Equal([]string{"https://example.com/2024/03/15/readable-story"}))
	})

	It("resolves root-relative, dot-relative and bare forms to one URL", func() {
		markup := page(
			"/read/posts/alpha",
			"./read/posts/alpha",
			"read/posts/alpha",
		)

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(Equal([]string{"https://example.com/read/posts/alpha"}))
	})

	It("resolves protocol-relative links with the base scheme", func() {
		markup := page("//cdn.example.com/2024/05/01/mirror-story")

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(Equal([]string{"https://cdn.example.com/2024/05/01/mirror-story"}))
	})

	It("drops mailto, javascript and fragment-only targets", func() {
		markup := page(
			"mailto:tips@example.com?subject=news",
			"javascript:void(0)",
			"#news-section",
			"/news/real-item",
		)

		urls := discovery.CandidateURLs(markup, base)
		Expect(urls).To(Equal([]string{"https://example.com/news/real-item"}))
	})

	It("returns nothing for markup without anchors", func() {
		Expect(discovery.CandidateURLs("<html><body><p>no links</p></body></html>", base)).To(BeEmpty())
	})
})
