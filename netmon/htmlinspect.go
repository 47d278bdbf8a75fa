package netmon

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DocumentTitle extracts <title> from an HTML response body, used to label
// HAR Page entries without a round trip back into the page's JS runtime.
func DocumentTitle(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, title != ""
}

// ExtractLinks collects every distinct href from <a> tags in an HTML
// response body, useful for diagnostics when a captured page's outbound
// links matter more than its rendered DOM.
func ExtractLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links
}
