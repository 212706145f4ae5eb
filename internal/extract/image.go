package extract

import (
	"html"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinImageURLLength filters thumbnails and icons. Only longer URLs are kept.
const MinImageURLLength = 51

// MaxImageTries is how many scanned image URLs a caller should attempt.
const MaxImageTries = 7

var imagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(https://scontent[^\s"'>]*\.(?:jpg|jpeg|png|webp)[^\s"'>]*)`),
	regexp.MustCompile(`(?i)"(https://scontent[^"]*\.(?:jpg|jpeg|png|webp)[^"]*?)"`),
	regexp.MustCompile(`(?i)src="(https://[^"]*scontent[^"]*\.(?:jpg|jpeg|png|webp)[^"]*?)"`),
	regexp.MustCompile(`(?i)href="(https://scontent[^"]*\.(?:jpg|jpeg|png|webp)[^"]*?)"`),
	regexp.MustCompile(`(?i)"(https://[^"]*fbcdn[^"]*\.(?:jpg|jpeg|png|webp)[^"]*?)"`),
	regexp.MustCompile(`(?i)url\(["']?(https://scontent[^)"'>]*\.(?:jpg|jpeg|png|webp)[^)"'>]*)["']?\)`),
	regexp.MustCompile(`(?i)background-image:[^;]*url\(["']?(https://scontent[^)"'>]*)["']?\)`),
}

// PhotoSelectors locate the main image of a rendered photo view.
var PhotoSelectors = []string{
	"img[data-visualcompletion='media-vc-image']",
	"div[data-pagelet='MediaViewerPhoto'] img",
	"img[style*='object-fit']",
	"img[src*='scontent']",
	"img[src*='fbcdn']",
}

// ImageURLs scans markup for CDN image URLs. The result is unique, drops
// short URLs and is ordered longest first.
func ImageURLs(markup string) []string {
	markup = strings.ReplaceAll(markup, `\/`, "/")

	seen := make(map[string]bool)
	var urls []string
	for _, re := range imagePatterns {
		for _, m := range re.FindAllStringSubmatch(markup, -1) {
			u := html.UnescapeString(m[1])
			if len(u) < MinImageURLLength || seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}

	sort.Slice(urls, func(i, j int) bool {
		if len(urls[i]) != len(urls[j]) {
			return len(urls[i]) > len(urls[j])
		}
		return urls[i] < urls[j]
	})
	return urls
}

// RenderedImageURLs returns the src of images matched by the photo-view
// selectors, in selector order, followed by any ImageURLs not already found.
func RenderedImageURLs(markup string) []string {
	seen := make(map[string]bool)
	var urls []string

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err == nil {
		for _, sel := range PhotoSelectors {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				src, ok := s.Attr("src")
				if !ok || seen[src] {
					return
				}
				if !strings.Contains(src, "scontent") && !strings.Contains(src, "fbcdn") {
					return
				}
				seen[src] = true
				urls = append(urls, src)
			})
		}
	}

	for _, u := range ImageURLs(markup) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// HasImageExt reports whether the URL path ends in a known image extension.
func HasImageExt(rawURL string) bool {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i != -1 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return true
	}
	return false
}
