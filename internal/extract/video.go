package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// videoFields are the embedded JSON keys carrying a playable URL, best
// quality first.
var videoFields = []string{
	"browser_native_hd_url",
	"playable_url_quality_hd",
	"hd_src",
	"browser_native_sd_url",
	"playable_url",
	"sd_src",
}

var videoPatterns = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(videoFields))
	for i, f := range videoFields {
		res[i] = regexp.MustCompile(`"` + f + `":\s*"((?:[^"\\]|\\.)+)"`)
	}
	return res
}()

// VideoURLs returns the direct media URLs embedded in a video page, best
// quality first, followed by og:video meta values.
func VideoURLs(markup string) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u == "" || seen[u] || !strings.HasPrefix(u, "http") {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, re := range videoPatterns {
		for _, m := range re.FindAllStringSubmatch(markup, -1) {
			add(unescapeJSON(m[1]))
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return urls
	}
	for _, prop := range []string{"og:video:secure_url", "og:video:url", "og:video"} {
		doc.Find(`meta[property="` + prop + `"]`).Each(func(_ int, s *goquery.Selection) {
			content, _ := s.Attr("content")
			add(content)
		})
	}
	return urls
}

func unescapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
