package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is the human-readable description of a page.
type Metadata struct {
	Title       string
	Description string
}

// Empty reports whether neither field was found.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Description == ""
}

var titleSegment = regexp.MustCompile(`\|\s*([^|]+?)\s*\|`)

// ParseMetadata reads og:title and og:description. Titles of the form
// "views | Name | Facebook" reduce to the segment between the separators.
func ParseMetadata(markup string) Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Metadata{}
	}

	raw, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	desc, _ := doc.Find(`meta[property="og:description"]`).First().Attr("content")

	title := strings.TrimSpace(strings.Split(raw, "|")[0])
	if m := titleSegment.FindStringSubmatch(raw); m != nil {
		title = strings.TrimSpace(m[1])
	}

	return Metadata{Title: title, Description: strings.TrimSpace(desc)}
}
