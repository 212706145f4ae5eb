// Package extract turns raw page markup into ranked uploader candidates
// and scans pages for image and video URLs.
package extract

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"fbzone/internal/media"
)

// ProfileIDTemplate rewrites a numeric ID into a canonical profile URL.
const ProfileIDTemplate = "https://www.facebook.com/profile.php?id=%s"

// MinURLLength is the shortest candidate URL that is kept. Anything shorter
// is a bare host or a navigation link.
const MinURLLength = 31

var (
	boilerplate   = []string{"login", "signup", "help", "about", "privacy", "terms", "policies", "support"}
	usernameNoise = []string{"www", "com", "facebook", "views", "reactions", "&#", "|", " "}

	usernameChars = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	allDigits     = regexp.MustCompile(`^\d+$`)
)

// Extractor runs an ordered rule cascade over markup.
// It holds no state between calls.
type Extractor struct {
	rules []Rule
}

// New returns an Extractor over rules, or DefaultRules when rules is empty.
func New(rules []Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Extractor{rules: rules}
}

// Extract returns the candidates found in markup. It never fails; markup
// with no usable match yields an empty set.
func (e *Extractor) Extract(markup string) media.CandidateSet {
	markup = strings.ReplaceAll(markup, `\/`, "/")

	var set media.CandidateSet
	seen := make(map[string]int)

	for rank, r := range e.rules {
		for _, m := range r.Pattern.FindAllStringSubmatch(markup, -1) {
			raw, name := split(r.Orientation, m)

			u, ok := normalizeURL(raw)
			if !ok {
				continue
			}
			name = cleanName(name)

			if i, dup := seen[u]; dup {
				// A named occurrence replaces an anonymous one, whenever it shows up.
				if !set[i].Named() && name != media.UnknownName {
					set[i].DisplayName = name
				}
				continue
			}

			seen[u] = len(set)
			set = append(set, media.IdentityCandidate{DisplayName: name, URL: u, Rank: rank})
		}
	}

	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Named() != set[j].Named() {
			return set[i].Named()
		}
		return len(set[i].URL) > len(set[j].URL)
	})

	return set
}

// split returns the (url, name) of a match. For two-field rules the values
// are checked first and the declared orientation only breaks ties.
func split(o Orientation, m []string) (string, string) {
	if len(m) < 3 {
		return m[1], media.UnknownName
	}

	a, b := m[1], m[2]
	switch {
	case looksLikeURL(a) && !looksLikeURL(b):
		return a, b
	case looksLikeURL(b) && !looksLikeURL(a):
		return b, a
	case o == NameURL:
		return b, a
	default:
		return a, b
	}
}

func looksLikeURL(s string) bool {
	return hasScheme(s) || allDigits.MatchString(s)
}

func hasScheme(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "http")
}

// normalizeURL rewrites a raw match into a canonical profile URL and
// reports whether it survives the rejection filters.
func normalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)

	switch {
	case allDigits.MatchString(raw):
		raw = fmt.Sprintf(ProfileIDTemplate, raw)
	case !hasScheme(raw):
		if !validUsername(raw) {
			return "", false
		}
		raw = "https://www.facebook.com/" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "facebook.com" && !strings.HasSuffix(host, ".facebook.com") {
		return "", false
	}

	lower := strings.ToLower(raw)
	if strings.Contains(raw, "id=0") {
		return "", false
	}
	for _, kw := range boilerplate {
		if strings.Contains(lower, kw) {
			return "", false
		}
	}
	if len(raw) < MinURLLength {
		return "", false
	}

	return raw, true
}

func validUsername(s string) bool {
	if len(s) <= 3 || !usernameChars.MatchString(s) {
		return false
	}
	lower := strings.ToLower(s)
	for _, noise := range usernameNoise {
		if strings.Contains(lower, noise) {
			return false
		}
	}
	return true
}

// cleanName decodes JSON \uXXXX escapes and HTML entities.
func cleanName(name string) string {
	if strings.Contains(name, `\`) {
		// JSON decoding joins surrogate pairs, which carry emoji and other
		// characters outside the BMP.
		var s string
		if err := json.Unmarshal([]byte(`"`+name+`"`), &s); err == nil {
			name = s
		}
	}
	name = strings.TrimSpace(html.UnescapeString(name))
	if name == "" {
		return media.UnknownName
	}
	return name
}
