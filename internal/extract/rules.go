package extract

import "regexp"

// Orientation declares which capture group of a two-field rule holds the
// URL. The extractor still checks the captured values and swaps them when
// the declared order is wrong.
type Orientation int

const (
	Single  Orientation = iota // One capture: a URL, numeric ID or username
	NameURL                    // Group 1 name, group 2 URL
	URLName                    // Group 1 URL, group 2 name
)

// Rule is one pattern family of the uploader cascade.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Orientation Orientation
}

func rule(name, pattern string, o Orientation) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern), Orientation: o}
}

// DefaultRules is the uploader cascade, most specific first. A candidate's
// rank is the index of the first rule that produced it.
var DefaultRules = []Rule{
	// Name + profile.php?id= pairs
	rule("json-name-profile-id", `"name":"([^"]+)"[^}]*"url":"(https://www\.facebook\.com/profile\.php\?id=\d+)"`, NameURL),
	rule("json-profile-id-name", `"url":"(https://www\.facebook\.com/profile\.php\?id=\d+)"[^}]*"name":"([^"]+)"`, URLName),
	rule("anchor-profile-id-title", `href="(https://www\.facebook\.com/profile\.php\?id=\d+)"[^>]*title="([^"]+)"`, URLName),
	rule("anchor-title-profile-id", `title="([^"]+)"[^>]*href="(https://www\.facebook\.com/profile\.php\?id=\d+)"`, NameURL),

	// Bare profile.php?id= links
	rule("quoted-profile-id", `"(https://www\.facebook\.com/profile\.php\?id=\d+)"`, Single),
	rule("href-profile-id", `href="(https://www\.facebook\.com/profile\.php\?id=\d+)"`, Single),

	// Name + username pairs
	rule("json-name-username", `"name":"([^"]+)"[^}]*"url":"(https://www\.facebook\.com/[a-zA-Z0-9._-]+)"`, NameURL),
	rule("json-username-name", `"url":"(https://www\.facebook\.com/[a-zA-Z0-9._-]+)"[^}]*"name":"([^"]+)"`, URLName),

	// Bare username links
	rule("quoted-username", `"(https://www\.facebook\.com/[a-zA-Z0-9._-]+)"`, Single),
	rule("href-username", `href="(https://www\.facebook\.com/[a-zA-Z0-9._-]+)"`, Single),

	// Structured author objects
	rule("author-person", `"author":\s*\{[^}]*"@type":\s*"Person"[^}]*"name":\s*"([^"]+)"[^}]*"url":\s*"([^"]+)"`, NameURL),
	rule("author-url-name", `"author":\s*\{[^}]*"url":\s*"([^"]+)"[^}]*"name":\s*"([^"]+)"`, URLName),

	// Owner IDs
	rule("name-owner-id", `"name":"([^"]+)"[^}]*"ownerID":"(\d+)"`, NameURL),
	rule("owner-id-name", `"ownerID":"(\d+)"[^}]*"name":"([^"]+)"`, URLName),
	rule("owner_id", `"owner_id":"(\d+)"`, Single),
	rule("author-id", `"authorID":"(\d+)"`, Single),

	// Meta tags
	rule("meta-profile-username", `<meta[^>]*property="profile:username"[^>]*content="([^"]+)"`, Single),

	// Internal numeric ID fields
	rule("actor_id", `"actor_id":"(\d+)"`, Single),
	rule("actor-id", `"actorID":"(\d+)"`, Single),
	rule("page_id", `"page_id":"(\d+)"`, Single),
	rule("page-id", `"pageID":"(\d+)"`, Single),

	// Data attributes
	rule("data-video-uploader", `data-video-uploader="([^"]+)"`, Single),
	rule("data-uploader-name", `data-uploader-name="([^"]+)"`, Single),

	// Profile name + ID pairs
	rule("profile-name-id", `"profile_name":"([^"]+)"[^}]*"profile_id":"(\d+)"`, NameURL),
	rule("profile-id-name", `"profile_id":"(\d+)"[^}]*"profile_name":"([^"]+)"`, URLName),
}
