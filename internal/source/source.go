// Package source validates and canonicalizes the URLs fbzone accepts.
// Only facebook.com video and profile URLs pass; everything else is
// rejected before any network work starts.
package source

import (
	"net/url"
	"regexp"
	"strings"

	"fbzone/internal/media"
)

// Host is the verified host every canonical URL carries.
const Host = "www.facebook.com"

// VideoPatterns are the path markers of a video URL, tried in order.
var VideoPatterns = []string{"/share/v/", "/watch/", "/videos/", "/reel/"}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9.]+$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// reservedPaths are first path segments that are never profile names.
var reservedPaths = map[string]bool{
	"watch": true, "share": true, "reel": true, "videos": true, "photo": true,
	"photo.php": true, "login": true, "signup": true, "help": true, "privacy": true,
	"policies": true, "groups": true, "events": true, "marketplace": true, "gaming": true,
}

// Parse validates raw as either a video or a profile URL.
func Parse(raw string) (media.Source, error) {
	u, err := normalize(raw)
	if err != nil {
		return media.Source{}, err
	}
	if src, ok := asVideo(u); ok {
		return src, nil
	}
	if src, ok := asProfile(u); ok {
		return src, nil
	}
	return media.Source{}, invalid(raw, "no recognized video or profile pattern")
}

// ParseVideo validates raw as a video URL.
func ParseVideo(raw string) (media.Source, error) {
	u, err := normalize(raw)
	if err != nil {
		return media.Source{}, err
	}
	src, ok := asVideo(u)
	if !ok {
		return media.Source{}, invalid(raw, "URL doesn't appear to be a Facebook video URL")
	}
	return src, nil
}

// ParseProfile validates raw as a profile URL.
func ParseProfile(raw string) (media.Source, error) {
	u, err := normalize(raw)
	if err != nil {
		return media.Source{}, err
	}
	src, ok := asProfile(u)
	if !ok {
		return media.Source{}, invalid(raw, "invalid Facebook profile URL format")
	}
	return src, nil
}

// normalize parses raw, adds a missing scheme and checks the host.
func normalize(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalid(raw, "empty URL")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalid(raw, "malformed URL")
	}

	host := strings.ToLower(u.Hostname())
	if host != "facebook.com" && !strings.HasSuffix(host, ".facebook.com") {
		return nil, invalid(raw, "URL must be a Facebook URL")
	}

	u.Scheme = "https"
	u.Host = Host
	u.Fragment = ""
	u.User = nil
	return u, nil
}

func asVideo(u *url.URL) (media.Source, bool) {
	path := u.Path
	if path == "/watch" {
		// watch?v= arrives without the trailing slash as often as with it.
		path = "/watch/"
	}

	for _, marker := range VideoPatterns {
		idx := strings.Index(path, marker)
		if idx == -1 {
			continue
		}

		var id string
		keep := url.Values{}
		if marker == "/watch/" {
			id = u.Query().Get("v")
			if id == "" {
				id = firstSegment(path[idx+len(marker):])
			} else {
				keep.Set("v", id)
			}
		} else {
			id = firstSegment(path[idx+len(marker):])
		}
		if id == "" {
			return media.Source{}, false
		}

		return media.Source{
			URL:       canonical(path, keep),
			ContentID: id,
			Kind:      media.VideoSource,
		}, true
	}
	return media.Source{}, false
}

func asProfile(u *url.URL) (media.Source, bool) {
	if u.Path == "/profile.php" {
		id := u.Query().Get("id")
		if !numericPattern.MatchString(id) || strings.Trim(id, "0") == "" {
			return media.Source{}, false
		}
		keep := url.Values{}
		keep.Set("id", id)
		return media.Source{
			URL:       canonical(u.Path, keep),
			ContentID: id,
			Kind:      media.ProfileSource,
		}, true
	}

	name := strings.Trim(u.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		return media.Source{}, false
	}
	if reservedPaths[strings.ToLower(name)] || !usernamePattern.MatchString(name) {
		return media.Source{}, false
	}
	return media.Source{
		URL:       canonical("/"+name+"/", nil),
		ContentID: name,
		Kind:      media.ProfileSource,
	}, true
}

// canonical rebuilds the URL on the verified host with only the given query.
func canonical(path string, query url.Values) string {
	u := url.URL{Scheme: "https", Host: Host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func firstSegment(rest string) string {
	if idx := strings.Index(rest, "/"); idx != -1 {
		rest = rest[:idx]
	}
	return rest
}

func invalid(raw, reason string) error {
	return &media.InvalidSourceError{URL: raw, Reason: reason}
}

// IsLongID reports whether a content ID is long enough to carry an embedded
// numeric profile ID.
func IsLongID(id string) bool {
	return len(id) > 10
}
