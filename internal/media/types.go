// Package media defines shared types for the fbzone application.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Goal is what a resolution is trying to produce.
type Goal int

const (
	Identity Goal = iota
	Audio
	Photo
	Video
)

func (g Goal) String() string {
	switch g {
	case Identity:
		return "identity"
	case Audio:
		return "audio"
	case Photo:
		return "photo"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// ParseGoal maps a goal name back to a Goal.
func ParseGoal(s string) (Goal, error) {
	for _, g := range []Goal{Identity, Audio, Photo, Video} {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown goal %q (valid: identity, audio, photo, video)", s)
}

// SourceKind tells video sources from profile sources.
type SourceKind int

const (
	VideoSource SourceKind = iota
	ProfileSource
)

func (k SourceKind) String() string {
	if k == ProfileSource {
		return "profile"
	}
	return "video"
}

// Source is a validated, canonicalized reference to the item being resolved.
type Source struct {
	URL       string     // Canonical URL, identity-bearing query only
	ContentID string     // Video or profile ID when derivable
	Kind      SourceKind // Video or profile
}

// UnknownName is the display name given to candidates found without a name.
const UnknownName = "Unknown"

// IdentityCandidate is a (name, URL) pair believed to identify an uploader.
type IdentityCandidate struct {
	DisplayName string // UnknownName when no name was associated
	URL         string // Absolute profile URL on the verified host
	Rank        int    // Index of the extraction rule that first produced it
}

// Named reports whether the candidate carries a real display name.
func (c IdentityCandidate) Named() bool {
	return c.DisplayName != "" && c.DisplayName != UnknownName
}

// CandidateSet is an ordered, URL-unique list of candidates.
// Named candidates sort first, then longer URLs.
type CandidateSet []IdentityCandidate

// URLs returns the candidate URLs in order.
func (s CandidateSet) URLs() []string {
	urls := make([]string, len(s))
	for i, c := range s {
		urls[i] = c.URL
	}
	return urls
}

// Asset is the final artifact of a resolution. The caller owns it and must
// Close it, which removes the backing file and its request workspace.
type Asset struct {
	Path        string // Local file holding the bytes
	ContentType string // e.g. "audio/mpeg", "image/jpeg"
	Size        int64
	Origin      string // Remote URL or strategy the bytes came from

	release func() error
}

// NewAsset wraps a local file. release runs on Close and may be nil.
func NewAsset(path, contentType, origin string, release func() error) (*Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat asset: %w", err)
	}
	return &Asset{
		Path:        path,
		ContentType: contentType,
		Size:        info.Size(),
		Origin:      origin,
		release:     release,
	}, nil
}

// Open returns a reader over the asset bytes.
func (a *Asset) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// Ext returns the file extension matching the content type.
func (a *Asset) Ext() string {
	if ext := ExtFor(a.ContentType); ext != "" {
		return ext
	}
	if ext := filepath.Ext(a.Path); ext != "" {
		return ext
	}
	return ".bin"
}

// ExtFor maps a content type to a file extension, or "" when unknown.
func ExtFor(contentType string) string {
	switch contentType {
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	return ""
}

// Persist copies the asset to dst, creating parent directories.
func (a *Asset) Persist(dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	in, err := a.Open()
	if err != nil {
		return fmt.Errorf("opening asset: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return out.Close()
}

// Close releases the asset's backing resources.
func (a *Asset) Close() error {
	if a.release == nil {
		return nil
	}
	release := a.release
	a.release = nil
	return release()
}
