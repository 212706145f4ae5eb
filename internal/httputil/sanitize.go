package httputil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateURL checks that a URL is well-formed HTTP(S) with a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("only HTTP(S) URLs are allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// maxFilename caps sanitized names, in runes, extension included.
const maxFilename = 120

// SanitizeFilename reduces name to a single safe path element. Directory
// components are dropped, reserved characters become '_', runs of
// whitespace become '-', and leading dots are removed so results are
// never hidden files.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")

	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteRune('-')
			}
			space = true
			continue
		case unicode.IsControl(r):
		case strings.ContainsRune(`/\:*?"<>|=&`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
		space = false
	}

	out := strings.Trim(strings.TrimLeft(b.String(), "."), "-")
	if out == "" {
		return "untitled"
	}
	if r := []rune(out); len(r) > maxFilename {
		ext := []rune(filepath.Ext(out))
		if len(ext) >= maxFilename {
			ext = nil
		}
		out = string(r[:maxFilename-len(ext)]) + string(ext)
	}
	return out
}

// SafePath resolves filename inside dir and rejects anything that escapes it.
func SafePath(dir, filename string) (string, error) {
	sanitized := SanitizeFilename(filename)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	resolved, err := filepath.Abs(filepath.Join(absDir, sanitized))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if !strings.HasPrefix(resolved, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", resolved, absDir)
	}

	return resolved, nil
}
