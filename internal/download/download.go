// Package download streams discovered media and image URLs into a
// request workspace.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"fbzone/internal/httputil"
	"fbzone/internal/media"
	"fbzone/internal/workspace"
)

var (
	// ErrNotImage is returned when an image URL serves something else.
	ErrNotImage = errors.New("response is not an image")

	// ErrTooLarge is returned when a body exceeds the size cap.
	ErrTooLarge = errors.New("response exceeds size limit")
)

// Downloader fetches remote files into workspaces.
type Downloader struct {
	fetcher  *httputil.Fetcher
	profile  httputil.Profile
	maxBytes int64
}

// New creates a Downloader. maxBytes caps a single file; 0 means 1 GiB.
func New(fetcher *httputil.Fetcher, profile httputil.Profile, maxBytes int64) *Downloader {
	if maxBytes <= 0 {
		maxBytes = 1 << 30
	}
	return &Downloader{fetcher: fetcher, profile: profile, maxBytes: maxBytes}
}

// Media downloads a video file into ws under name.
func (d *Downloader) Media(ctx context.Context, rawURL string, ws *workspace.Workspace, name string) (*media.Asset, error) {
	return d.fetch(ctx, rawURL, "", ws, func(contentType string) (string, error) {
		if strings.HasPrefix(contentType, "text/html") {
			return "", fmt.Errorf("media URL served an HTML page")
		}
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = "video/mp4"
		}
		return contentType, nil
	}, name)
}

// Image downloads an image into ws. Only image/* responses are accepted.
// The file extension follows the content type.
func (d *Downloader) Image(ctx context.Context, rawURL, referer string, ws *workspace.Workspace, name string) (*media.Asset, error) {
	return d.fetch(ctx, rawURL, referer, ws, func(contentType string) (string, error) {
		if !strings.HasPrefix(contentType, "image/") {
			return "", fmt.Errorf("%w: %q", ErrNotImage, contentType)
		}
		return contentType, nil
	}, name)
}

func (d *Downloader) fetch(ctx context.Context, rawURL, referer string, ws *workspace.Workspace, accept func(string) (string, error), name string) (*media.Asset, error) {
	resp, err := d.fetcher.Do(ctx, rawURL, d.profile, referer)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	contentType, err = accept(contentType)
	if err != nil {
		return nil, err
	}

	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("downloading %s: %w (%d > %d bytes)", rawURL, ErrTooLarge, resp.ContentLength, d.maxBytes)
	}

	path, err := ws.Path(name + media.ExtFor(contentType))
	if err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	// One byte past the cap tells an oversized body from one that fits exactly.
	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Clean up partial download on failure
		os.Remove(path)
		return nil, media.Network(fmt.Errorf("downloading %s: %w", rawURL, err))
	}
	if n > d.maxBytes {
		os.Remove(path)
		return nil, fmt.Errorf("downloading %s: %w (%d bytes)", rawURL, ErrTooLarge, d.maxBytes)
	}
	if n == 0 {
		os.Remove(path)
		return nil, fmt.Errorf("downloading %s: empty body", rawURL)
	}

	return media.NewAsset(path, contentType, rawURL, nil)
}
