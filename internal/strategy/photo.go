package strategy

import (
	"context"
	"errors"
	"fmt"

	"fbzone/internal/automation"
	"fbzone/internal/extract"
	"fbzone/internal/httputil"
	"fbzone/internal/media"
)

// PhotoReferer is sent with image downloads.
const PhotoReferer = "https://www.facebook.com/"

// Navigate drives the key script on the profile page to reach the photo
// detail view. The payload URL is the discovered image, or the detail view
// itself when no image was found on it.
type Navigate struct {
	Tier
	Navigator automation.Navigator
	Script    automation.Script
}

func (s *Navigate) Attempt(ctx context.Context, req Request) Result {
	res, err := s.Navigator.SimulateKeyNavigation(ctx, target(req), s.Script)
	if err != nil {
		return Soft(media.Network(err))
	}
	if !res.Reached {
		return Soft(fmt.Errorf("%w: navigation ended on %s", media.ErrNoMatch, res.FinalURL))
	}
	if res.AssetURL != "" {
		return Succeed(Payload{URL: res.AssetURL})
	}
	return Succeed(Payload{URL: res.FinalURL})
}

// DirectImage downloads the target when it already is an image URL.
type DirectImage struct {
	Tier
	Downloader ImageDownloader
}

func (s *DirectImage) Attempt(ctx context.Context, req Request) Result {
	u := target(req)
	if !extract.HasImageExt(u) {
		return Soft(fmt.Errorf("%w: %s is not an image URL", media.ErrNoMatch, u))
	}
	asset, err := s.Downloader.Image(ctx, u, PhotoReferer, req.Workspace, "photo")
	if err != nil {
		return Soft(err)
	}
	return Succeed(Payload{Asset: asset})
}

// PageImageScan fetches the photo page and downloads the first CDN image
// that serves an image, longest URL first.
type PageImageScan struct {
	Tier
	Fetcher    PageFetcher
	Profile    httputil.Profile
	Downloader ImageDownloader
}

func (s *PageImageScan) Attempt(ctx context.Context, req Request) Result {
	markup, err := s.Fetcher.Page(ctx, target(req), s.Profile)
	if err != nil {
		return Soft(err)
	}
	return tryImages(ctx, s.Downloader, req, extract.ImageURLs(markup))
}

// RenderedImageScan renders the photo page and downloads the main image.
type RenderedImageScan struct {
	Tier
	Renderer   automation.Renderer
	Downloader ImageDownloader
}

func (s *RenderedImageScan) Attempt(ctx context.Context, req Request) Result {
	markup, err := s.Renderer.RenderMarkup(ctx, target(req))
	if err != nil {
		return Soft(media.Network(err))
	}
	return tryImages(ctx, s.Downloader, req, extract.RenderedImageURLs(markup))
}

func tryImages(ctx context.Context, d ImageDownloader, req Request, urls []string) Result {
	if len(urls) == 0 {
		return Soft(fmt.Errorf("%w: no image URLs on page", media.ErrNoMatch))
	}
	if len(urls) > extract.MaxImageTries {
		urls = urls[:extract.MaxImageTries]
	}

	var errs []error
	for _, u := range urls {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		asset, err := d.Image(ctx, u, PhotoReferer, req.Workspace, "photo")
		if err == nil {
			return Succeed(Payload{Asset: asset, URL: u})
		}
		errs = append(errs, err)
	}
	return Soft(errors.Join(errs...))
}
