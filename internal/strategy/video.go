package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fbzone/internal/automation"
	"fbzone/internal/extract"
	"fbzone/internal/httputil"
	"fbzone/internal/media"
)

// PageVideoScan reads direct media URLs out of the video page and
// downloads the best one that works.
type PageVideoScan struct {
	Tier
	Fetcher         PageFetcher
	Profile         httputil.Profile
	Downloader      MediaDownloader
	DownloadTimeout time.Duration
}

func (s *PageVideoScan) Attempt(ctx context.Context, req Request) Result {
	markup, err := s.Fetcher.Page(ctx, req.Source.URL, s.Profile)
	if err != nil {
		return Fail(err)
	}

	urls := extract.VideoURLs(markup)
	if len(urls) == 0 {
		return Soft(fmt.Errorf("%w: no media URL on the video page", media.ErrNoMatch))
	}

	var errs []error
	for _, u := range urls {
		asset, err := downloadMedia(ctx, s.Downloader, s.DownloadTimeout, u, req)
		if err == nil {
			return Succeed(Payload{Asset: asset, URL: u})
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return Soft(errors.Join(errs...))
}

// Resolver asks the third-party resolution service for a direct media
// URL and downloads it.
type Resolver struct {
	Tier
	Locator         automation.MediaLocator
	Downloader      MediaDownloader
	DownloadTimeout time.Duration
}

func (s *Resolver) Attempt(ctx context.Context, req Request) Result {
	u, err := s.Locator.LocateMedia(ctx, req.Source.URL)
	if err != nil {
		return Soft(media.Network(err))
	}
	if u == "" {
		return Soft(fmt.Errorf("%w: resolver returned no link", media.ErrNoMatch))
	}

	asset, err := downloadMedia(ctx, s.Downloader, s.DownloadTimeout, u, req)
	if err != nil {
		return Soft(err)
	}
	return Succeed(Payload{Asset: asset, URL: u})
}

func downloadMedia(ctx context.Context, d MediaDownloader, timeout time.Duration, u string, req Request) (*media.Asset, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.Media(ctx, u, req.Workspace, "video")
}
