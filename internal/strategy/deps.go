package strategy

import (
	"context"

	"fbzone/internal/httputil"
	"fbzone/internal/media"
	"fbzone/internal/workspace"
)

// Collaborators the strategies are built from. The production types live
// in httputil, extract, download, transcode and convert.

type PageFetcher interface {
	Page(ctx context.Context, url string, p httputil.Profile) (string, error)
}

type Extractor interface {
	Extract(markup string) media.CandidateSet
}

type ImageDownloader interface {
	Image(ctx context.Context, url, referer string, ws *workspace.Workspace, name string) (*media.Asset, error)
}

type MediaDownloader interface {
	Media(ctx context.Context, url string, ws *workspace.Workspace, name string) (*media.Asset, error)
}

type Codec interface {
	ExtractAudio(ctx context.Context, input, output string) error
}

type Converter interface {
	Convert(ctx context.Context, asset *media.Asset, dst string) error
}

// target is the page a stage works on: the explicit Target, or the source.
func target(req Request) string {
	if req.Target != "" {
		return req.Target
	}
	return req.Source.URL
}
