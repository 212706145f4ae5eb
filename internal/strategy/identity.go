package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"fbzone/internal/automation"
	"fbzone/internal/extract"
	"fbzone/internal/httputil"
	"fbzone/internal/media"
	"fbzone/internal/source"
)

// Direct fetches the page once with a single header profile.
type Direct struct {
	Tier
	Fetcher PageFetcher
	Profile httputil.Profile
}

func (s *Direct) Attempt(ctx context.Context, req Request) Result {
	markup, err := s.Fetcher.Page(ctx, target(req), s.Profile)
	if err != nil {
		return Fail(err)
	}
	return Succeed(Payload{Markup: markup})
}

// HeaderVariants refetches the page with each profile in turn and stops at
// the first one whose markup yields candidates.
type HeaderVariants struct {
	Tier
	Fetcher   PageFetcher
	Profiles  []httputil.Profile
	Extractor Extractor
	Logger    *slog.Logger
}

func (s *HeaderVariants) Attempt(ctx context.Context, req Request) Result {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for _, p := range s.Profiles {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		markup, err := s.Fetcher.Page(ctx, target(req), p)
		if err != nil {
			logger.Debug("header variant failed", "profile", p.Name, "err", err)
			errs = append(errs, fmt.Errorf("profile %s: %w", p.Name, err))
			continue
		}

		set := s.Extractor.Extract(markup)
		if len(set) > 0 {
			logger.Debug("header variant matched", "profile", p.Name, "candidates", len(set))
			return Succeed(Payload{Markup: markup, Candidates: set})
		}
		errs = append(errs, fmt.Errorf("profile %s: %w", p.Name, media.ErrNoMatch))
	}

	if len(errs) == 0 {
		return Soft(fmt.Errorf("%w: no header profiles configured", media.ErrNoMatch))
	}
	return Soft(errors.Join(errs...))
}

var digitRun = regexp.MustCompile(`\d{8,}`)

// IDGuess derives a profile from a numeric run embedded in a long
// content ID. It needs no network.
type IDGuess struct {
	Tier
}

func (s *IDGuess) Attempt(_ context.Context, req Request) Result {
	id := req.Source.ContentID
	if !source.IsLongID(id) {
		return Soft(fmt.Errorf("%w: content id %q is too short to carry a profile id", media.ErrNoMatch, id))
	}

	for _, run := range digitRun.FindAllString(id, -1) {
		if strings.HasPrefix(run, "0") {
			continue
		}
		return Succeed(Payload{Candidates: media.CandidateSet{{
			DisplayName: media.UnknownName,
			URL:         fmt.Sprintf(extract.ProfileIDTemplate, run),
		}}})
	}
	return Soft(fmt.Errorf("%w: no numeric run in content id %q", media.ErrNoMatch, id))
}

// Render loads the page in a full browser and returns the rendered DOM.
type Render struct {
	Tier
	Renderer automation.Renderer
}

func (s *Render) Attempt(ctx context.Context, req Request) Result {
	markup, err := s.Renderer.RenderMarkup(ctx, target(req))
	if err != nil {
		return Soft(media.Network(err))
	}
	if strings.TrimSpace(markup) == "" {
		return Soft(fmt.Errorf("%w: rendered page is empty", media.ErrNoMatch))
	}
	return Succeed(Payload{Markup: markup})
}
