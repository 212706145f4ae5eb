package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fbzone/internal/extract"
	"fbzone/internal/history"
	"fbzone/internal/media"
	"fbzone/internal/source"
	"fbzone/internal/strategy"
	"fbzone/internal/workspace"
)

// Chains holds the ordered strategies for each stage.
type Chains struct {
	Identity []strategy.Strategy
	Video    []strategy.Strategy
	Audio    []strategy.Strategy // Run on the video asset
	Locate   []strategy.Strategy // Profile page to photo view
	Image    []strategy.Strategy // Photo view to image bytes
}

// Ceilings bounds each goal end to end; zero means unbounded.
type Ceilings struct {
	Identity time.Duration
	Video    time.Duration
	Audio    time.Duration
	Photo    time.Duration
}

// Recorder stores finished resolutions.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options configures a Resolver.
type Options struct {
	Chains    Chains
	Ceilings  Ceilings
	Policy    extract.Policy // nil means SecondBest
	Extractor strategy.Extractor
	WorkDir   string // Parent of request workspaces; "" is the system temp dir
	Recorder  Recorder
	Logger    *slog.Logger
}

// Resolver turns source URLs into identities and assets. Every call gets
// its own workspace; a Resolver is safe for concurrent use.
type Resolver struct {
	orch     *Orchestrator
	chains   Chains
	ceilings Ceilings
	policy   extract.Policy
	workDir  string
	recorder Recorder
	logger   *slog.Logger
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Policy == nil {
		opts.Policy = extract.SecondBest{}
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New(nil)
	}
	return &Resolver{
		orch:     NewOrchestrator(opts.Extractor, opts.Logger),
		chains:   opts.Chains,
		ceilings: opts.Ceilings,
		policy:   opts.Policy,
		workDir:  opts.WorkDir,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Orchestrator exposes the cascade runner the Resolver uses.
func (r *Resolver) Orchestrator() *Orchestrator { return r.orch }

// Identification is the result of an identity resolution.
type Identification struct {
	Source     media.Source
	Candidates media.CandidateSet
	Selected   media.IdentityCandidate
	Policy     string
	Metadata   extract.Metadata
	Strategy   string
	Attempts   []Attempt
}

// Identify resolves the uploader candidates of a video source. A profile
// source identifies itself without any strategy.
func (r *Resolver) Identify(ctx context.Context, rawURL string) (*Identification, error) {
	src, err := source.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(r.workDir)
	if err != nil {
		return nil, err
	}
	defer r.cleanup(ws)

	id, err := r.identify(ctx, src, ws)
	if err != nil {
		r.record(ctx, ws, media.Identity, src, "", "", err)
		return nil, err
	}
	r.record(ctx, ws, media.Identity, src, id.Strategy, id.Selected.URL, nil)
	return id, nil
}

func (r *Resolver) identify(ctx context.Context, src media.Source, ws *workspace.Workspace) (*Identification, error) {
	if src.Kind == media.ProfileSource {
		self := media.IdentityCandidate{DisplayName: media.UnknownName, URL: src.URL}
		return &Identification{
			Source:     src,
			Candidates: media.CandidateSet{self},
			Selected:   self,
			Policy:     r.policy.Name(),
			Strategy:   "source",
		}, nil
	}

	req := strategy.Request{Source: src, Goal: media.Identity, Workspace: ws}
	run, err := r.orch.Resolve(ctx, req, r.chains.Identity, r.ceilings.Identity)
	if err != nil {
		return nil, err
	}

	selected, _ := r.policy.Select(run.Payload.Candidates)
	id := &Identification{
		Source:     src,
		Candidates: run.Payload.Candidates,
		Selected:   selected,
		Policy:     r.policy.Name(),
		Strategy:   run.Winner,
		Attempts:   run.Attempts,
	}
	if run.Payload.Markup != "" {
		id.Metadata = extract.ParseMetadata(run.Payload.Markup)
	}
	return id, nil
}

// Video downloads the source video. The caller must Close the asset.
func (r *Resolver) Video(ctx context.Context, rawURL string) (*media.Asset, error) {
	src, err := source.ParseVideo(rawURL)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(r.workDir)
	if err != nil {
		return nil, err
	}

	if r.ceilings.Video > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ceilings.Video)
		defer cancel()
	}

	run, err := r.stage(ctx, strategy.Request{Source: src, Goal: media.Video, Workspace: ws}, r.chains.Video)
	if err != nil {
		r.record(ctx, ws, media.Video, src, "", "", err)
		r.cleanup(ws)
		return nil, err
	}
	asset, err := r.handOver(ws, media.Video, run)
	if err != nil {
		r.record(ctx, ws, media.Video, src, run.Winner, "", err)
		return nil, err
	}
	r.record(ctx, ws, media.Video, src, run.Winner, asset.Origin, nil)
	return asset, nil
}

// Audio downloads the source video and extracts its audio track, locally
// first and through the remote service if that fails. The caller must
// Close the asset.
func (r *Resolver) Audio(ctx context.Context, rawURL string) (*media.Asset, error) {
	src, err := source.ParseVideo(rawURL)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(r.workDir)
	if err != nil {
		return nil, err
	}

	if r.ceilings.Audio > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ceilings.Audio)
		defer cancel()
	}

	asset, winner, err := r.audio(ctx, src, ws)
	if err != nil {
		r.record(ctx, ws, media.Audio, src, winner, "", err)
		r.cleanup(ws)
		return nil, err
	}
	r.record(ctx, ws, media.Audio, src, winner, asset.Origin, nil)
	return asset, nil
}

func (r *Resolver) audio(ctx context.Context, src media.Source, ws *workspace.Workspace) (*media.Asset, string, error) {
	video, err := r.stage(ctx, strategy.Request{Source: src, Goal: media.Video, Workspace: ws}, r.chains.Video)
	if err != nil {
		return nil, "", err
	}
	if video.Payload.Asset == nil {
		return nil, video.Winner, noAsset(media.Audio, video, fmt.Errorf("%s returned no video: %w", video.Winner, media.ErrNoMatch))
	}

	req := strategy.Request{Source: src, Goal: media.Audio, Workspace: ws, Input: video.Payload.Asset}
	run, err := r.stage(ctx, req, r.chains.Audio)
	if err != nil {
		var ex *ExhaustedError
		if errors.As(err, &ex) {
			ex.Attempts = append(video.Attempts, ex.Attempts...)
		}
		return nil, "", err
	}
	asset, err := r.handOver(ws, media.Audio, run)
	if err != nil {
		var ex *ExhaustedError
		if errors.As(err, &ex) {
			ex.Attempts = append(video.Attempts, ex.Attempts...)
		}
	}
	return asset, run.Winner, err
}

// PhotoResult is a profile image with the identity it belongs to.
type PhotoResult struct {
	Asset    *media.Asset
	Profile  media.IdentityCandidate
	Identity *Identification // Nil when the source was a profile
}

// Photo fetches the profile image of the source's uploader, or of the
// profile itself. The caller must Close the asset.
func (r *Resolver) Photo(ctx context.Context, rawURL string) (*PhotoResult, error) {
	src, err := source.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(r.workDir)
	if err != nil {
		return nil, err
	}

	if r.ceilings.Photo > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ceilings.Photo)
		defer cancel()
	}

	res, winner, err := r.photo(ctx, src, ws)
	if err != nil {
		r.record(ctx, ws, media.Photo, src, winner, "", err)
		r.cleanup(ws)
		return nil, err
	}
	r.record(ctx, ws, media.Photo, src, winner, res.Asset.Origin, nil)
	return res, nil
}

func (r *Resolver) photo(ctx context.Context, src media.Source, ws *workspace.Workspace) (*PhotoResult, string, error) {
	res := &PhotoResult{}
	target := src.URL
	if src.Kind == media.VideoSource {
		id, err := r.identify(ctx, src, ws)
		if err != nil {
			return nil, "", err
		}
		res.Identity, res.Profile, target = id, id.Selected, id.Selected.URL
	} else {
		res.Profile = media.IdentityCandidate{DisplayName: media.UnknownName, URL: src.URL}
	}
	r.logger.Debug("photo target", "profile", target)

	located, err := r.stage(ctx, strategy.Request{Source: src, Goal: media.Photo, Workspace: ws, Target: target}, r.chains.Locate)
	if err != nil {
		return nil, "", err
	}

	run, err := r.stage(ctx, strategy.Request{Source: src, Goal: media.Photo, Workspace: ws, Target: located.Payload.URL}, r.chains.Image)
	if err != nil {
		return nil, "", err
	}
	if res.Asset, err = r.handOver(ws, media.Photo, run); err != nil {
		return nil, run.Winner, err
	}
	return res, run.Winner, nil
}

// stage runs one cascade inside a resolution whose ceiling is already on ctx.
func (r *Resolver) stage(ctx context.Context, req strategy.Request, chain []strategy.Strategy) (*Run, error) {
	return r.orch.Resolve(ctx, req, chain, 0)
}

// handOver gives the winning asset to the caller; closing it removes the
// workspace. A winner without a usable file exhausts the goal.
func (r *Resolver) handOver(ws *workspace.Workspace, goal media.Goal, run *Run) (*media.Asset, error) {
	a := run.Payload.Asset
	if a == nil {
		r.cleanup(ws)
		return nil, noAsset(goal, run, fmt.Errorf("%s returned no asset: %w", run.Winner, media.ErrNoMatch))
	}
	asset, err := media.NewAsset(a.Path, a.ContentType, a.Origin, ws.Remove)
	if err != nil {
		r.cleanup(ws)
		return nil, noAsset(goal, run, fmt.Errorf("%w: %w", media.ErrNoMatch, err))
	}
	return asset, nil
}

// noAsset reports a run whose winner produced nothing the caller can use.
// The winning attempt is recorded as the soft failure it turned out to be.
func noAsset(goal media.Goal, run *Run, cause error) *ExhaustedError {
	attempts := append([]Attempt(nil), run.Attempts...)
	if n := len(attempts); n > 0 {
		attempts[n-1].Outcome = strategy.SoftFailure
		attempts[n-1].Err = cause
	} else {
		attempts = append(attempts, Attempt{ID: run.Winner, Outcome: strategy.SoftFailure, Err: cause})
	}
	return &ExhaustedError{Goal: goal, Attempts: attempts}
}

func (r *Resolver) cleanup(ws *workspace.Workspace) {
	if err := ws.Remove(); err != nil {
		r.logger.Warn("workspace cleanup failed", "dir", ws.Dir(), "err", err)
	}
}

func (r *Resolver) record(ctx context.Context, ws *workspace.Workspace, goal media.Goal, src media.Source, winner, result string, err error) {
	if r.recorder == nil {
		return
	}

	e := history.Entry{
		Token:     ws.Token(),
		Goal:      goal.String(),
		Source:    src.URL,
		Strategy:  winner,
		Outcome:   history.Succeeded,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	var ex *ExhaustedError
	switch {
	case errors.As(err, &ex):
		e.Outcome, e.Result = history.Exhausted, ex.Reason()
		if n := len(ex.Attempts); n > 0 {
			e.Strategy = ex.Attempts[n-1].ID
		}
	case err != nil:
		e.Outcome, e.Result = history.Failed, err.Error()
	}

	// The resolution's context may already be past its ceiling.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.recorder.Record(rctx, e); err != nil {
		r.logger.Warn("recording history failed", "err", err)
	}
}
