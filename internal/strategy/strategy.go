// Package strategy defines the acquisition and conversion tiers the
// resolver cascades through. A strategy never returns an error or panics
// past its own boundary: every attempt ends in a tagged Result.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fbzone/internal/media"
	"fbzone/internal/workspace"
)

// Kind names the technique a strategy uses.
type Kind int

const (
	DirectFetch Kind = iota
	HeaderVariantFetch
	IDHeuristic
	BrowserRender
	KeyNavigation
	ImageDownload
	VideoScan
	ResolverService
	LocalTranscode
	RemoteConversion
)

func (k Kind) String() string {
	switch k {
	case DirectFetch:
		return "direct-fetch"
	case HeaderVariantFetch:
		return "header-variant-fetch"
	case IDHeuristic:
		return "id-heuristic"
	case BrowserRender:
		return "browser-render"
	case KeyNavigation:
		return "key-navigation"
	case ImageDownload:
		return "image-download"
	case VideoScan:
		return "video-scan"
	case ResolverService:
		return "resolver-service"
	case LocalTranscode:
		return "local-transcode"
	case RemoteConversion:
		return "remote-conversion"
	default:
		return "unknown"
	}
}

// Outcome tags a Result.
type Outcome int

const (
	Success     Outcome = iota
	SoftFailure         // Try the next strategy
	HardFailure         // Abort the resolution
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SoftFailure:
		return "soft-failure"
	case HardFailure:
		return "hard-failure"
	default:
		return "unknown"
	}
}

// Payload is what a successful attempt produced. Which field is set
// depends on the strategy: page markup, ready-made candidates, a located
// URL, or a local asset.
type Payload struct {
	Markup     string
	Candidates media.CandidateSet
	URL        string
	Asset      *media.Asset
}

// Result is the tagged outcome of one attempt.
type Result struct {
	Outcome Outcome
	Payload Payload
	Err     error // Reason for a failure
}

// Succeed wraps a payload.
func Succeed(p Payload) Result { return Result{Outcome: Success, Payload: p} }

// Soft reports a failure that lets the cascade continue.
func Soft(err error) Result { return Result{Outcome: SoftFailure, Err: err} }

// Hard reports a failure that ends the cascade.
func Hard(err error) Result { return Result{Outcome: HardFailure, Err: err} }

// Fail classifies err: an invalid source is hard, everything else soft.
func Fail(err error) Result {
	if errors.Is(err, media.ErrInvalidSource) {
		return Hard(err)
	}
	return Soft(err)
}

// Request is everything an attempt may read. It is built per resolution
// and never shared between resolutions.
type Request struct {
	Source    media.Source
	Goal      media.Goal
	Workspace *workspace.Workspace
	Target    string       // Page the current stage works on, e.g. a profile or photo URL
	Input     *media.Asset // Intermediate asset, e.g. the video to transcode
}

// Strategy is one tier of a cascade.
type Strategy interface {
	ID() string
	Kind() Kind
	Budget() time.Duration
	Attempt(ctx context.Context, req Request) Result
}

// Tier carries the configuration every strategy shares.
type Tier struct {
	Name    string
	Type    Kind
	Timeout time.Duration
}

func (t Tier) ID() string { return t.Name }

func (t Tier) Kind() Kind { return t.Type }

func (t Tier) Budget() time.Duration { return t.Timeout }

// Safe runs s.Attempt and turns a panic into a SoftFailure.
func Safe(ctx context.Context, s Strategy, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Soft(fmt.Errorf("strategy %s panicked: %v", s.ID(), r))
		}
	}()
	return s.Attempt(ctx, req)
}
