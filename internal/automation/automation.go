// Package automation is the narrow browser capability the resolver depends
// on: render a page, drive a keyboard script, and operate a third-party
// media resolution form. Anything that satisfies these interfaces can
// stand in for a real browser.
package automation

import (
	"context"
	"strings"
	"time"
)

// Renderer loads a URL in a scripted browser and returns the DOM
// serialization after the settle delay.
type Renderer interface {
	RenderMarkup(ctx context.Context, url string) (string, error)
}

// Navigator runs an input script against a loaded page.
type Navigator interface {
	SimulateKeyNavigation(ctx context.Context, url string, script Script) (NavigationResult, error)
}

// MediaLocator resolves a source page URL into a direct media URL through a
// third-party resolution service.
type MediaLocator interface {
	LocateMedia(ctx context.Context, sourceURL string) (string, error)
}

// Key names understood by every adapter.
const (
	KeyEscape = "Escape"
	KeyTab    = "Tab"
	KeyEnter  = "Enter"
)

// StepKind selects what a Step does.
type StepKind int

const (
	Focus StepKind = iota // Click Selector to give it focus
	Press                 // Send Key to the focused element
	Pause                 // Wait for Wait
)

// Step is one engine-neutral input event.
type Step struct {
	Kind     StepKind
	Key      string
	Selector string
	Wait     time.Duration
}

// Script is an ordered list of steps plus how to judge the outcome.
type Script struct {
	Steps          []Step
	DetailPattern  string   // Substring of the final URL that marks success
	AssetSelectors []string // Tried in order on the final page for an <img src>
}

// Reached reports whether finalURL is the detail view the script aims for.
func (s Script) Reached(finalURL string) bool {
	return s.DetailPattern != "" && strings.Contains(finalURL, s.DetailPattern)
}

// NavigationResult is what a script run produced.
type NavigationResult struct {
	Reached  bool
	FinalURL string
	AssetURL string // Empty when no selector matched
}

// ProfilePhotoScript focuses the page body, dismisses overlays, advances
// focus tabs times and activates the focused element.
func ProfilePhotoScript(tabs int, pause, settle time.Duration, assetSelectors []string) Script {
	steps := []Step{
		{Kind: Focus, Selector: "body"},
		{Kind: Pause, Wait: pause},
		{Kind: Press, Key: KeyEscape},
		{Kind: Pause, Wait: pause},
	}
	for i := 0; i < tabs; i++ {
		steps = append(steps, Step{Kind: Press, Key: KeyTab}, Step{Kind: Pause, Wait: pause})
	}
	steps = append(steps,
		Step{Kind: Press, Key: KeyEnter},
		Step{Kind: Pause, Wait: settle},
	)

	return Script{
		Steps:          steps,
		DetailPattern:  "/photo",
		AssetSelectors: assetSelectors,
	}
}
