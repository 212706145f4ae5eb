package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ResolverForm describes the third-party media resolution page.
type ResolverForm struct {
	URL             string
	InputSelector   string
	ResultsSelector string
	LinkSelector    string
}

// ChromeOptions configures the chromedp adapter.
type ChromeOptions struct {
	ExecPath     string
	Headless     bool
	UserAgent    string
	Proxy        string
	Settle       time.Duration
	WindowWidth  int
	WindowHeight int
	Resolver     ResolverForm
}

// Chrome implements Renderer, Navigator and MediaLocator over chromedp.
// Every call launches its own browser and tears it down before returning.
type Chrome struct {
	opts   ChromeOptions
	logger *slog.Logger
}

// NewChrome creates a Chrome adapter.
func NewChrome(opts ChromeOptions, logger *slog.Logger) *Chrome {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 720
	}
	return &Chrome{opts: opts, logger: logger}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(c.opts.WindowWidth, c.opts.WindowHeight),
	)
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	if proxy := strings.TrimSpace(c.opts.Proxy); proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	if path := strings.TrimSpace(c.opts.ExecPath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}

// session launches a browser scoped to fn. The browser is closed when fn
// returns, whatever the outcome.
func (c *Chrome) session(ctx context.Context, fn func(ctx context.Context) error) error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()

	logf := func(format string, args ...any) {
		c.logger.Debug(fmt.Sprintf(format, args...), "component", "chrome")
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	)
	defer cancelBrowser()

	return fn(browserCtx)
}

// RenderMarkup implements Renderer.
func (c *Chrome) RenderMarkup(ctx context.Context, url string) (string, error) {
	var markup string
	err := c.session(ctx, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			chromedp.Navigate(url),
			chromedp.Sleep(c.opts.Settle),
			chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		)
	})
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}
	return markup, nil
}

// SimulateKeyNavigation implements Navigator.
func (c *Chrome) SimulateKeyNavigation(ctx context.Context, url string, script Script) (NavigationResult, error) {
	var res NavigationResult
	var markup string

	err := c.session(ctx, func(ctx context.Context) error {
		tasks := chromedp.Tasks{
			chromedp.Navigate(url),
			chromedp.Sleep(c.opts.Settle),
		}
		for _, step := range script.Steps {
			action, err := stepAction(step)
			if err != nil {
				return err
			}
			tasks = append(tasks, action)
		}
		tasks = append(tasks,
			chromedp.Location(&res.FinalURL),
			chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		)
		return chromedp.Run(ctx, tasks)
	})
	if err != nil {
		return NavigationResult{}, fmt.Errorf("key navigation on %s: %w", url, err)
	}

	res.Reached = script.Reached(res.FinalURL)
	if res.Reached {
		res.AssetURL = firstImageSrc(markup, script.AssetSelectors)
	}
	c.logger.Debug("key navigation finished", "final_url", res.FinalURL, "reached", res.Reached)
	return res, nil
}

func stepAction(step Step) (chromedp.Action, error) {
	switch step.Kind {
	case Focus:
		return chromedp.Click(step.Selector, chromedp.ByQuery, chromedp.NodeVisible), nil
	case Press:
		key, ok := keys[step.Key]
		if !ok {
			return nil, fmt.Errorf("unsupported key %q", step.Key)
		}
		return chromedp.KeyEvent(key), nil
	case Pause:
		return chromedp.Sleep(step.Wait), nil
	default:
		return nil, fmt.Errorf("unknown step kind %d", step.Kind)
	}
}

var keys = map[string]string{
	KeyEscape: kb.Escape,
	KeyTab:    kb.Tab,
	KeyEnter:  kb.Enter,
}

func firstImageSrc(markup string, selectors []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	for _, sel := range selectors {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.HasPrefix(src, "http") {
			return src
		}
	}
	return ""
}

// LocateMedia implements MediaLocator. It submits sourceURL to the
// resolution form and reads the download link, falling back to the URL of
// the download the link triggers.
func (c *Chrome) LocateMedia(ctx context.Context, sourceURL string) (string, error) {
	form := c.opts.Resolver
	if form.URL == "" {
		return "", errors.New("no resolver service configured")
	}

	var mediaURL string
	err := c.session(ctx, func(ctx context.Context) error {
		var href string
		var ok bool
		err := chromedp.Run(ctx,
			chromedp.Navigate(form.URL),
			chromedp.WaitVisible(form.InputSelector, chromedp.ByQuery),
			chromedp.SetValue(form.InputSelector, sourceURL, chromedp.ByQuery),
			chromedp.SendKeys(form.InputSelector, kb.Enter, chromedp.ByQuery),
			chromedp.WaitVisible(form.ResultsSelector, chromedp.ByQuery),
			chromedp.WaitVisible(form.LinkSelector, chromedp.ByQuery),
			chromedp.AttributeValue(form.LinkSelector, "href", &href, &ok, chromedp.ByQuery),
		)
		if err != nil {
			return err
		}
		if ok && strings.HasPrefix(href, "http") {
			mediaURL = href
			return nil
		}

		c.logger.Debug("resolver link has no direct href, waiting for download event")
		mediaURL, err = c.captureDownload(ctx, form.LinkSelector)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("resolver service: %w", err)
	}
	return mediaURL, nil
}

// captureDownload clicks sel and returns the URL of the download it starts.
func (c *Chrome) captureDownload(ctx context.Context, sel string) (string, error) {
	dir, err := os.MkdirTemp("", "fbzone-dl-*")
	if err != nil {
		return "", fmt.Errorf("creating download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	found := make(chan string, 1)
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadWillBegin); ok {
			select {
			case found <- e.URL:
			default:
			}
		}
	})

	err = chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	select {
	case u := <-found:
		return u, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for download: %w", ctx.Err())
	}
}
