package cmd

import (
	"fmt"

	"fbzone/internal/automation"
	"fbzone/internal/config"
	"fbzone/internal/convert"
	"fbzone/internal/download"
	"fbzone/internal/extract"
	"fbzone/internal/history"
	"fbzone/internal/httputil"
	"fbzone/internal/resolve"
	"fbzone/internal/strategy"
	"fbzone/internal/transcode"
)

// newResolver builds the strategy chains described by c. The returned
// close func releases the history store.
func newResolver(c *config.Config) (*resolve.Resolver, func(), error) {
	policy, err := extract.PolicyByName(c.Selection)
	if err != nil {
		return nil, nil, err
	}

	profiles := make([]httputil.Profile, len(c.Profiles))
	for i, p := range c.Profiles {
		profiles[i] = httputil.Profile{
			Name:           p.Name,
			UserAgent:      p.UserAgent,
			Accept:         p.Accept,
			AcceptLanguage: p.AcceptLanguage,
			Proxy:          p.Proxy,
			Headers:        p.Headers,
		}
	}
	primary, variants := profiles[0], profiles[1:]

	pages := httputil.NewFetcher(httputil.FetcherOptions{
		Timeout:      c.Fetch.Timeout,
		Interval:     c.Fetch.Interval,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
	})
	// Media bodies take far longer than pages; they get their own client timeout.
	media := httputil.NewFetcher(httputil.FetcherOptions{Timeout: c.Budgets.Download})
	downloader := download.New(media, primary, c.Fetch.MaxMedia)

	chrome := automation.NewChrome(automation.ChromeOptions{
		ExecPath:     c.Browser.ExecPath,
		Headless:     c.Browser.Headless,
		UserAgent:    c.Browser.UserAgent,
		Proxy:        c.Browser.Proxy,
		Settle:       c.Browser.Settle,
		WindowWidth:  c.Browser.WindowWidth,
		WindowHeight: c.Browser.WindowHeight,
		Resolver: automation.ResolverForm{
			URL:             c.Resolver.URL,
			InputSelector:   c.Resolver.InputSelector,
			ResultsSelector: c.Resolver.ResultsSelector,
			LinkSelector:    c.Resolver.LinkSelector,
		},
	}, logger)

	converter := convert.New(convert.Options{
		BaseURL:         c.Conversion.BaseURL,
		PollInterval:    c.Conversion.PollInterval,
		MaxPolls:        c.Conversion.MaxPolls,
		RequestTimeout:  c.Conversion.RequestTimeout,
		UploadTimeout:   c.Conversion.UploadTimeout,
		DownloadTimeout: c.Conversion.DownloadTimeout,
		UserAgent:       primary.UserAgent,
	}, logger)

	extractor := extract.New(nil)
	b := c.Budgets

	chains := resolve.Chains{
		Identity: []strategy.Strategy{
			&strategy.Direct{Tier: strategy.Tier{Name: "direct-fetch", Type: strategy.DirectFetch, Timeout: b.DirectFetch}, Fetcher: pages, Profile: primary},
			&strategy.HeaderVariants{Tier: strategy.Tier{Name: "header-variant-fetch", Type: strategy.HeaderVariantFetch, Timeout: b.HeaderVariants}, Fetcher: pages, Profiles: variants, Extractor: extractor, Logger: logger},
			&strategy.IDGuess{Tier: strategy.Tier{Name: "id-heuristic", Type: strategy.IDHeuristic}},
			&strategy.Render{Tier: strategy.Tier{Name: "browser-render", Type: strategy.BrowserRender, Timeout: b.BrowserRender}, Renderer: chrome},
		},
		Video: []strategy.Strategy{
			&strategy.PageVideoScan{Tier: strategy.Tier{Name: "page-video-scan", Type: strategy.VideoScan, Timeout: b.VideoScan}, Fetcher: pages, Profile: primary, Downloader: downloader, DownloadTimeout: b.Download},
			&strategy.Resolver{Tier: strategy.Tier{Name: "resolver-service", Type: strategy.ResolverService, Timeout: b.ResolverService}, Locator: chrome, Downloader: downloader, DownloadTimeout: b.Download},
		},
		Audio: []strategy.Strategy{
			&strategy.Transcode{Tier: strategy.Tier{Name: "local-transcode", Type: strategy.LocalTranscode, Timeout: b.LocalTranscode}, Codec: transcode.New(c.FFmpeg, logger)},
			&strategy.Remote{Tier: strategy.Tier{Name: "remote-conversion", Type: strategy.RemoteConversion, Timeout: b.RemoteConvert}, Converter: converter},
		},
		Locate: []strategy.Strategy{
			&strategy.Navigate{
				Tier:      strategy.Tier{Name: "key-navigation", Type: strategy.KeyNavigation, Timeout: b.KeyNavigation},
				Navigator: chrome,
				Script:    automation.ProfilePhotoScript(c.Navigation.Tabs, c.Navigation.Pause, c.Navigation.Settle, extract.PhotoSelectors),
			},
		},
		Image: []strategy.Strategy{
			&strategy.DirectImage{Tier: strategy.Tier{Name: "direct-image", Type: strategy.ImageDownload, Timeout: b.Download}, Downloader: downloader},
			&strategy.PageImageScan{Tier: strategy.Tier{Name: "page-image-scan", Type: strategy.ImageDownload, Timeout: b.ImageScan}, Fetcher: pages, Profile: primary, Downloader: downloader},
			&strategy.RenderedImageScan{Tier: strategy.Tier{Name: "rendered-image-scan", Type: strategy.BrowserRender, Timeout: b.ImageScan}, Renderer: chrome, Downloader: downloader},
		},
	}

	opts := resolve.Options{
		Chains: chains,
		Ceilings: resolve.Ceilings{
			Identity: b.Identity,
			Video:    b.Video,
			Audio:    b.Audio,
			Photo:    b.Photo,
		},
		Policy:    policy,
		Extractor: extractor,
		WorkDir:   c.WorkDir,
		Logger:    logger,
	}

	closeFn := func() {}
	if c.History {
		path, err := config.HistoryPath()
		if err != nil {
			return nil, nil, err
		}
		store, err := history.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history: %w", err)
		}
		opts.Recorder = store
		closeFn = func() { store.Close() }
	}

	return resolve.New(opts), closeFn, nil
}
