package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"fbzone/internal/httputil"
	"fbzone/internal/media"
	"fbzone/internal/resolve"
	"fbzone/internal/source"
	"fbzone/internal/ui"
)

var flagName string

var audioCmd = &cobra.Command{
	Use:   "audio <video-url>",
	Short: "Extract the audio track of a video as MP3",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchRun(cmd, media.Audio, args[0])
	},
}

var videoCmd = &cobra.Command{
	Use:   "video <video-url>",
	Short: "Download a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchRun(cmd, media.Video, args[0])
	},
}

var photoCmd = &cobra.Command{
	Use:   "photo <video-or-profile-url>",
	Short: "Download the profile photo of a video's uploader or of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchRun(cmd, media.Photo, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{audioCmd, videoCmd, photoCmd} {
		c.Flags().StringVarP(&flagName, "name", "n", "", "Output file name without extension")
	}
}

type savedJSON struct {
	Goal        string `json:"goal"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Origin      string `json:"origin"`
	Profile     string `json:"profile,omitempty"`
}

func fetchRun(cmd *cobra.Command, goal media.Goal, rawURL string) error {
	r, closeFn, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	start := time.Now()
	asset, profile, err := fetchAsset(ctx, r, goal, rawURL)
	if err != nil {
		return err
	}
	defer asset.Close()
	logger.Debug("resolved", "goal", goal, "origin", asset.Origin, "elapsed", ui.Elapsed(time.Since(start)))

	path, err := saveAsset(asset, goal, rawURL, profile, flagName)
	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), savedJSON{
			Goal:        goal.String(),
			Path:        path,
			ContentType: asset.ContentType,
			Size:        asset.Size,
			Origin:      asset.Origin,
			Profile:     profile,
		})
	}
	ui.New(cmd.OutOrStdout()).Saved(goal, path, asset)
	return nil
}

// fetchAsset runs the goal's resolution. For photos it also returns the
// profile URL the image belongs to.
func fetchAsset(ctx context.Context, r *resolve.Resolver, goal media.Goal, rawURL string) (*media.Asset, string, error) {
	switch goal {
	case media.Audio:
		a, err := r.Audio(ctx, rawURL)
		return a, "", err
	case media.Video:
		a, err := r.Video(ctx, rawURL)
		return a, "", err
	case media.Photo:
		res, err := r.Photo(ctx, rawURL)
		if err != nil {
			return nil, "", err
		}
		return res.Asset, res.Profile.URL, nil
	}
	return nil, "", fmt.Errorf("goal %s produces no file", goal)
}

// saveAsset copies a into the output directory and returns the written path.
func saveAsset(a *media.Asset, goal media.Goal, rawURL, profile, name string) (string, error) {
	dir, err := cfg.ExpandOutputDir()
	if err != nil {
		return "", err
	}
	if name == "" {
		name = outputName(goal, rawURL, profile)
	}
	path, err := outputs.claim(dir, name, a.Ext())
	if err != nil {
		return "", err
	}
	if err := a.Persist(path); err != nil {
		return "", err
	}
	return path, nil
}

// outputs hands out output paths. Batch workers may derive the same name,
// so a claimed or existing path is never handed out twice.
var outputs = &outputPaths{claimed: make(map[string]bool)}

type outputPaths struct {
	mu      sync.Mutex
	claimed map[string]bool
}

// claim returns a free path for name+ext inside dir, numbering the name
// ("-2", "-3", ...) when it is taken.
func (o *outputPaths) claim(dir, name, ext string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := 1; i <= 1000; i++ {
		n := name
		if i > 1 {
			n = fmt.Sprintf("%s-%d", name, i)
		}
		path, err := httputil.SafePath(dir, n+ext)
		if err != nil {
			return "", err
		}
		if o.claimed[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		o.claimed[path] = true
		return path, nil
	}
	return "", fmt.Errorf("no free output name for %s%s in %s", name, ext, dir)
}

// outputName derives a file name from the content ID of the item the asset
// belongs to.
func outputName(goal media.Goal, rawURL, profile string) string {
	ref := rawURL
	if profile != "" {
		ref = profile
	}
	id := ""
	if src, err := source.Parse(ref); err == nil {
		id = src.ContentID
	}
	if id == "" {
		id = time.Now().Format("20060102-150405")
	}
	return httputil.SanitizeFilename(fmt.Sprintf("fb-%s-%s", goal, id))
}
