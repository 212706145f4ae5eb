package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fbzone/internal/media"
	"fbzone/internal/resolve"
	"fbzone/internal/ui"
)

var (
	flagGoal        string
	flagConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <file|->",
	Short: "Resolve every URL listed in a file, one per line",
	Long: `batch reads URLs from a file (or stdin with "-") and resolves each for the
chosen goal. Blank lines and lines starting with # are skipped. A failed URL
does not stop the others; the command fails if any URL failed.`,
	Args: cobra.ExactArgs(1),
	RunE: batchRun,
}

func init() {
	batchCmd.Flags().StringVarP(&flagGoal, "goal", "g", "identity", "identity | audio | video | photo")
	batchCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 2, "URLs resolved at once")
}

// batchResult is the outcome for one input line.
type batchResult struct {
	URL    string `json:"url"`
	Result string `json:"result,omitempty"` // Selected profile or saved path
	Error  string `json:"error,omitempty"`
}

func batchRun(cmd *cobra.Command, args []string) error {
	goal, err := media.ParseGoal(flagGoal)
	if err != nil {
		return err
	}
	if flagConcurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening batch file: %w", err)
		}
		defer f.Close()
		in = f
	}
	urls, err := readURLs(in)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs in %s", args[0])
	}

	r, closeFn, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	results := resolveAll(ctx, urls, flagConcurrency, func(ctx context.Context, u string) (string, error) {
		return resolveOne(ctx, r, goal, u)
	})

	failed := 0
	p := ui.New(cmd.OutOrStdout())
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
		if !flagJSON {
			if res.Error != "" {
				p.Progress("FAIL %s: %s", res.URL, res.Error)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s -> %s\n", res.URL, res.Result)
			}
		}
	}
	if flagJSON {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(results))
	}
	return nil
}

// resolveAll runs fn for every URL with at most limit in flight. Results
// keep input order; a failed URL never cancels the rest.
func resolveAll(ctx context.Context, urls []string, limit int, fn func(context.Context, string) (string, error)) []batchResult {
	results := make([]batchResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i].URL = u
			if gctx.Err() != nil {
				results[i].Error = gctx.Err().Error()
				return nil
			}
			out, err := fn(gctx, u)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = out
			return nil
		})
	}
	g.Wait()
	return results
}

func resolveOne(ctx context.Context, r *resolve.Resolver, goal media.Goal, rawURL string) (string, error) {
	if goal == media.Identity {
		id, err := r.Identify(ctx, rawURL)
		if err != nil {
			return "", err
		}
		return id.Selected.URL, nil
	}

	asset, profile, err := fetchAsset(ctx, r, goal, rawURL)
	if err != nil {
		return "", err
	}
	defer asset.Close()
	return saveAsset(asset, goal, rawURL, profile, "")
}

// readURLs returns the non-blank, non-comment lines of r, each once.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading batch input: %w", err)
	}
	return urls, nil
}
