package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fbzone/internal/resolve"
	"fbzone/internal/ui"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <url>",
	Short: "Find the uploader of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  identifyRun,
}

func identifyRun(cmd *cobra.Command, args []string) error {
	r, closeFn, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	id, err := r.Identify(ctx, args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), identificationJSON(id))
	}
	ui.New(cmd.OutOrStdout()).Identification(id)
	return nil
}

type candidateJSON struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type identityJSON struct {
	Source      string          `json:"source"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Strategy    string          `json:"strategy"`
	Policy      string          `json:"policy"`
	Selected    candidateJSON   `json:"selected"`
	Candidates  []candidateJSON `json:"candidates"`
	Attempts    []string        `json:"attempts,omitempty"`
}

func identificationJSON(id *resolve.Identification) identityJSON {
	out := identityJSON{
		Source:      id.Source.URL,
		Title:       id.Metadata.Title,
		Description: id.Metadata.Description,
		Strategy:    id.Strategy,
		Policy:      id.Policy,
		Selected:    candidateJSON{Name: id.Selected.DisplayName, URL: id.Selected.URL},
		Candidates:  make([]candidateJSON, len(id.Candidates)),
	}
	for i, c := range id.Candidates {
		out.Candidates[i] = candidateJSON{Name: c.DisplayName, URL: c.URL}
	}
	for _, a := range id.Attempts {
		out.Attempts = append(out.Attempts, a.ID+": "+a.Outcome.String())
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext cancels on Ctrl-C so running strategies release the browser
// and temporary files before exit.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
