// Package ui renders resolution results on the terminal. Output to a
// non-terminal writer carries no styling.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"fbzone/internal/history"
	"fbzone/internal/media"
	"fbzone/internal/resolve"
)

const defaultWidth = 100

// Printer writes styled output to w.
type Printer struct {
	w     io.Writer
	width int

	title    lipgloss.Style
	selected lipgloss.Style
	muted    lipgloss.Style
	failure  lipgloss.Style
}

// New creates a Printer for w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:        w,
		width:    width(w),
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		selected: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("245")),
		failure:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

func width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols < 20 {
		return defaultWidth
	}
	return cols
}

// Identification prints metadata, the candidate list and the selection.
func (p *Printer) Identification(id *resolve.Identification) {
	if !id.Metadata.Empty() {
		if id.Metadata.Title != "" {
			fmt.Fprintln(p.w, p.title.Render(p.truncate(id.Metadata.Title, 0)))
		}
		if id.Metadata.Description != "" {
			fmt.Fprintln(p.w, p.muted.Render(p.truncate(id.Metadata.Description, 0)))
		}
		fmt.Fprintln(p.w)
	}

	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf("%d candidate(s) via %s", len(id.Candidates), id.Strategy)))
	p.Candidates(id.Candidates, id.Selected)
	fmt.Fprintf(p.w, "\n%s %s (%s)\n", p.selected.Render("selected:"), id.Selected.URL, id.Policy)
}

// Candidates prints set in order, marking selected.
func (p *Printer) Candidates(set media.CandidateSet, selected media.IdentityCandidate) {
	for i, c := range set {
		marker := " "
		line := fmt.Sprintf("%2d. %s  %s", i+1, c.DisplayName, c.URL)
		if c.URL == selected.URL {
			marker = ">"
			line = p.selected.Render(p.truncate(line, 2))
		} else {
			line = p.truncate(line, 2)
		}
		fmt.Fprintf(p.w, "%s %s\n", marker, line)
	}
}

// Saved reports an asset written to path.
func (p *Printer) Saved(goal media.Goal, path string, a *media.Asset) {
	fmt.Fprintf(p.w, "%s %s\n", p.selected.Render("saved "+goal.String()+":"), path)
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf("  %s, %s, from %s", a.ContentType, humanSize(a.Size), p.truncate(a.Origin, 20))))
}

// Error prints err on one line, with the attempted strategies when the
// resolution was exhausted.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.w, "%s %v\n", p.failure.Render("error:"), err)
}

// History prints entries as a table.
func (p *Printer) History(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("No history yet."))
		return
	}
	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf("%-16s  %-8s  %-9s  %-20s  %s", "WHEN", "GOAL", "OUTCOME", "STRATEGY", "SOURCE")))
	for _, e := range entries {
		line := fmt.Sprintf("%-16s  %-8s  %-9s  %-20s  %s",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Goal, e.Outcome, e.Strategy, e.Source)
		line = p.truncate(line, 0)
		if e.Outcome != history.Succeeded {
			line = p.muted.Render(line)
		}
		fmt.Fprintln(p.w, line)
	}
}

// Progress prints a muted status line.
func (p *Printer) Progress(format string, args ...any) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(format, args...)))
}

// Elapsed formats d for status lines.
func Elapsed(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

func (p *Printer) truncate(s string, indent int) string {
	max := p.width - indent
	if max < 10 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
