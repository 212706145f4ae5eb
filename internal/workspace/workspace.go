// Package workspace gives each resolution request its own scratch
// directory, named from a per-request token so concurrent requests never
// collide.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"fbzone/internal/httputil"
)

// Workspace is a per-request temp directory.
type Workspace struct {
	token string
	dir   string
}

// New creates a workspace under root, or under os.TempDir when root is empty.
func New(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	token := uuid.NewString()
	dir := filepath.Join(root, "fbzone-"+token)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{token: token, dir: dir}, nil
}

// Token is the request's unique token.
func (w *Workspace) Token() string { return w.token }

// Dir is the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path returns a sanitized file path inside the workspace.
func (w *Workspace) Path(name string) (string, error) {
	return httputil.SafePath(w.dir, name)
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if w.dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("removing workspace: %w", err)
	}
	return nil
}
