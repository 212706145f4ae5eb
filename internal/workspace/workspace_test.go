package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewIsUniquePerRequest(t *testing.T) {
	root := t.TempDir()

	a, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	if a.Token() == b.Token() {
		t.Errorf("two workspaces share token %s", a.Token())
	}
	if a.Dir() == b.Dir() {
		t.Errorf("two workspaces share dir %s", a.Dir())
	}
	if !strings.Contains(a.Dir(), a.Token()) {
		t.Errorf("dir %s does not carry token %s", a.Dir(), a.Token())
	}
}

func TestPathStaysInside(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	p, err := ws.Path("../../escape.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(p) != ws.Dir() {
		t.Errorf("path %s is outside %s", p, ws.Dir())
	}
}

func TestRemove(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, _ := ws.Path("video.mp4")
	if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := ws.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Remove: %v", err)
	}
}
