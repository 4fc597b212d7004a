// Package workspacetest builds and inspects workspace trees in tests.
package workspacetest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
)

// Tree creates each relative path under root. Paths ending in "/" become
// directories; everything else becomes a small file.
func Tree(t testing.TB, root string, paths ...string) {
	t.Helper()
	for _, rel := range paths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(full, dirPermissions); err != nil {
				t.Fatalf("create dir %s: %v", full, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), dirPermissions); err != nil {
			t.Fatalf("create dir for %s: %v", full, err)
		}
		if err := os.WriteFile(full, []byte(rel), filePermissions); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}
}

// Entries returns the sorted names directly under dir.
func Entries(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// FileAssertions checks workspace state relative to a base directory.
type FileAssertions struct {
	t       testing.TB
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t testing.TB, baseDir string) *FileAssertions {
	return &FileAssertions{t: t, baseDir: baseDir}
}

// Exists fails unless relativePath is present.
func (fa *FileAssertions) Exists(relativePath string) *FileAssertions {
	fa.t.Helper()
	full := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Stat(full); err != nil {
		fa.t.Errorf("expected %s to exist: %v", full, err)
	}
	return fa
}

// Missing fails if relativePath is present.
func (fa *FileAssertions) Missing(relativePath string) *FileAssertions {
	fa.t.Helper()
	full := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Stat(full); err == nil {
		fa.t.Errorf("expected %s to be absent", full)
	}
	return fa
}

// Contains fails unless the file at relativePath contains substr.
func (fa *FileAssertions) Contains(relativePath, substr string) *FileAssertions {
	fa.t.Helper()
	full := filepath.Join(fa.baseDir, relativePath)
	content, err := os.ReadFile(full)
	if err != nil {
		fa.t.Errorf("read %s: %v", full, err)
		return fa
	}
	if !strings.Contains(string(content), substr) {
		fa.t.Errorf("expected %s to contain %q\nactual content:\n%s", relativePath, substr, content)
	}
	return fa
}

// Exactly fails unless the base directory holds exactly names.
func (fa *FileAssertions) Exactly(names ...string) *FileAssertions {
	fa.t.Helper()
	want := append([]string(nil), names...)
	sort.Strings(want)
	got := Entries(fa.t, fa.baseDir)
	if strings.Join(got, "\x00") != strings.Join(want, "\x00") {
		fa.t.Errorf("workspace %s holds %v, want %v", fa.baseDir, got, want)
	}
	return fa
}
