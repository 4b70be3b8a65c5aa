// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/issue"
	"github.com/mf-maestro/maestro/internal/shell"
	"github.com/mf-maestro/maestro/internal/testutil"

	"github.com/go-git/go-billy/v5/osfs"
)

// Command tests are not parallel: loadSettings replaces the slog default.

type fakeRunner struct {
	mu      sync.Mutex
	scripts []shell.Script
	run     func(s shell.Script) (*shell.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, s shell.Script) (*shell.Result, error) {
	f.mu.Lock()
	f.scripts = append(f.scripts, s)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(s)
	}
	return &shell.Result{}, nil
}

// dirs returns the sorted component directories the runner was called in,
// relative to root.
func (f *fakeRunner) dirs(t *testing.T, root string) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.scripts))
	for _, s := range f.scripts {
		rel, err := filepath.Rel(root, s.Dir)
		if err != nil {
			t.Fatalf("Rel(%s, %s): %v", root, s.Dir, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	slices.Sort(out)
	return out
}

type testApp struct {
	*App
	dir     string
	runner  *fakeRunner
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	project *testutil.Project
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	runner := &fakeRunner{}
	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		NewRunner: func(config.RuntimeMode) (shell.Runner, error) { return runner, nil },
		WorkDir:   dir,
		Stdout:    &stdout,
		Stderr:    &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return &testApp{
		App:     app,
		dir:     dir,
		runner:  runner,
		stdout:  &stdout,
		stderr:  &stderr,
		project: testutil.NewProject(t, osfs.New(dir), config.DefaultRoot),
	}
}

func (ta *testApp) execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(ta.App)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(t.Context())
}

func (ta *testApp) writeGlobal(t *testing.T, entities ...string) {
	t.Helper()
	quoted := make([]string, len(entities))
	for i, e := range entities {
		quoted[i] = `{"name": "` + e + `"}`
	}
	testutil.MustWriteFile(t, filepath.Join(ta.dir, "maestro.json"), `{"entities": [`+strings.Join(quoted, ", ")+`]}`)
}

func exitIssue(t *testing.T, err error) issue.Id {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.Code)
	}
	return issue.IDOf(exitErr.Err)
}

func TestComponentsFS(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	a := &App{workDir: work}

	tests := []struct {
		name     string
		root     string
		wantFS   string
		wantRoot string
	}{
		{"relative", "apps", work, "apps"},
		{"nested", "src/components", work, "src/components"},
		{"absolute inside", filepath.Join(work, "apps"), work, "apps"},
		{"outside", filepath.Join(filepath.Dir(work), "other"), filepath.Join(filepath.Dir(work), "other"), "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs, root := a.componentsFS(tt.root)
			if fs.Root() != tt.wantFS {
				t.Errorf("fs.Root() = %q, want %q", fs.Root(), tt.wantFS)
			}
			if root != tt.wantRoot {
				t.Errorf("root = %q, want %q", root, tt.wantRoot)
			}
		})
	}
}
