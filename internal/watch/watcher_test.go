// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mkTree(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func write(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestWatcher_DebouncesPerComponent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkTree(t, root, "billing/list/src", "billing/detail", "crm/new/dist")

	var (
		mu    sync.Mutex
		calls [][]string
	)
	done := make(chan struct{}, 1)

	w, err := New(Config{
		Root:     root,
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, keys []string) error {
			mu.Lock()
			calls = append(calls, keys)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	write(t, filepath.Join(root, "crm/new/dist/bundle.js"))
	write(t, filepath.Join(root, "billing/list/src/a.ts"))
	time.Sleep(10 * time.Millisecond)
	write(t, filepath.Join(root, "billing/list/src/b.ts"))
	time.Sleep(10 * time.Millisecond)
	write(t, filepath.Join(root, "billing/detail/index.ts"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(200 * time.Millisecond)

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("callbacks = %d (%v), want 1", len(calls), calls)
	}
	if diff := cmp.Diff([]string{"billing/detail", "billing/list"}, calls[0]); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir(), Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Root: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("New() expected error for missing root")
	}
	if _, err := New(Config{Root: t.TempDir(), Patterns: []string{"[bad"}}); err == nil {
		t.Error("New() expected error for invalid pattern")
	}
}

func TestComponentKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel  string
		want string
		ok   bool
	}{
		{"billing/list/src/a.ts", "billing/list", true},
		{"billing/list/package.json", "billing/list", true},
		{"billing/list", "", false},
		{"billing", "", false},
		{"../outside/x/y", "", false},
	}
	for _, tt := range tests {
		got, ok := ComponentKey(tt.rel)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ComponentKey(%q) = %q, %v, want %q, %v", tt.rel, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGroup(t *testing.T) {
	t.Parallel()

	got := Group([]string{"billing/detail", "billing/list", "crm/new", "bogus"})
	want := map[string][]string{
		"billing": {"detail", "list"},
		"crm":     {"new"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Group() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	ignores := DefaultIgnores()
	ignores[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() returned the internal slice")
	}
	for _, rel := range []string{"a/b/node_modules/x.js", "a/b/dist/main.js", "a/b/.git/HEAD"} {
		if !matchAny(DefaultIgnores(), rel) {
			t.Errorf("%s should be ignored by default", rel)
		}
	}
}
