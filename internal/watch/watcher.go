// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// defaultIgnores covers VCS metadata, dependency caches, build outputs and
// editor noise.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/dist/**",
	"**/elm-stuff/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the components root; events are reported relative to it.
		Root string
		// Entities limits watching to these entity directories. Empty
		// watches every entity under Root.
		Entities []string
		// Patterns select the files that count as changes (e.g. "**/*.ts").
		// Empty matches every non-ignored file.
		Patterns []string
		// Ignore adds patterns to the built-in ignores.
		Ignore []string
		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration
		// OnChange receives the sorted, deduplicated component keys whose
		// files changed. It never runs concurrently with itself.
		OnChange func(ctx context.Context, components []string) error
	}

	// Watcher monitors a components root.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		debounce time.Duration
		root     string
		started  atomic.Bool
	}
)

// New validates cfg and registers every non-ignored directory under the
// watched entities.
func New(cfg Config) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch: components root %s is not a directory", root)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		root:     root,
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			slog.Warn("watch: close after init failure", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is canceled. It returns nil on cancellation and an
// error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
		wg      sync.WaitGroup
	)

	fire := func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			slog.Info("watch: previous run still in progress, retrying later")
			mu.Lock()
			if timer != nil {
				wg.Add(1)
				if timer.Reset(w.debounce) {
					wg.Done()
				}
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		keys := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(keys) == 0 || w.cfg.OnChange == nil {
			return
		}

		if err := w.cfg.OnChange(ctx, keys); err != nil {
			slog.Error("watch: rebuild failed", "components", keys, "error", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil && timer.Stop() {
			wg.Done()
		}
		mu.Unlock()
		wg.Wait()
		if err := w.fsw.Close(); err != nil {
			slog.Warn("watch: close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil || w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matchesPatterns(rel) {
				continue
			}
			key, ok := ComponentKey(rel)
			if !ok {
				continue
			}

			slog.Debug("watch: change", "path", rel, "component", key, "op", evt.Op.String())
			mu.Lock()
			pending[key] = struct{}{}
			if timer == nil {
				wg.Add(1)
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				wg.Add(1)
				if timer.Reset(w.debounce) {
					// the pending run was rescheduled, not added
					wg.Done()
				}
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			slog.Warn("watch: fsnotify error", "error", err)
		}
	}
}

// ComponentKey maps a path relative to the components root to its
// "entity/component" key. Paths directly under the root or an entity
// directory belong to no component.
func ComponentKey(rel string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if len(parts) < 3 || parts[0] == ".." || parts[0] == "." {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}

// Group splits component keys by entity, preserving order.
func Group(keys []string) map[string][]string {
	out := make(map[string][]string)
	for _, k := range keys {
		entity, component, ok := strings.Cut(k, "/")
		if !ok {
			continue
		}
		out[entity] = append(out[entity], component)
	}
	return out
}

func (w *Watcher) addDirectories() error {
	roots := []string{w.root}
	if len(w.cfg.Entities) > 0 {
		roots = roots[:0]
		for _, e := range w.cfg.Entities {
			roots = append(roots, filepath.Join(w.root, e))
		}
		// the root itself is watched so new entity directories are noticed
		if err := w.fsw.Add(w.root); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", w.root, err)
		}
	}

	for _, start := range roots {
		err := filepath.WalkDir(start, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				slog.Warn("watch: skipping inaccessible path", "path", path, "error", walkErr)
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(w.root, path)
			if relErr != nil {
				return nil
			}
			if w.isIgnored(rel) || w.isIgnored(rel+"/") {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch: add directory %q: %w", path, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("watch: walk directory tree: %w", err)
		}
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || w.isIgnored(rel) || w.isIgnored(rel+"/") || !w.inEntities(rel) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		slog.Warn("watch: add new directory", "path", path, "error", err)
	}
}

func (w *Watcher) inEntities(rel string) bool {
	if len(w.cfg.Entities) == 0 {
		return true
	}
	entity, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return slices.Contains(w.cfg.Entities, entity)
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	return matchAny(w.cfg.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
