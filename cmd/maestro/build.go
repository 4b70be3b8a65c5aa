// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"
	"github.com/mf-maestro/maestro/internal/shell"
	"github.com/mf-maestro/maestro/internal/watch"

	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"
)

func newBuildCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Install and build every component (npm ci && npm run build)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, map[string]string{"environment": "environment"})
			if err != nil {
				return a.fail(cmd, err)
			}
			runner, err := a.newRunner(s.Runtime)
			if err != nil {
				return a.fail(cmd, err)
			}

			fs, root := a.componentsFS(s.Root)
			job := componentJob{
				Name: "build",
				Op: func(ctx context.Context, t executor.Task) (*shell.Result, error) {
					return a.script(ctx, runner, t, "npm ci && npm run build", "NODE_ENV="+s.Environment)
				},
			}

			_, runErr := a.runComponents(cmd, s, fs, root, job)
			watchMode, _ := cmd.Flags().GetBool("watch")
			if !watchMode {
				if runErr != nil {
					return a.fail(cmd, runErr)
				}
				return nil
			}
			if runErr != nil {
				fmt.Fprintln(a.stderr, WarningStyle.Render("Initial build failed, watching anyway: ")+formatErrorForDisplay(runErr, false))
			}
			return a.watchBuild(cmd, s, fs, root, job)
		},
	}
	cmd.Flags().String("environment", config.DefaultEnvironment, "NODE_ENV passed to the build (also read from NODE_ENV)")
	cmd.Flags().BoolP("watch", "w", false, "rebuild components when their files change")
	cmd.Flags().Duration("debounce", 0, "quiet period before a rebuild (default 500ms)")
	return cmd
}

// watchBuild rebuilds the components whose files change until the command
// context is canceled.
func (a *App) watchBuild(cmd *cobra.Command, s *config.Settings, fs billy.Filesystem, root string, job componentJob) error {
	entities, err := a.entities(cmd, s)
	if err != nil {
		return a.fail(cmd, err)
	}
	byName := make(map[string]config.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")

	ex := executor.New(fs, executor.WithLogger(slog.Default()))
	w, err := watch.New(watch.Config{
		Root:     filepath.Join(fs.Root(), filepath.FromSlash(root)),
		Entities: slices.Sorted(maps.Keys(byName)),
		Debounce: debounce,
		OnChange: func(ctx context.Context, keys []string) error {
			groups := watch.Group(keys)
			for _, name := range slices.Sorted(maps.Keys(groups)) {
				for _, comp := range groups[name] {
					slog.Info("rebuilding", "entity", name, "component", comp)
					start := time.Now()
					runs, err := ex.Run(ctx, []config.Entity{byName[name]}, job.Op, executor.Options{
						Name:           job.Name,
						ComponentsRoot: root,
						Component:      comp,
						Sequential:     true,
						FailurePolicy:  s.FailurePolicy,
					})
					renderSummary(a.stdout, job.Name, runs, time.Since(start))
					if err != nil {
						slog.Error("rebuild failed", "entity", name, "component", comp, "error", err)
					}
				}
			}
			return nil
		},
	})
	if err != nil {
		return a.fail(cmd, err)
	}

	fmt.Fprintln(a.stdout, SubtitleStyle.Render("Watching "+CmdStyle.Render(root)+" for changes, press Ctrl+C to stop"))
	if err := w.Run(cmd.Context()); err != nil {
		return a.fail(cmd, err)
	}
	return nil
}
