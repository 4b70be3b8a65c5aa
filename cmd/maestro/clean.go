// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"
	"github.com/mf-maestro/maestro/internal/fsutil"
	"github.com/mf-maestro/maestro/internal/shell"

	"github.com/spf13/cobra"
)

func newCleanCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove node_modules and build output of every component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, map[string]string{
				"clean.dist": "dist",
				"clean.elm":  "elm",
			})
			if err != nil {
				return a.fail(cmd, err)
			}

			if s.Clean.Dist != "" && !filepath.IsLocal(s.Clean.Dist) {
				return a.fail(cmd, fmt.Errorf("clean: %q is not a path inside the component", s.Clean.Dist))
			}

			fs, root := a.componentsFS(s.Root)
			targets := cleanTargets(s.Clean)
			_, err = a.runComponents(cmd, s, fs, root, componentJob{
				Name: "clean",
				Op: func(ctx context.Context, t executor.Task) (*shell.Result, error) {
					for _, target := range targets {
						if err := ctx.Err(); err != nil {
							return nil, err
						}
						p := path.Join(t.Component.Path, target)
						slog.Debug("removing", "component", t.Component.Key(), "path", p)
						if err := fsutil.RemoveAll(fs, p); err != nil {
							return nil, err
						}
					}
					return nil, nil
				},
			})
			if err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringP("dist", "d", "dist", "build output directory to remove")
	cmd.Flags().Bool("elm", false, "also remove elm-stuff")
	return cmd
}

// cleanTargets lists the directories removed from each component.
func cleanTargets(c config.CleanSettings) []string {
	targets := []string{"node_modules"}
	if c.Dist != "" {
		targets = append(targets, c.Dist)
	}
	if c.Elm {
		targets = append(targets, "elm-stuff")
	}
	return targets
}
