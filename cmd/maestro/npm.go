// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"
	"github.com/mf-maestro/maestro/internal/shell"

	"github.com/spf13/cobra"
)

func newInstallCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the dependencies of every component (npm ci)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScript(cmd, "install", nil, func(*config.Settings) (string, []string) {
				return "npm ci", nil
			})
		},
	}
}

func newTestCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the tests of every component (npm test)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScript(cmd, "test", nil, func(*config.Settings) (string, []string) {
				return "npm test", nil
			})
		},
	}
}

// runScript runs the command line returned by line in every component.
func (a *App) runScript(cmd *cobra.Command, name string, keys map[string]string, line func(*config.Settings) (string, []string)) error {
	s, err := a.loadSettings(cmd.Context(), cmd, keys)
	if err != nil {
		return a.fail(cmd, err)
	}
	runner, err := a.newRunner(s.Runtime)
	if err != nil {
		return a.fail(cmd, err)
	}

	command, env := line(s)
	fs, root := a.componentsFS(s.Root)
	_, err = a.runComponents(cmd, s, fs, root, componentJob{
		Name: name,
		Op: func(ctx context.Context, t executor.Task) (*shell.Result, error) {
			return a.script(ctx, runner, t, command, env...)
		},
	})
	if err != nil {
		return a.fail(cmd, err)
	}
	return nil
}
