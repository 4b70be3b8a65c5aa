// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"
	"github.com/mf-maestro/maestro/internal/issue"
	"github.com/mf-maestro/maestro/internal/shell"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type (
	// RunnerFactory builds the shell runner for a runtime mode.
	RunnerFactory func(mode config.RuntimeMode) (shell.Runner, error)

	// App is the composition root of the CLI. Command handlers receive it
	// and reach settings, filesystems and runners only through it.
	App struct {
		newRunner RunnerFactory
		workDir   string
		stdout    io.Writer
		stderr    io.Writer
		runID     string

		// outMu serializes streamed component output.
		outMu   sync.Mutex
		verbose bool
	}

	// Dependencies are the injection points of NewApp. Nil or empty fields
	// get production defaults.
	Dependencies struct {
		NewRunner RunnerFactory
		WorkDir   string
		Stdout    io.Writer
		Stderr    io.Writer
	}
)

// commonFlagKeys binds the persistent root flags to settings keys.
var commonFlagKeys = map[string]string{
	"root":           "root",
	"global_config":  "global-config",
	"concurrency":    "concurrency",
	"sequential":     "sequential",
	"failure_policy": "failure-policy",
	"runtime":        "runtime",
	"verbose":        "verbose",
}

// NewApp fills in the defaults of deps.
func NewApp(deps Dependencies) (*App, error) {
	a := &App{
		newRunner: deps.NewRunner,
		workDir:   deps.WorkDir,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
		runID:     uuid.NewString(),
	}
	if a.newRunner == nil {
		a.newRunner = shell.New
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	if a.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		a.workDir = wd
	}
	return a, nil
}

// loadSettings resolves settings for cmd, binding the common flags plus
// keys, and installs the run logger.
func (a *App) loadSettings(ctx context.Context, cmd *cobra.Command, keys map[string]string) (*config.Settings, error) {
	flagKeys := maps.Clone(commonFlagKeys)
	maps.Copy(flagKeys, keys)

	settingsFile, _ := cmd.Flags().GetString("settings")
	if settingsFile != "" {
		settingsFile = a.abs(settingsFile)
	}

	s, err := config.LoadSettings(ctx, config.LoadOptions{
		ProjectDir:   a.workDir,
		SettingsFile: settingsFile,
		Flags:        cmd.Flags(),
		FlagKeys:     flagKeys,
	})
	if err != nil {
		return nil, err
	}

	a.verbose = s.Verbose
	slog.SetDefault(newLogger(a.stderr, s.Verbose).With("run", a.runID))
	return s, nil
}

// entities resolves the entities of a run from --entity or the global
// configuration.
func (a *App) entities(cmd *cobra.Command, s *config.Settings) ([]config.Entity, error) {
	entity, _ := cmd.Flags().GetString("entity")
	explicit := s.GlobalConfig
	if explicit != "" {
		explicit = a.abs(explicit)
	}
	return config.ResolveEntities(a.workDir, explicit, entity)
}

// componentsFS returns a filesystem and the components root inside it.
// Roots outside the working directory get their own filesystem.
func (a *App) componentsFS(root string) (billy.Filesystem, string) {
	full := a.abs(root)
	rel, err := filepath.Rel(a.workDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return osfs.New(full), "."
	}
	return osfs.New(a.workDir), filepath.ToSlash(rel)
}

func (a *App) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(a.workDir, p)
}

// script runs command in a component directory, streaming its output
// with an "[entity/component]" prefix.
func (a *App) script(ctx context.Context, runner shell.Runner, t executor.Task, command string, env ...string) (*shell.Result, error) {
	key := t.Component.Key()
	w := shell.NewPrefixWriter(a.stdout, &a.outMu, "["+key+"] ")
	res, err := runner.Run(ctx, shell.Script{
		Name:    key,
		Dir:     t.Component.FullPath,
		Command: command,
		Env:     env,
		Stream:  w,
	})
	if flushErr := w.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	return res, err
}

// fail prints err once, with the matching issue help in verbose mode, and
// returns the ExitError Execute translates.
func (a *App) fail(cmd *cobra.Command, err error) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.verbose))
	if a.verbose {
		if is := issue.Get(issue.IDOf(err)); is != nil {
			if rendered, rerr := is.Render("dark"); rerr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Err: err}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
