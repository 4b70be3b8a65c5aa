// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "maestro",
		Short: "Orchestrate the micro-frontends of a monorepo",
		Long: TitleStyle.Render("maestro") + SubtitleStyle.Render(" - micro-frontend monorepo orchestrator") + `

maestro runs the same operation over every component of every entity
listed in maestro.cue, a bounded number at a time, and assembles the
results: bundles and their mf-maestro.json manifests, or balanced
partitions of the repository for parallel CI jobs.

` + SubtitleStyle.Render("Examples:") + `
  maestro install               npm ci in every component
  maestro build -e billing      Build the components of one entity
  maestro bundle --prefix /cdn  Bundle and write manifests
  maestro partition -p 4        Split the repository in 4 partitions
  maestro config show           Show the resolved settings`,
	}

	pf := root.PersistentFlags()
	pf.BoolP("verbose", "v", false, "enable debug logs and full error chains")
	pf.String("settings", "", "settings file (default is "+config.SettingsDir+"/"+config.SettingsFile+")")
	pf.StringP("root", "r", config.DefaultRoot, "components root path")
	pf.StringP("global-config", "g", "", "global configuration file (default is maestro.{cue,json,toml,yaml})")
	pf.StringP("entity", "e", "", "run a single entity without reading the global configuration")
	pf.StringP("component", "c", "", "run a single component, by directory or full name")
	pf.IntP("concurrency", "j", config.DefaultConcurrency(), "operations in flight per entity")
	pf.Bool("sequential", false, "run one operation at a time per entity")
	pf.String("failure-policy", string(config.FailureStopScheduling), "on failure: stop-scheduling, cancel-in-flight or continue")
	pf.String("runtime", string(config.RuntimeNative), "shell runtime: native or virtual")

	root.AddCommand(
		newInstallCommand(app),
		newBuildCommand(app),
		newTestCommand(app),
		newCleanCommand(app),
		newBundleCommand(app),
		newPartitionCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
		newIssueCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process on failure. It is the only
// place where errors become exit codes.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay uses ActionableError.Format when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
