// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"
	"github.com/mf-maestro/maestro/internal/fsutil"
	"github.com/mf-maestro/maestro/internal/manifest"
	"github.com/mf-maestro/maestro/internal/shell"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var bundleFlagKeys = map[string]string{
	"environment":    "environment",
	"bundle.domain":  "domain",
	"bundle.prefix":  "prefix",
	"bundle.jsentry": "jsentry",
	"bundle.output":  "output",
	"bundle.dist":    "target-dir",
}

func newBundleCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Build every component and publish it with its entity manifest",
		Long: `Build every component, copy its output to
<target-dir>/<domain>/<entity>/<mfName>/ and write
<target-dir>/<domain>/<entity>/` + manifest.FileName + ` once all components
of the entity succeeded. Entries of components not bundled in this run are
kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, bundleFlagKeys)
			if err != nil {
				return a.fail(cmd, err)
			}
			runner, err := a.newRunner(s.Runtime)
			if err != nil {
				return a.fail(cmd, err)
			}

			distDir := a.abs(s.Bundle.Dist)
			if err := os.MkdirAll(distDir, 0o755); err != nil {
				return a.fail(cmd, fmt.Errorf("create target directory: %w", err))
			}

			fs, root := a.componentsFS(s.Root)
			b := &bundler{app: a, settings: s, runner: runner, src: fs, dist: osfs.New(distDir)}
			if err := b.validate(cmd, root); err != nil {
				return a.fail(cmd, err)
			}
			if _, err := a.runComponents(cmd, s, fs, root, componentJob{
				Name:        "bundle",
				Op:          b.bundle,
				PostProcess: b.writeManifest,
			}); err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("environment", config.DefaultEnvironment, "NODE_ENV passed to the build (also read from NODE_ENV)")
	f.String("domain", "", "domain directory inside the target directory")
	f.StringP("prefix", "p", "", "url prefix of manifest entries, without trailing slash (e.g. http://localhost:8080)")
	f.String("jsentry", "", "name prefix of the entry js file when a bundle has lazy chunks (default: first js file)")
	f.StringP("output", "o", "dist", "build output directory of each component")
	f.StringP("target-dir", "t", "dist", "directory receiving bundles and manifests")
	return cmd
}

// bundler holds the state shared by the bundle operation and its
// per-entity manifest step.
type bundler struct {
	app      *App
	settings *config.Settings
	runner   shell.Runner
	src      billy.Filesystem
	dist     billy.Filesystem
}

// domain prefers the entity's own domain over --domain.
func (b *bundler) domain(e config.Entity) string {
	if e.Domain != "" {
		return e.Domain
	}
	return b.settings.Bundle.Domain
}

func (b *bundler) prefix(e config.Entity) string {
	if e.Prefix != "" {
		return e.Prefix
	}
	return b.settings.Bundle.Prefix
}

// artifactDir is <domain>/<entity>/<mfName> inside the target directory.
func (b *bundler) artifactDir(e config.Entity, mfName string) string {
	return path.Join(b.domain(e), e.Name, mfName)
}

// validate loads every component configuration before anything is built,
// so a bad marker aborts the run without partial bundles.
func (b *bundler) validate(cmd *cobra.Command, root string) error {
	entities, err := b.app.entities(cmd, b.settings)
	if err != nil {
		return err
	}
	component, _ := cmd.Flags().GetString("component")

	_, err = executor.New(b.src, executor.WithLogger(slog.Default())).Run(cmd.Context(), entities,
		func(_ context.Context, t executor.Task) (*shell.Result, error) {
			_, err := config.LoadComponent(b.src, t.Component.Path, t.Component.Name)
			return nil, err
		},
		executor.Options{
			Name:           "validate",
			ComponentsRoot: root,
			Component:      component,
			Concurrency:    b.settings.Concurrency,
			FailurePolicy:  config.FailureContinue,
		})
	return err
}

func (b *bundler) bundle(ctx context.Context, t executor.Task) (*shell.Result, error) {
	cfg, err := config.LoadComponent(b.src, t.Component.Path, t.Component.Name)
	if err != nil {
		return nil, err
	}
	if cfg.Entity != t.Entity.Name {
		slog.Warn("component declares another entity", "component", t.Component.Key(), "declared", cfg.Entity)
	}

	res, err := b.app.script(ctx, b.runner, t, "npm run build", "NODE_ENV="+b.settings.Environment)
	if err != nil {
		return res, err
	}

	from := path.Join(t.Component.Path, b.settings.Bundle.Output)
	to := b.artifactDir(t.Entity, cfg.MFName)
	if err := fsutil.RemoveAll(b.dist, to); err != nil {
		return res, fmt.Errorf("clear %s: %w", to, err)
	}
	stats, err := fsutil.CopyTree(ctx, b.src, from, b.dist, to, nil)
	if err != nil {
		return res, fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	slog.Info("bundled", "component", t.Component.Key(), "to", to,
		"files", stats.Files, "size", humanize.Bytes(uint64(stats.Bytes)))
	return res, nil
}

func (b *bundler) writeManifest(ctx context.Context, entity config.Entity, results []executor.TaskResult, componentsRoot string) error {
	descriptors := make([]config.ComponentConfig, 0, len(results))
	for _, r := range results {
		cfg, err := config.LoadComponent(b.src, path.Join(componentsRoot, entity.Name, r.Name), r.Name)
		if err != nil {
			return err
		}
		descriptors = append(descriptors, *cfg)
	}
	if len(descriptors) == 0 {
		return nil
	}

	name := path.Join(b.domain(entity), entity.Name, manifest.FileName)
	slog.Info("writing manifest", "entity", entity.Name, "path", name, "entries", len(descriptors))
	m := manifest.NewMerger(b.dist, b.prefix(entity), b.settings.Bundle.JSEntry)
	_, err := m.Update(ctx, entity.Name, name, descriptors, func(c config.ComponentConfig) string {
		return b.artifactDir(entity, c.MFName)
	})
	return err
}
