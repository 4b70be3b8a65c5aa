// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mf-maestro/maestro/internal/cueutil"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every settings environment variable (MAESTRO_ROOT, ...).
	EnvPrefix = "MAESTRO"
	// SettingsDir holds the optional per-project settings file.
	SettingsDir = ".maestro"
	// SettingsFile is the settings file name inside SettingsDir.
	SettingsFile = "config.cue"

	// DefaultRoot is the components root relative to the project.
	DefaultRoot = "apps"
	// DefaultEnvironment is the NODE_ENV passed to builds.
	DefaultEnvironment = "development"
	// DefaultPartitionCount is the number of partitions when none is given.
	DefaultPartitionCount = 3
	// DefaultPartitionPrefix names partitions <prefix>_1 ... <prefix>_N.
	DefaultPartitionPrefix = "partition"
	// DefaultServePort is the port of `maestro serve`.
	DefaultServePort = 8080
)

type (
	// Settings is the resolved tool configuration of one invocation.
	Settings struct {
		Root          string          `mapstructure:"root"`
		GlobalConfig  string          `mapstructure:"global_config"`
		Concurrency   int             `mapstructure:"concurrency"`
		Sequential    bool            `mapstructure:"sequential"`
		FailurePolicy FailurePolicy   `mapstructure:"failure_policy"`
		Runtime       RuntimeMode     `mapstructure:"runtime"`
		Environment   string          `mapstructure:"environment"`
		Verbose       bool            `mapstructure:"verbose"`
		Bundle        BundleSettings  `mapstructure:"bundle"`
		Partition     PartitionConfig `mapstructure:"partition"`
		Clean         CleanSettings   `mapstructure:"clean"`
		Serve         ServeSettings   `mapstructure:"serve"`
	}

	// BundleSettings configures `maestro bundle`.
	BundleSettings struct {
		Dist    string `mapstructure:"dist"`
		Domain  string `mapstructure:"domain"`
		Prefix  string `mapstructure:"prefix"`
		JSEntry string `mapstructure:"jsentry"`
		Output  string `mapstructure:"output"`
	}

	// PartitionConfig configures `maestro partition`.
	PartitionConfig struct {
		Count       int    `mapstructure:"count"`
		Prefix      string `mapstructure:"prefix"`
		Destination string `mapstructure:"destination"`
	}

	// CleanSettings selects what `maestro clean` removes besides node_modules.
	CleanSettings struct {
		// Dist is the build output directory name, always removed.
		Dist string `mapstructure:"dist"`
		// Elm also removes elm-stuff.
		Elm bool `mapstructure:"elm"`
	}

	// ServeSettings configures `maestro serve`.
	ServeSettings struct {
		Port int    `mapstructure:"port"`
		Dir  string `mapstructure:"dir"`
	}

	// LoadOptions drives LoadSettings.
	LoadOptions struct {
		// ProjectDir is searched for .maestro/config.cue. Empty means the
		// working directory.
		ProjectDir string
		// SettingsFile overrides the settings file location.
		SettingsFile string
		// Flags are bound to settings keys. Only flags the user changed
		// override lower layers.
		Flags *pflag.FlagSet
		// FlagKeys maps settings keys (e.g. "bundle.prefix") to flag names.
		FlagKeys map[string]string
	}
)

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Root:          DefaultRoot,
		Concurrency:   DefaultConcurrency(),
		FailurePolicy: FailureStopScheduling,
		Runtime:       RuntimeNative,
		Environment:   DefaultEnvironment,
		Bundle: BundleSettings{
			Dist:   "dist",
			Output: "dist",
		},
		Partition: PartitionConfig{
			Count:  DefaultPartitionCount,
			Prefix: DefaultPartitionPrefix,
		},
		Clean: CleanSettings{Dist: "dist"},
		Serve: ServeSettings{
			Port: DefaultServePort,
			Dir:  "dist",
		},
	}
}

// DefaultConcurrency is one less than the number of CPUs, never below 1.
func DefaultConcurrency() int {
	return max(1, runtime.NumCPU()-1)
}

// EffectiveConcurrency folds Sequential into the in-flight limit.
func (s *Settings) EffectiveConcurrency() int {
	if s.Sequential {
		return 1
	}
	if s.Concurrency < 1 {
		return DefaultConcurrency()
	}
	return s.Concurrency
}

// Validate checks enumerated fields and numeric ranges.
func (s *Settings) Validate() error {
	var errs []error
	if ok, fieldErrs := s.FailurePolicy.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := s.Runtime.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if s.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", s.Concurrency))
	}
	if s.Partition.Count < 1 {
		errs = append(errs, fmt.Errorf("partition count must be at least 1, got %d", s.Partition.Count))
	}
	if strings.TrimSpace(s.Partition.Prefix) == "" {
		errs = append(errs, errors.New("partition prefix must not be empty"))
	}
	if err := ValidatePort(s.Serve.Port); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidatePort accepts integers in 1..65535.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return nil
}

// LoadSettings merges defaults, the settings file, environment variables and
// changed flags, in increasing precedence.
func LoadSettings(ctx context.Context, opts LoadOptions) (*Settings, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load settings canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	path := opts.SettingsFile
	if path == "" {
		dir := opts.ProjectDir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, SettingsDir, SettingsFile)
	}
	if fileExists(path) {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, settingsError(path, err)
		}
	} else if opts.SettingsFile != "" {
		return nil, settingsError(path, fmt.Errorf("settings file not found: %s", path))
	}

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("internal error: flag %q for setting %q not defined", name, key)
			}
			if !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, settingsError(path, fmt.Errorf("failed to parse settings: %w", err))
	}
	if err := s.Validate(); err != nil {
		return nil, settingsError(path, err)
	}
	return &s, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	d := DefaultSettings()
	v.SetDefault("root", d.Root)
	v.SetDefault("global_config", d.GlobalConfig)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("sequential", d.Sequential)
	v.SetDefault("failure_policy", string(d.FailurePolicy))
	v.SetDefault("runtime", string(d.Runtime))
	v.SetDefault("environment", d.Environment)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("bundle.dist", d.Bundle.Dist)
	v.SetDefault("bundle.domain", d.Bundle.Domain)
	v.SetDefault("bundle.prefix", d.Bundle.Prefix)
	v.SetDefault("bundle.jsentry", d.Bundle.JSEntry)
	v.SetDefault("bundle.output", d.Bundle.Output)
	v.SetDefault("partition.count", d.Partition.Count)
	v.SetDefault("partition.prefix", d.Partition.Prefix)
	v.SetDefault("partition.destination", d.Partition.Destination)
	v.SetDefault("clean.dist", d.Clean.Dist)
	v.SetDefault("clean.elm", d.Clean.Elm)
	v.SetDefault("serve.port", d.Serve.Port)
	v.SetDefault("serve.dir", d.Serve.Dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// NODE_ENV is honored like the npm scripts themselves do.
	_ = v.BindEnv("environment", EnvPrefix+"_ENVIRONMENT", "NODE_ENV")

	return v
}

// loadCUEIntoViper validates a settings file against #Settings and merges
// it into v. Decoding goes to a map so Viper keeps precedence over defaults
// and environment.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	m, err := cueutil.Decode[map[string]any](schema, data, "#Settings",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*m); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}

func settingsError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load settings").
		WithResource(path).
		WithSuggestion("Run 'maestro config show' to inspect the resolved settings").
		WithIssue(issue.SettingsInvalidId).
		Wrap(err).
		Err()
}
