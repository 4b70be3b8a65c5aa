// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/mf-maestro/maestro/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(a *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect maestro configuration",
		Long: `Inspect maestro configuration.

Settings are resolved from defaults, ` + config.SettingsDir + `/` + config.SettingsFile + `,
` + config.EnvPrefix + `_* environment variables and flags, in increasing precedence.
Entities come from maestro.{cue,json,toml,yaml} unless --entity is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, nil)
			if err != nil {
				return a.fail(cmd, err)
			}
			showSettings(a.stdout, s, a.settingsPath(cmd))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "entities",
		Short: "List the entities of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, nil)
			if err != nil {
				return a.fail(cmd, err)
			}
			entities, err := a.entities(cmd, s)
			if err != nil {
				return a.fail(cmd, err)
			}
			for _, e := range entities {
				line := SuccessStyle.Render(e.Name)
				if e.Domain != "" {
					line += SubtitleStyle.Render(" domain=") + e.Domain
				}
				if e.Prefix != "" {
					line += SubtitleStyle.Render(" prefix=") + e.Prefix
				}
				fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	})
	return cfgCmd
}

// settingsPath is the settings file LoadSettings looked at.
func (a *App) settingsPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("settings"); p != "" {
		return a.abs(p)
	}
	return filepath.Join(a.workDir, config.SettingsDir, config.SettingsFile)
}

func showSettings(w io.Writer, s *config.Settings, path string) {
	key := CmdStyle.Render
	val := SuccessStyle.Render

	fmt.Fprintln(w, TitleStyle.Render("Current Settings"))
	fmt.Fprintln(w)
	if fileExists(path) {
		fmt.Fprintf(w, "%s: %s\n", key("Settings file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Settings file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	globalConfig := s.GlobalConfig
	if globalConfig == "" {
		globalConfig = "(auto)"
	}
	fmt.Fprintf(w, "%s: %s\n", key("root"), val(s.Root))
	fmt.Fprintf(w, "%s: %s\n", key("global_config"), val(globalConfig))
	fmt.Fprintf(w, "%s: %s\n", key("concurrency"), val(strconv.Itoa(s.EffectiveConcurrency())))
	fmt.Fprintf(w, "%s: %s\n", key("sequential"), val(strconv.FormatBool(s.Sequential)))
	fmt.Fprintf(w, "%s: %s\n", key("failure_policy"), val(string(s.FailurePolicy)))
	fmt.Fprintf(w, "%s: %s\n", key("runtime"), val(string(s.Runtime)))
	fmt.Fprintf(w, "%s: %s\n", key("environment"), val(s.Environment))
	fmt.Fprintf(w, "%s: %s\n", key("verbose"), val(strconv.FormatBool(s.Verbose)))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", key("bundle"))
	fmt.Fprintf(w, "  dist: %s\n", val(s.Bundle.Dist))
	fmt.Fprintf(w, "  domain: %s\n", val(s.Bundle.Domain))
	fmt.Fprintf(w, "  prefix: %s\n", val(s.Bundle.Prefix))
	fmt.Fprintf(w, "  jsentry: %s\n", val(s.Bundle.JSEntry))
	fmt.Fprintf(w, "  output: %s\n", val(s.Bundle.Output))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", key("partition"))
	fmt.Fprintf(w, "  count: %s\n", val(strconv.Itoa(s.Partition.Count)))
	fmt.Fprintf(w, "  prefix: %s\n", val(s.Partition.Prefix))
	fmt.Fprintf(w, "  destination: %s\n", val(s.Partition.Destination))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", key("clean"))
	fmt.Fprintf(w, "  dist: %s\n", val(s.Clean.Dist))
	fmt.Fprintf(w, "  elm: %s\n", val(strconv.FormatBool(s.Clean.Elm)))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", key("serve"))
	fmt.Fprintf(w, "  port: %s\n", val(strconv.Itoa(s.Serve.Port)))
	fmt.Fprintf(w, "  dir: %s\n", val(s.Serve.Dir))
}
