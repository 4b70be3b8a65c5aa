// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/devserver"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/spf13/cobra"
)

func newServeCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bundle directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, map[string]string{"serve.dir": "dir"})
			if err != nil {
				return a.fail(cmd, err)
			}

			port := s.Serve.Port
			if f := cmd.Flags().Lookup("port"); f.Changed {
				port, err = parsePort(f.Value.String())
				if err != nil {
					return a.fail(cmd, err)
				}
			}

			dir := a.abs(s.Serve.Dir)
			srv := &devserver.Server{Dir: dir, Port: port}
			err = srv.Run(cmd.Context(), func(addr string) {
				fmt.Fprintln(a.stdout, SuccessStyle.Render("Serving ")+CmdStyle.Render(dir)+
					SubtitleStyle.Render(fmt.Sprintf(" on http://localhost:%d, press Ctrl+C to stop", port)))
			})
			if err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}
	// A string so that malformed values reach parsePort instead of pflag.
	cmd.Flags().StringP("port", "p", strconv.Itoa(config.DefaultServePort), "port to listen on")
	cmd.Flags().StringP("dir", "d", "dist", "directory to serve")
	return cmd
}

// parsePort accepts a decimal integer in 1..65535.
func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err == nil {
		err = config.ValidatePort(port)
	} else {
		err = fmt.Errorf("port must be an integer, got %q", raw)
	}
	if err != nil {
		return 0, issue.NewErrorContext().
			WithOperation("parse port").
			WithResource(raw).
			WithSuggestion("Pass --port with a value between 1 and 65535").
			WithIssue(issue.InvalidPortId).
			Wrap(err).
			Err()
	}
	return port, nil
}
