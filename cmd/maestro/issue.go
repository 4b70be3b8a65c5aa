// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/spf13/cobra"
)

func newIssueCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue [id]",
		Short: "List known problems or show the help page of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, is := range issue.Values() {
					fmt.Fprintf(a.stdout, "%s  %s\n", CmdStyle.Render(fmt.Sprintf("%2d", is.Id())), is.Title())
				}
				return nil
			}

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("issue id must be a number, got %q", args[0])
			}
			is := issue.Get(issue.Id(n))
			if is == nil {
				return fmt.Errorf("unknown issue %d, run 'maestro issue' to list them", n)
			}
			style, _ := cmd.Flags().GetString("style")
			rendered, err := is.Render(style)
			if err != nil {
				return fmt.Errorf("render issue %d: %w", n, err)
			}
			fmt.Fprint(a.stdout, rendered)
			return nil
		},
	}
	cmd.Flags().String("style", "dark", "glamour style: dark, light, notty or a JSON style file")
	return cmd
}
