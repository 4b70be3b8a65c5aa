// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"
)

// componentJob is one component command as the executor sees it.
type componentJob struct {
	Name        string
	Op          executor.Operation
	PostProcess executor.PostProcessFunc
}

// runComponents resolves entities, runs job over their components found
// under root on fs and prints the run summary.
func (a *App) runComponents(cmd *cobra.Command, s *config.Settings, fs billy.Filesystem, root string, job componentJob) ([]executor.EntityRun, error) {
	entities, err := a.entities(cmd, s)
	if err != nil {
		return nil, err
	}
	component, _ := cmd.Flags().GetString("component")

	slog.Info("starting "+job.Name,
		"entities", len(entities),
		"root", root,
		"concurrency", s.EffectiveConcurrency(),
		"failure_policy", s.FailurePolicy)

	start := time.Now()
	runs, err := executor.New(fs, executor.WithLogger(slog.Default())).Run(cmd.Context(), entities, job.Op, executor.Options{
		Name:           job.Name,
		ComponentsRoot: root,
		Component:      component,
		Concurrency:    s.Concurrency,
		Sequential:     s.Sequential,
		FailurePolicy:  s.FailurePolicy,
		PostProcess:    job.PostProcess,
	})
	renderSummary(a.stdout, job.Name, runs, time.Since(start))
	return runs, err
}

// renderSummary prints one row per entity.
func renderSummary(w io.Writer, name string, runs []executor.EntityRun, elapsed time.Duration) {
	if len(runs) == 0 {
		return
	}

	rows := make([][]string, 0, len(runs))
	failedEntities := 0
	for _, r := range runs {
		ok, failed, skipped := r.Counts()
		status := SuccessStyle.Render("✓")
		if r.Err != nil {
			status = ErrorStyle.Render("✗")
			failedEntities++
		}
		rows = append(rows, []string{
			status + " " + r.Entity.Name,
			strconv.Itoa(len(r.Results)),
			strconv.Itoa(ok),
			strconv.Itoa(failed),
			strconv.Itoa(skipped),
			formatElapsed(r.Elapsed),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("ENTITY", "COMPONENTS", "SUCCEEDED", "FAILED", "SKIPPED", "ELAPSED").
		Rows(rows...)

	fmt.Fprintln(w, t.Render())

	verdict := SuccessStyle.Render(fmt.Sprintf("%s finished in %s", name, formatElapsed(elapsed)))
	if failedEntities > 0 {
		verdict = ErrorStyle.Render(fmt.Sprintf("%s failed for %d of %d entities in %s", name, failedEntities, len(runs), formatElapsed(elapsed)))
	}
	fmt.Fprintln(w, verdict)
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
