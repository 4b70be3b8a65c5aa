// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/executor"
	"github.com/mf-maestro/maestro/internal/partition"
	"github.com/mf-maestro/maestro/internal/shell"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newPartitionCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Split the repository into balanced partitions of components",
		Long: `Assign each entity, as one batch, to the partition holding the fewest
components, then write every non-empty partition as
<destination>/<prefix>_<n>/<project>/ with the project files and only the
components assigned to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(cmd.Context(), cmd, map[string]string{
				"partition.count":       "partitions",
				"partition.prefix":      "partition-prefix",
				"partition.destination": "destination",
			})
			if err != nil {
				return a.fail(cmd, err)
			}
			if err := a.partition(cmd, s); err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntP("partitions", "p", config.DefaultPartitionCount, "number of partitions")
	f.String("partition-prefix", config.DefaultPartitionPrefix, "partition directory prefix, numbered <prefix>_1..<prefix>_N")
	f.String("destination", "", "directory receiving the partitions (default: working directory)")
	return cmd
}

func (a *App) partition(cmd *cobra.Command, s *config.Settings) error {
	fs, root := a.componentsFS(s.Root)
	if filepath.Clean(fs.Root()) != filepath.Clean(a.workDir) {
		return fmt.Errorf("partition: components root %s must be inside the project %s", s.Root, a.workDir)
	}
	if root == "." {
		return fmt.Errorf("partition: components root %s must be a subdirectory of the project %s: %w", s.Root, a.workDir, partition.ErrInvalidComponentsRoot)
	}

	var (
		mu    sync.Mutex
		found = map[string][]string{}
	)
	runs, err := a.runComponents(cmd, s, fs, root, componentJob{
		Name: "partition",
		Op: func(context.Context, executor.Task) (*shell.Result, error) {
			return nil, nil
		},
		PostProcess: func(_ context.Context, entity config.Entity, results []executor.TaskResult, _ string) error {
			names := make([]string, 0, len(results))
			for _, r := range results {
				names = append(names, r.Name)
			}
			mu.Lock()
			found[entity.Name] = names
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		return err
	}

	entities := make([]partition.EntityComponents, 0, len(runs))
	for _, r := range runs {
		entities = append(entities, partition.EntityComponents{Entity: r.Entity.Name, Components: found[r.Entity.Name]})
	}
	assignment, err := partition.Assign(entities, s.Partition.Count, s.Partition.Prefix)
	if err != nil {
		return err
	}
	slog.Info("partitions assigned", "count", s.Partition.Count, "sizes", assignment.Sizes())

	dest := a.workDir
	if s.Partition.Destination != "" {
		dest = a.abs(s.Partition.Destination)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create partition destination: %w", err)
	}

	m := &partition.Materializer{
		Source:         fs,
		Destination:    osfs.New(dest),
		ComponentsRoot: root,
		ProjectName:    filepath.Base(a.workDir),
		Exclude:        destinationExcludes(a.workDir, dest, s.Partition.Prefix),
	}
	results, err := m.Materialize(cmd.Context(), assignment)
	renderPartitions(a.stdout, assignment, results)
	return err
}

// destinationExcludes keeps partitions written inside the project out of
// the project copy.
func destinationExcludes(project, dest, prefix string) []string {
	rel, err := filepath.Rel(project, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{path.Join(filepath.ToSlash(rel), prefix+"_*")}
}

func renderPartitions(w io.Writer, a partition.Assignment, results []partition.Result) {
	written := make(map[string]partition.Result, len(results))
	for _, r := range results {
		written[r.Name] = r
	}

	rows := make([][]string, 0, len(a))
	for _, p := range a {
		r, ok := written[p.Name]
		files, size := "-", "-"
		if ok {
			files, size = strconv.Itoa(r.Files), humanize.Bytes(uint64(r.Bytes))
		}
		rows = append(rows, []string{p.Name, strconv.Itoa(len(p.Items)), strings.Join(p.Items, " "), files, size})
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
		Headers("PARTITION", "ITEMS", "COMPONENTS", "FILES", "SIZE").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}
