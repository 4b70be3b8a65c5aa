// SPDX-License-Identifier: MPL-2.0

package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/mf-maestro/maestro/internal/fsutil"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/go-git/go-billy/v5"
)

var (
	// DefaultExcludes are never copied into a partition.
	DefaultExcludes = []string{"**/node_modules", ".git"}

	// ErrInvalidComponentsRoot is returned when the components root is not a
	// proper subdirectory of the source project, so it cannot be left out
	// of the project copy.
	ErrInvalidComponentsRoot = errors.New("components root must be a subdirectory of the project")
)

type (
	// Materializer writes partitions from a source project to a destination.
	Materializer struct {
		// Source is rooted at the project directory.
		Source billy.Filesystem
		// Destination receives <partition>/<ProjectName>/.
		Destination billy.Filesystem
		// ComponentsRoot is relative to Source, e.g. "apps".
		ComponentsRoot string
		// ProjectName is the directory created inside each partition.
		ProjectName string
		// Exclude adds patterns, relative to Source, to DefaultExcludes.
		// It should cover the destination when it lies inside the source.
		Exclude []string
	}

	// Result describes one written partition.
	Result struct {
		Name  string
		Path  string
		Items int
		fsutil.Stats
	}
)

// Materialize writes every non-empty partition in order. A copy failure
// aborts the current partition and is returned; partitions written before
// it are kept. Files directly under an entity directory that belong to no
// component are not copied.
func (m *Materializer) Materialize(ctx context.Context, a Assignment) ([]Result, error) {
	if root := path.Clean(m.ComponentsRoot); root == "." || !filepath.IsLocal(root) {
		return nil, fmt.Errorf("%w, got %q", ErrInvalidComponentsRoot, m.ComponentsRoot)
	}

	var results []Result
	for _, p := range a {
		if len(p.Items) == 0 {
			slog.Debug("skipping empty partition", "partition", p.Name)
			continue
		}
		res, err := m.materializeOne(ctx, p)
		if err != nil {
			return results, issue.NewErrorContext().
				WithOperation("materialize partition").
				WithResource(p.Name).
				WithIssue(issue.PartitionFailedId).
				Wrap(err).
				Err()
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *Materializer) materializeOne(ctx context.Context, p Partition) (Result, error) {
	base := path.Join(p.Name, m.ProjectName)
	res := Result{Name: p.Name, Path: base, Items: len(p.Items)}

	exclude := append([]string{m.ComponentsRoot}, DefaultExcludes...)
	exclude = append(exclude, m.Exclude...)

	slog.Info("copying project", "partition", p.Name, "destination", base)
	stats, err := fsutil.CopyTree(ctx, m.Source, ".", m.Destination, base, exclude)
	if err != nil {
		return res, err
	}
	res.Add(stats)

	for _, item := range p.Items {
		from := path.Join(m.ComponentsRoot, item)
		to := path.Join(base, m.ComponentsRoot, item)
		slog.Debug("copying component", "partition", p.Name, "component", item)
		stats, err := fsutil.CopyTree(ctx, m.Source, from, m.Destination, to, DefaultExcludes)
		if err != nil {
			return res, fmt.Errorf("component %s: %w", item, err)
		}
		res.Add(stats)
	}
	return res, nil
}
