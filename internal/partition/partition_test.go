// SPDX-License-Identifier: MPL-2.0

package partition

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
)

func entity(name string, n int) EntityComponents {
	e := EntityComponents{Entity: name}
	for i := range n {
		e.Components = append(e.Components, fmt.Sprintf("c%d", i))
	}
	return e
}

func TestAssign_Balances(t *testing.T) {
	t.Parallel()

	in := []EntityComponents{entity("big", 5), entity("x", 1), entity("y", 1), entity("z", 1)}
	got, err := Assign(in, 3, "partition")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if diff := cmp.Diff([]int{5, 2, 1}, got.Sizes()); diff != "" {
		t.Errorf("sizes mismatch (-want +got):\n%s", diff)
	}
	if got[0].Name != "partition_1" || got[2].Name != "partition_3" {
		t.Errorf("names = %q..%q", got[0].Name, got[2].Name)
	}
	if diff := cmp.Diff([]string{"x/c0", "z/c0"}, got[1].Items); diff != "" {
		t.Errorf("partition_2 mismatch (-want +got):\n%s", diff)
	}

	seen := map[string]int{}
	for _, p := range got {
		for _, item := range p.Items {
			seen[item]++
		}
	}
	if len(seen) != 8 {
		t.Errorf("distinct items = %d, want 8", len(seen))
	}
	for item, n := range seen {
		if n != 1 {
			t.Errorf("%s assigned %d times", item, n)
		}
	}
}

func TestAssign_TiesGoToLowestIndex(t *testing.T) {
	t.Parallel()

	in := []EntityComponents{entity("a", 2), entity("b", 2), entity("c", 1), entity("d", 3)}
	got, err := Assign(in, 2, "p")
	if err != nil {
		t.Fatal(err)
	}
	want := Assignment{
		{Name: "p_1", Items: []string{"a/c0", "a/c1", "c/c0"}},
		{Name: "p_2", Items: []string{"b/c0", "b/c1", "d/c0", "d/c1", "d/c2"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Assign() mismatch (-want +got):\n%s", diff)
	}
}

func TestAssign_MorePartitionsThanEntities(t *testing.T) {
	t.Parallel()

	got, err := Assign([]EntityComponents{entity("a", 1)}, 3, "p")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 0, 0}, got.Sizes()); diff != "" {
		t.Errorf("sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestAssign_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := Assign(nil, 0, "p"); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("Assign(count 0) error = %v", err)
	}
	if _, err := Assign(nil, 2, " "); !errors.Is(err, ErrInvalidPrefix) {
		t.Errorf("Assign(empty prefix) error = %v", err)
	}
}

func sourceProject(t *testing.T) billy.Filesystem {
	t.Helper()
	base := memfs.New()
	for name, data := range map[string]string{
		"repo/package.json":                "{}",
		"repo/maestro.cue":                 `entities: [{name: "a"}, {name: "b"}]`,
		"repo/apps/a/one/package.json":     "{}",
		"repo/apps/a/one/node_modules/x":   "x",
		"repo/apps/b/two/package.json":     "{}",
		"repo/apps/b/two/src/index.js":     "js",
		"repo/node_modules/left-pad/index": "x",
	} {
		if err := util.WriteFile(base, name, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	src, err := base.Chroot("repo")
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func TestMaterialize(t *testing.T) {
	t.Parallel()

	dst := memfs.New()
	m := &Materializer{
		Source:         sourceProject(t),
		Destination:    dst,
		ComponentsRoot: "apps",
		ProjectName:    "repo",
	}
	a := Assignment{
		{Name: "p_1", Items: []string{"b/two"}},
		{Name: "p_2", Items: []string{}},
		{Name: "p_3", Items: []string{"a/one"}},
	}

	results, err := m.Materialize(context.Background(), a)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if len(results) != 2 || results[0].Name != "p_1" || results[1].Name != "p_3" {
		t.Fatalf("results = %+v, want p_1 and p_3", results)
	}

	mustExist := []string{
		"p_1/repo/package.json",
		"p_1/repo/maestro.cue",
		"p_1/repo/apps/b/two/src/index.js",
		"p_3/repo/apps/a/one/package.json",
	}
	for _, name := range mustExist {
		if _, err := dst.Stat(name); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	mustNotExist := []string{
		"p_1/repo/apps/a",
		"p_3/repo/apps/b",
		"p_2",
		"p_1/repo/node_modules",
		"p_3/repo/apps/a/one/node_modules",
	}
	for _, name := range mustNotExist {
		if _, err := dst.Stat(name); err == nil {
			t.Errorf("%s should not exist", name)
		}
	}
	if results[0].Files != 4 {
		t.Errorf("p_1 files = %d, want 4", results[0].Files)
	}
}

func TestMaterialize_FailureKeepsEarlierPartitions(t *testing.T) {
	t.Parallel()

	dst := memfs.New()
	m := &Materializer{
		Source:         sourceProject(t),
		Destination:    dst,
		ComponentsRoot: "apps",
		ProjectName:    "repo",
	}
	a := Assignment{
		{Name: "p_1", Items: []string{"a/one"}},
		{Name: "p_2", Items: []string{"ghost/missing"}},
		{Name: "p_3", Items: []string{"b/two"}},
	}

	results, err := m.Materialize(context.Background(), a)
	if err == nil {
		t.Fatal("Materialize() expected error")
	}
	if id := issue.IDOf(err); id != issue.PartitionFailedId {
		t.Errorf("IDOf() = %d, want %d", id, issue.PartitionFailedId)
	}
	if len(results) != 1 || results[0].Name != "p_1" {
		t.Errorf("results = %+v, want only p_1", results)
	}
	if _, err := dst.Stat("p_1/repo/apps/a/one/package.json"); err != nil {
		t.Errorf("p_1 was rolled back: %v", err)
	}
	if _, err := dst.Stat("p_3"); err == nil {
		t.Error("p_3 should not be written after the failure")
	}
}

func TestMaterialize_RejectsProjectAsComponentsRoot(t *testing.T) {
	t.Parallel()

	for _, root := range []string{".", "", "../apps"} {
		dst := memfs.New()
		m := &Materializer{
			Source:         sourceProject(t),
			Destination:    dst,
			ComponentsRoot: root,
			ProjectName:    "repo",
		}
		_, err := m.Materialize(context.Background(), Assignment{{Name: "p_1", Items: []string{"a/one"}}})
		if !errors.Is(err, ErrInvalidComponentsRoot) {
			t.Errorf("Materialize(root %q) error = %v, want ErrInvalidComponentsRoot", root, err)
		}
		if _, err := dst.Stat("p_1"); err == nil {
			t.Errorf("root %q: p_1 should not be written", root)
		}
	}
}
