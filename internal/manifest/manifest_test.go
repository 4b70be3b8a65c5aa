// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
)

const manifestPath = "dist/billing/" + FileName

func writeFile(t *testing.T, fs billy.Filesystem, name, data string) {
	t.Helper()
	if err := util.WriteFile(fs, name, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func decode(t *testing.T, fs billy.Filesystem, name string) map[string]any {
	t.Helper()
	data, err := util.ReadFile(fs, name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
	return out
}

var foo = config.ComponentConfig{
	MicroAppName: "foo",
	Entity:       "billing",
	UIType:       "master",
	MFName:       "foo",
	Processor:    "p",
	RequiredAcls: []string{"read"},
}

func artifactDir(c config.ComponentConfig) string {
	return path.Join("dist", c.Entity, c.MFName)
}

func TestMerge_Example(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, "dist/billing/foo/app.abc123.js", "js")
	writeFile(t, fs, "dist/billing/foo/app.abc123.css", "css")
	writeFile(t, fs, manifestPath, "{}")

	m := NewMerger(fs, "https://cdn.example.com/", "")
	if _, err := m.Update(context.Background(), "billing", manifestPath, []config.ComponentConfig{foo}, artifactDir); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := map[string]any{
		"foo": map[string]any{
			"processor":    "p",
			"requiredAcls": []any{"read"},
			"uiType":       "master",
			"url":          "https://cdn.example.com/billing/foo/app.abc123.js",
			"css":          "https://cdn.example.com/billing/foo/app.abc123.css",
		},
	}
	if diff := cmp.Diff(want, decode(t, fs, manifestPath)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, "dist/billing/foo/main.js", "js")

	m := NewMerger(fs, "", "")
	descs := []config.ComponentConfig{foo}
	if _, err := m.Update(context.Background(), "billing", manifestPath, descs, artifactDir); err != nil {
		t.Fatal(err)
	}
	first := decode(t, fs, manifestPath)
	if _, err := m.Update(context.Background(), "billing", manifestPath, descs, artifactDir); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, decode(t, fs, manifestPath)); diff != "" {
		t.Errorf("second merge changed the manifest (-first +second):\n%s", diff)
	}
}

func TestMerge_PreservesUnrelatedKeys(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, "dist/billing/foo/main.js", "js")
	writeFile(t, fs, manifestPath, `{"legacy": {"url": "/old.js", "owner": "someone"}, "foo": {"url": "/stale.js"}}`)

	m := NewMerger(fs, "", "")
	got, err := m.Update(context.Background(), "billing", manifestPath, []config.ComponentConfig{foo}, artifactDir)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if diff := cmp.Diff(`{"url": "/old.js", "owner": "someone"}`, string(got["legacy"])); diff != "" {
		t.Errorf("legacy entry altered (-want +got):\n%s", diff)
	}
	if e := got.Entry("foo"); e == nil || e.URL != "/billing/foo/main.js" {
		t.Errorf("foo entry = %+v, want url /billing/foo/main.js", e)
	}
}

func TestMerge_UnreadableArtifactDirKeepsPriorEntry(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, manifestPath, `{"foo": {"url": "/kept.js"}}`)

	bar := foo
	bar.MicroAppName, bar.MFName = "bar", "bar"
	writeFile(t, fs, "dist/billing/bar/bar.js", "js")

	m := NewMerger(fs, "", "")
	got, err := m.Merge(context.Background(), "billing", manifestPath, []config.ComponentConfig{foo, bar}, artifactDir)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if e := got.Entry("foo"); e == nil || e.URL != "/kept.js" {
		t.Errorf("foo entry = %+v, want prior entry kept", e)
	}
	if e := got.Entry("bar"); e == nil || e.URL != "/billing/bar/bar.js" {
		t.Errorf("bar entry = %+v", e)
	}
}

func TestMerge_ArtifactPathIsFileKeepsPriorEntry(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, manifestPath, `{"foo": {"url": "/kept.js"}}`)
	writeFile(t, fs, "dist/billing/foo", "stray file")

	got, err := NewMerger(fs, "", "").Merge(context.Background(), "billing", manifestPath, []config.ComponentConfig{foo}, artifactDir)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if e := got.Entry("foo"); e == nil || e.URL != "/kept.js" {
		t.Errorf("foo entry = %+v, want prior entry kept", e)
	}
}

func TestMerge_FileSelection(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, "dist/billing/foo/0.chunk.js", "")
	writeFile(t, fs, "dist/billing/foo/main.123.js", "")
	writeFile(t, fs, "dist/billing/foo/styles.CSS", "")
	writeFile(t, fs, "dist/billing/foo/z.css", "")
	if err := fs.MkdirAll("dist/billing/foo/assets.js", 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		jsEntry string
		wantURL string
	}{
		{"", "/billing/foo/0.chunk.js"},
		{"main", "/billing/foo/main.123.js"},
		{"vendor", ""},
	}
	for _, tt := range tests {
		t.Run("jsentry="+tt.jsEntry, func(t *testing.T) {
			t.Parallel()
			got, err := NewMerger(fs, "", tt.jsEntry).Merge(context.Background(), "billing", "nowhere.json", []config.ComponentConfig{foo}, artifactDir)
			if err != nil {
				t.Fatal(err)
			}
			e := got.Entry("foo")
			if e.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", e.URL, tt.wantURL)
			}
			if e.CSS != "/billing/foo/styles.CSS" {
				t.Errorf("CSS = %q, want the first css file", e.CSS)
			}
		})
	}
}

func TestLoad_Permissive(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, "corrupt.json", "{not json")
	writeFile(t, fs, "array.json", "[1, 2]")
	writeFile(t, fs, "null.json", "null")

	m := NewMerger(fs, "", "")
	for _, name := range []string{"missing.json", "corrupt.json", "array.json", "null.json"} {
		got := m.Load(name)
		if got == nil || len(got) != 0 {
			t.Errorf("Load(%s) = %v, want empty manifest", name, got)
		}
	}
}

func TestPersist_Atomic(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	m := NewMerger(fs, "", "")
	if err := m.Persist("out/"+FileName, Manifest{"a": json.RawMessage(`{"url":"/a.js"}`)}); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	infos, err := fs.ReadDir("out")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name() != FileName {
		t.Errorf("out/ holds %d entries, want only %s", len(infos), FileName)
	}
}

func TestPersist_Failure(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeFile(t, fs, "blocked", "a file where a directory is expected")

	err := NewMerger(fs, "", "").Persist("blocked/"+FileName, Manifest{})
	if err == nil {
		t.Fatal("Persist() expected error")
	}
	if id := issue.IDOf(err); id != issue.ManifestWriteFailedId {
		t.Errorf("IDOf() = %d, want %d", id, issue.ManifestWriteFailedId)
	}
}

func TestMerge_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMerger(memfs.New(), "", "").Merge(ctx, "billing", manifestPath, []config.ComponentConfig{foo}, artifactDir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Merge() error = %v, want context.Canceled", err)
	}
}
