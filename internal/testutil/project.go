// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	markerFile     = "maestro.app.cue"
	descriptorFile = "package.json"
)

type (
	// Project builds a monorepo layout rooted at Root on FS.
	Project struct {
		t    testing.TB
		FS   billy.Filesystem
		Root string
	}

	// App describes the marker written by Component. Empty fields are
	// omitted from the marker.
	App struct {
		MicroAppName string
		UIType       string
		MFName       string
		Processor    string
		RequiredAcls []string
	}
)

// NewProject returns a builder writing under root (the components root).
func NewProject(t testing.TB, fs billy.Filesystem, root string) *Project {
	t.Helper()
	return &Project{t: t, FS: fs, Root: root}
}

// Component creates <root>/<entity>/<name>/ with a marker and a package
// descriptor. A nil app writes a complete default marker.
func (p *Project) Component(entity, name string, app *App) string {
	p.t.Helper()
	if app == nil {
		app = &App{
			MicroAppName: entity + "-" + name,
			UIType:       name,
			MFName:       name,
			Processor:    "default",
			RequiredAcls: []string{entity + ".read"},
		}
	}
	dir := path.Join(p.Root, entity, name)
	p.WriteFile(path.Join(dir, markerFile), MarkerSource(entity, app))
	p.WriteFile(path.Join(dir, descriptorFile), fmt.Sprintf(`{"name": %q}`, name))
	return dir
}

// Dir creates an empty directory under the components root.
func (p *Project) Dir(elem ...string) string {
	p.t.Helper()
	dir := path.Join(append([]string{p.Root}, elem...)...)
	if err := p.FS.MkdirAll(dir, 0o755); err != nil {
		p.t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
}

// WriteFile writes data to name on the project filesystem.
func (p *Project) WriteFile(name, data string) {
	p.t.Helper()
	if err := p.FS.MkdirAll(path.Dir(name), 0o755); err != nil {
		p.t.Fatalf("failed to create directory %s: %v", path.Dir(name), err)
	}
	if err := util.WriteFile(p.FS, name, []byte(data), 0o644); err != nil {
		p.t.Fatalf("failed to write %s: %v", name, err)
	}
}

// ReadFile returns the content of name on the project filesystem.
func (p *Project) ReadFile(name string) string {
	p.t.Helper()
	data, err := util.ReadFile(p.FS, name)
	if err != nil {
		p.t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// MarkerSource renders a maestro.app.cue body for app.
func MarkerSource(entity string, app *App) string {
	var sb strings.Builder
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s: %q\n", name, value)
		}
	}
	field("microAppName", app.MicroAppName)
	field("entity", entity)
	field("uiType", app.UIType)
	field("mfName", app.MFName)
	field("processor", app.Processor)
	if len(app.RequiredAcls) > 0 {
		quoted := make([]string, len(app.RequiredAcls))
		for i, acl := range app.RequiredAcls {
			quoted[i] = fmt.Sprintf("%q", acl)
		}
		fmt.Fprintf(&sb, "requiredAcls: [%s]\n", strings.Join(quoted, ", "))
	}
	return sb.String()
}
