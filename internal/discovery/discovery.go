// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"syscall"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/go-git/go-billy/v5"
)

// ErrDiscoveryFailed is the sentinel wrapped by DiscoveryError.
var ErrDiscoveryFailed = errors.New("component discovery failed")

type (
	// Component is a discovered sub-project.
	Component struct {
		// Name is the directory name.
		Name string
		// Entity is the owning entity name.
		Entity string
		// Path is <componentsRoot>/<entity>/<name> relative to the filesystem root.
		Path string
		// FullPath is Path resolved on the host, for running commands.
		FullPath string
	}

	// Result bundles discovered components with skip diagnostics.
	Result struct {
		Components  []Component
		Diagnostics []Diagnostic
	}

	// DiscoveryError is returned when the entity directory cannot be listed.
	DiscoveryError struct {
		Entity string
		Dir    string
		Err    error
	}
)

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("list components of entity %q in %s: %v", e.Entity, e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() []error { return []error{ErrDiscoveryFailed, e.Err} }

// Discover lists the components of entity under componentsRoot on fs. When
// requested is non-empty only the component whose directory name or
// canonical full name (Kebab(entity + "-" + dir)) equals it qualifies.
// Components come back in directory enumeration order.
func Discover(fs billy.Filesystem, entity, componentsRoot, requested string) (*Result, error) {
	dir := path.Join(componentsRoot, entity)

	entries, err := listDir(fs, dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("discover components").
			WithResource(dir).
			WithSuggestion(fmt.Sprintf("Create %s or fix the entity name in the global configuration", dir)).
			WithIssue(issue.DiscoveryFailedId).
			Wrap(&DiscoveryError{Entity: entity, Dir: dir, Err: err}).
			Err()
	}

	res := &Result{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if requested != "" && requested != name && requested != FullName(entity, name) {
			continue
		}

		compDir := path.Join(dir, name)
		if !exists(fs, path.Join(compDir, config.ComponentConfigFile)) {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Code:    CodeMissingMarker,
				Message: fmt.Sprintf("skipping %s: no %s", name, config.ComponentConfigFile),
				Path:    compDir,
			})
			continue
		}
		if !exists(fs, path.Join(compDir, config.PackageDescriptor)) {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Code:    CodeMissingDescriptor,
				Message: fmt.Sprintf("skipping %s: no %s", name, config.PackageDescriptor),
				Path:    compDir,
			})
			continue
		}

		res.Components = append(res.Components, Component{
			Name:     name,
			Entity:   entity,
			Path:     compDir,
			FullPath: filepath.Join(fs.Root(), filepath.FromSlash(compDir)),
		})
	}
	return res, nil
}

// Key is the "entity/component" form used in partitions and logs.
func (c Component) Key() string {
	return c.Entity + "/" + c.Name
}

// listDir requires dir to exist as a directory before listing it. Some
// billy backends report a missing directory as an empty listing.
func listDir(fs billy.Filesystem, dir string) ([]os.FileInfo, error) {
	info, err := fs.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: dir, Err: syscall.ENOTDIR}
	}
	return fs.ReadDir(dir)
}

func exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}
