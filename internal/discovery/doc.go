// SPDX-License-Identifier: MPL-2.0

// Package discovery finds the components of an entity.
//
// A component is an immediate subdirectory of <componentsRoot>/<entity>
// holding both the maestro.app.cue marker and a package.json descriptor.
// Directories that fail either check are skipped and reported as
// diagnostics rather than errors; only an unreadable entity directory fails
// discovery.
//
// File organization:
//   - discovery.go: Discover and the Component type
//   - diagnostic.go: skip diagnostics returned to callers
//   - names.go: canonical dash-case component names
package discovery
