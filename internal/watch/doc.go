// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs work for the components whose files change.
//
// A Watcher observes the components root with fsnotify, coalesces events
// within a debounce window and reports the affected components as
// "entity/component" keys. Build outputs and dependency caches are ignored
// so a rebuild never triggers itself.
package watch
