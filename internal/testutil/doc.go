// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that fail the test on error
// instead of returning it.
//
// The Must* helpers cover the host filesystem.
// Project builds a maestro monorepo (entities, components, markers and
// package descriptors) on any billy filesystem, usually memfs.
package testutil
