// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the maestro command tree.
//
// Every component command (install, build, test, clean, bundle, partition)
// resolves settings, discovers the components of each configured entity and
// hands a per-component operation to the executor. Failures are rendered
// once and translated to an exit code by Execute.
package cmd
