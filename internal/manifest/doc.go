// SPDX-License-Identifier: MPL-2.0

// Package manifest maintains mf-maestro.json, the per-entity index of
// micro-frontends consumed by the host application.
//
// The file is a JSON object keyed by microAppName. A merge only replaces
// the keys of the components processed in the current run; every other
// entry is carried over byte for byte. Reading is permissive (a missing or
// corrupt file is an empty manifest) and writing is a complete, atomic
// overwrite.
package manifest
