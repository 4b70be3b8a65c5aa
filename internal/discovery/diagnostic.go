// SPDX-License-Identifier: MPL-2.0

package discovery

const (
	// CodeMissingMarker marks a directory without maestro.app.cue.
	CodeMissingMarker Code = "missing_marker"
	// CodeMissingDescriptor marks a directory without package.json.
	CodeMissingDescriptor Code = "missing_descriptor"
)

type (
	// Code is a machine-readable diagnostic identifier.
	Code string

	// Diagnostic describes a directory that was skipped during discovery.
	// Diagnostics are returned to callers instead of being logged here so
	// the CLI decides how loud they are.
	Diagnostic struct {
		Code    Code
		Message string
		Path    string
	}
)
