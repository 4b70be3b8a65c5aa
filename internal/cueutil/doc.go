// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates configuration data against embedded CUE schemas.
//
// Every configuration file maestro reads goes through the same flow:
//
//  1. Compile the embedded schema and look up its root definition
//  2. Turn the user data into a CUE value (CUE/JSON source, or a Go value
//     decoded from TOML/YAML)
//  3. Unify, validate, and decode into a Go struct
//
// Errors carry the file name and a JSON-path to the offending field.
package cueutil
