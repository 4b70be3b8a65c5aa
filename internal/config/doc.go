// SPDX-License-Identifier: MPL-2.0

// Package config loads the three configuration layers of a maestro run.
//
// The global configuration (maestro.cue, .json, .toml or .yaml) lists the
// entities of the monorepo. Each component directory carries a
// maestro.app.cue marker describing the micro-frontend it builds. Tool
// settings come from defaults, .maestro/config.cue, MAESTRO_* environment
// variables and command-line flags, merged through Viper into an explicit
// Settings value.
//
// Every file format is validated against the embedded CUE schema
// (schema.cue) before it is decoded into Go types.
package config
