// SPDX-License-Identifier: MPL-2.0

// Package shell runs component commands and waits for them.
//
// Two runners share the Runner interface: NativeRunner starts the host sh,
// VirtualRunner interprets the script in-process with mvdan/sh and only
// spawns external programs such as npm. Both capture stdout and stderr and
// can stream them line by line through a PrefixWriter.
package shell
