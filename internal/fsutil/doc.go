// SPDX-License-Identifier: MPL-2.0

// Package fsutil copies and removes directory trees on billy filesystems.
package fsutil
