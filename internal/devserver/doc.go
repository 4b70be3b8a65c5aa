// SPDX-License-Identifier: MPL-2.0

// Package devserver serves a bundle directory over HTTP for local
// development.
package devserver
