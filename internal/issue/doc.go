// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown help
// pages, one per failure class, rendered for the terminal with glamour.
package issue
