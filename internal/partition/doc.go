// SPDX-License-Identifier: MPL-2.0

// Package partition splits a monorepo into N self-contained copies so CI
// jobs can build disjoint sets of components in parallel.
//
// Assign balances whole entities over the partitions, always filling the
// partition with the fewest components. Materialize writes each non-empty
// partition as a copy of the project without its components, then adds
// the assigned components back under the components root.
package partition
