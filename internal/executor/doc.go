// SPDX-License-Identifier: MPL-2.0

// Package executor runs one operation over every component of every entity.
//
// Entities run concurrently and independently. Within an entity at most
// Options.Concurrency operations are in flight; there is no ordering or
// dependency between components. After the first failure of an entity the
// FailurePolicy decides whether further components start and whether
// in-flight ones are canceled. When every component of an entity succeeded
// its PostProcess hook runs once before the entity is reported done.
//
// The executor touches the filesystem only through discovery; operations
// own their side effects.
package executor
