// Package ir provides the program intermediate representation the
// wrapper-erasure pass operates on.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Declarations, statements and expressions are sealed interfaces; code
//     that dispatches over them uses exhaustive type switches.
//   - Every declaration records its owner explicitly (Parent/SetParent).
//     Moving a subtree to a new owner is an explicit reparenting walk.
//   - Types are immutable values and may be shared between nodes.
//   - Rendering and hashing are deterministic: the same tree always renders
//     and hashes the same way.
package ir
