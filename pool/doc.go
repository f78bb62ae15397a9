// Package pool is the arena-backed tree store of the expression engine.
//
// A Pool owns a single fixed-capacity byte region. Nodes are written into it as
// a fixed header followed by a type-specific payload, and a node's children
// follow it immediately in depth-first order, so every subtree is one contiguous
// byte range. Nodes are named by identifiers resolved through a table rather
// than by address; structural edits move bytes and rewrite the table before
// returning, so outstanding References survive relocation.
//
// Lifetime is reference counted. A node's retain count is one unit per parent
// edge plus one per live Reference. When it reaches zero the node's children are
// released and its bytes are excised at once, with everything after it shifted
// down to close the gap.
//
// Running out of space never panics or returns an error. The operation yields
// the pool's allocation-failure node instead, and tree edits that meet a failure
// node degrade the tree they are editing:
//
//	p, _ := pool.New(4096)
//	sum := p.Create(typeAdd, nil)
//	one := p.Create(typeInt, []byte{1})
//	sum.AddChildTreeAtIndex(one, 0, 0)
//	one.Release()
//	if sum.IsAllocationFailure() {
//		// report "not enough memory"
//	}
//	sum.Release()
//
// # Sharing and mutation
//
// Several References may name the same node and all of them observe edits made
// through any one of them; edits never clone implicitly. A subtree has at most
// one parent: adding or merging a node that already has a parent moves it, with
// its identifier, to the new position. Callers that need an independent copy
// call TreeClone first.
//
// Misuse of the API (navigating a stale Reference, passing a stale children
// count, out of range indexes, cycles) panics with an error wrapping one of the
// contract violation sentinels.
package pool
