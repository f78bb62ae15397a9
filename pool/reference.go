package pool

import (
	"github.com/cbehopkins/treepool"
)

// Reference is an owning handle on a node. It holds an identifier, never an
// arena offset, so it stays valid while the node's bytes move around.
//
// Ownership is explicit. Copy returns a new owning handle, Set replaces the held
// node, and Release gives the unit back. A Reference passed as an argument is
// borrowed; References returned by the pool or by navigation are owned by the
// caller and must be released.
type Reference struct {
	pool *Pool
	id   treepool.NodeId
}

// Pool returns the pool the Reference belongs to.
func (r Reference) Pool() *Pool {
	return r.pool
}

// Identifier returns the held identifier, or NoNodeId.
func (r Reference) Identifier() treepool.NodeId {
	return r.id
}

// IsDefined reports whether the Reference names a live node. A Reference whose
// node has been destroyed through another owner is not defined.
func (r Reference) IsDefined() bool {
	if r.pool == nil {
		return false
	}
	_, ok := r.pool.ids.resolve(r.id)
	return ok
}

// IsAllocationFailure reports whether the Reference names an allocation-failure
// node.
func (r Reference) IsAllocationFailure() bool {
	if r.pool == nil {
		return false
	}
	off, ok := r.pool.ids.resolve(r.id)
	return ok && r.pool.typeAt(off) == treepool.TypeAllocationFailure
}

// Equal reports whether both References name the same node.
func (r Reference) Equal(o Reference) bool {
	return r.pool == o.pool && r.id == o.id
}

// Copy returns a new owning Reference to the same node. Copying an undefined
// Reference yields an undefined Reference.
func (r Reference) Copy() Reference {
	if !r.IsDefined() {
		return Reference{pool: r.pool, id: treepool.NoNodeId}
	}
	r.pool.retain(r.id.Slot())
	return r
}

// Set makes r name the same node as o, retaining o's node before releasing the
// one r held.
func (r *Reference) Set(o Reference) {
	if r.Equal(o) {
		return
	}
	c := o.Copy()
	r.Release()
	*r = c
}

// Release gives back r's ownership unit and leaves r undefined. Releasing an
// undefined or stale Reference does nothing.
func (r *Reference) Release() {
	if r.IsDefined() {
		r.pool.release(r.id.Slot())
	}
	r.id = treepool.NoNodeId
}

// offset resolves the Reference or panics.
func (r Reference) offset() int {
	if r.pool == nil || r.id == treepool.NoNodeId {
		violation(ErrUndefinedReference, "navigation on undefined reference")
	}
	off, ok := r.pool.ids.resolve(r.id)
	if !ok {
		violation(ErrStaleReference, "node %s is no longer live", r.id)
	}
	return off
}

// sibling resolves a Reference that must live in r's pool.
func (r Reference) sibling(o Reference) int {
	if o.pool != nil && o.pool != r.pool {
		violation(ErrForeignPool, "node %s", o.id)
	}
	return o.offset()
}

func (r Reference) slot() uint16 {
	return r.id.Slot()
}

func (p *Pool) ref(slot uint16) Reference {
	p.retain(slot)
	return Reference{pool: p, id: p.ids.idOf(slot)}
}

// Type returns the node's type tag.
func (r Reference) Type() treepool.NodeType {
	return r.pool.typeAt(r.offset())
}

// Payload returns a copy of the node's payload.
func (r Reference) Payload() []byte {
	src := r.pool.payloadAt(r.offset())
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

// RetainCount returns the number of ownership units held on the node.
func (r Reference) RetainCount() int {
	return r.pool.retainAt(r.offset())
}

// NumberOfChildren returns the number of direct children.
func (r Reference) NumberOfChildren() int {
	return r.pool.childrenAt(r.offset())
}

// NumberOfDescendants counts the nodes below r, plus r itself if includeSelf.
func (r Reference) NumberOfDescendants(includeSelf bool) int {
	n := r.pool.countNodes(r.offset())
	if !includeSelf {
		n--
	}
	return n
}

// ChildAtIndex returns an owning Reference to child i.
func (r Reference) ChildAtIndex(i int) Reference {
	off := r.offset()
	if n := r.pool.childrenAt(off); i < 0 || i >= n {
		violation(ErrIndexOutOfRange, "index %d, %d children", i, n)
	}
	return r.pool.ref(r.pool.slotAt(r.pool.childOffset(off, i)))
}

// IndexOfChild returns the position of t among r's children, or -1.
func (r Reference) IndexOfChild(t Reference) int {
	off := r.offset()
	toff := r.sibling(t)
	pos := off + r.pool.nodeSize(off)
	n := r.pool.childrenAt(off)
	for i := 0; i < n; i++ {
		if pos == toff {
			return i
		}
		pos = r.pool.subtreeEnd(pos)
	}
	return -1
}

// Parent returns an owning Reference to r's parent, or an undefined Reference
// if r is a root. The parent is found by search, it is not stored.
func (r Reference) Parent() Reference {
	poff, ok := r.pool.parentOffset(r.offset())
	if !ok {
		return r.pool.Undefined()
	}
	return r.pool.ref(r.pool.slotAt(poff))
}

// HasChild reports whether t is a direct child of r.
func (r Reference) HasChild(t Reference) bool {
	if !t.IsDefined() {
		return false
	}
	return r.IndexOfChild(t) >= 0
}

// HasSibling reports whether t is a child of r's parent. A node counts as its
// own sibling.
func (r Reference) HasSibling(t Reference) bool {
	if !t.IsDefined() {
		return false
	}
	poff, ok := r.pool.parentOffset(r.offset())
	if !ok {
		return false
	}
	parent := Reference{pool: r.pool, id: r.pool.ids.idOf(r.pool.slotAt(poff))}
	return parent.HasChild(t)
}

// HasAncestor reports whether t's subtree contains r.
func (r Reference) HasAncestor(t Reference, includeSelf bool) bool {
	if !t.IsDefined() {
		return false
	}
	off := r.offset()
	toff := r.sibling(t)
	if off == toff {
		return includeSelf
	}
	return toff < off && off < r.pool.subtreeEnd(toff)
}
