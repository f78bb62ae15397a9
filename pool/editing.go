package pool

import "github.com/cbehopkins/treepool"

func (p *Pool) checkChildCount(off, expected int) {
	if n := p.childrenAt(off); n != expected {
		violation(ErrChildCountMismatch, "node %s has %d children, caller expected %d",
			p.ids.idOf(p.slotAt(off)), n, expected)
	}
}

// checkAcyclic panics if t is r or one of r's ancestors.
func (r Reference) checkAcyclic(t Reference) {
	if r.HasAncestor(t, true) {
		violation(ErrCycle, "%s is an ancestor of %s", t.id, r.id)
	}
}

// adopt takes t out of wherever it sits and leaves it as a root holding one unit
// for the parent edge it is about to gain. If t already had a parent the existing
// edge unit is transferred; otherwise a new one is retained.
func (p *Pool) adopt(t uint16) {
	poff, ok := p.parentOffset(p.ids.offset(t))
	if !ok {
		p.retain(t)
		return
	}
	p.detach(p.slotAt(poff), t)
}

func (p *Pool) isFailure(off int) bool {
	return p.typeAt(off) == treepool.TypeAllocationFailure
}

// AddChildTreeAtIndex installs t as r's child at index. currentNumberOfChildren
// must match r's children count. If t already has a parent it is moved, keeping
// its identifier. Adding an allocation failure degrades r.
func (r Reference) AddChildTreeAtIndex(t Reference, index, currentNumberOfChildren int) {
	p := r.pool
	off := r.offset()
	if p.isFailure(off) {
		return
	}
	r.sibling(t)
	if t.IsAllocationFailure() {
		r.ReplaceWithAllocationFailure(currentNumberOfChildren)
		return
	}
	p.checkChildCount(off, currentNumberOfChildren)
	if index < 0 || index > currentNumberOfChildren {
		violation(ErrIndexOutOfRange, "index %d, %d children", index, currentNumberOfChildren)
	}
	r.checkAcyclic(t)

	p.adopt(t.slot())
	off = p.ids.offset(r.slot())
	n := p.childrenAt(off)
	// t may have been one of r's own children.
	index = min(index, n)
	toff := p.ids.offset(t.slot())
	p.move(p.childOffset(off, index), toff, p.subtreeEnd(toff)-toff)
	off = p.ids.offset(r.slot())
	p.setChildren(off, n+1)
}

// RemoveTreeChildAtIndex removes child i and releases the parent edge.
func (r Reference) RemoveTreeChildAtIndex(i int) {
	p := r.pool
	off := r.offset()
	if n := p.childrenAt(off); i < 0 || i >= n {
		violation(ErrIndexOutOfRange, "index %d, %d children", i, n)
	}
	child := p.slotAt(p.childOffset(off, i))
	p.detach(r.slot(), child)
	p.release(child)
}

// RemoveTreeChild removes t, which must be a direct child of r with
// childNumberOfChildren children, and releases the parent edge.
func (r Reference) RemoveTreeChild(t Reference, childNumberOfChildren int) {
	p := r.pool
	toff := r.sibling(t)
	if !r.HasChild(t) {
		violation(ErrNotAChild, "%s is not a child of %s", t.id, r.id)
	}
	p.checkChildCount(toff, childNumberOfChildren)
	p.detach(r.slot(), t.slot())
	p.release(t.slot())
}

// RemoveChildren releases every child of r. r itself is kept.
func (r Reference) RemoveChildren() {
	p := r.pool
	r.offset()
	for {
		off := p.ids.offset(r.slot())
		if p.childrenAt(off) == 0 {
			return
		}
		child := p.slotAt(off + p.nodeSize(off))
		p.detach(r.slot(), child)
		p.release(child)
	}
}

// ReplaceWith puts t in r's place under r's parent. When r is a root there is no
// edge to transfer and t, if it is a root too, is only relocated in front of r.
func (r Reference) ReplaceWith(t Reference) {
	p := r.pool
	off := r.offset()
	toff := r.sibling(t)
	poff, ok := p.parentOffset(off)
	if ok {
		parent := Reference{pool: p, id: p.ids.idOf(p.slotAt(poff))}
		parent.ReplaceTreeChild(r, t)
		return
	}
	if r.id == t.id {
		return
	}
	if _, tHasParent := p.parentOffset(toff); tHasParent || p.isStatic(toff) {
		return
	}
	p.move(off, toff, p.subtreeEnd(toff)-toff)
}

// ReplaceTreeChild puts newChild in oldChild's slot among r's children. The
// edge unit moves from oldChild, which is released, to newChild.
func (r Reference) ReplaceTreeChild(oldChild, newChild Reference) {
	p := r.pool
	off := r.offset()
	if oldChild.Equal(newChild) || p.isFailure(off) {
		return
	}
	r.sibling(newChild)
	if newChild.IsAllocationFailure() {
		r.ReplaceWithAllocationFailure(p.childrenAt(off))
		return
	}
	if !r.HasChild(oldChild) {
		violation(ErrNotAChild, "%s is not a child of %s", oldChild.id, r.id)
	}
	r.checkAcyclic(newChild)

	// newChild may sit under oldChild, under r, or anywhere else.
	p.adopt(newChild.slot())
	noff := p.ids.offset(newChild.slot())
	p.move(p.ids.offset(oldChild.slot()), noff, p.subtreeEnd(noff)-noff)
	ooff := p.ids.offset(oldChild.slot())
	p.move(p.cursor, ooff, p.subtreeEnd(ooff)-ooff)
	// r's children count is already right: one in, one out, and when newChild
	// came from r itself adopt took it off the count.
	p.release(oldChild.slot())
}

// ReplaceTreeChildAtIndex replaces child i with newChild.
func (r Reference) ReplaceTreeChildAtIndex(i int, newChild Reference) {
	if n := r.NumberOfChildren(); i < 0 || i >= n {
		violation(ErrIndexOutOfRange, "index %d, %d children", i, n)
	}
	old := r.ChildAtIndex(i)
	defer old.Release()
	r.ReplaceTreeChild(old, newChild)
}

// ReplaceWithAllocationFailure turns r into an allocation-failure node in place,
// releasing its children, and propagates the failure to every ancestor.
// currentNumberOfChildren must match r's children count. It never allocates.
func (r Reference) ReplaceWithAllocationFailure(currentNumberOfChildren int) {
	p := r.pool
	off := r.offset()
	if p.isFailure(off) {
		return
	}
	p.checkChildCount(off, currentNumberOfChildren)
	p.degrade(r.slot())
}

// MergeTreeChildrenAtIndex splices t's children into r's child list starting at
// i. The children's edge units move to r; t keeps no children and, if it was a
// child of r, is removed.
func (r Reference) MergeTreeChildrenAtIndex(t Reference, i int) {
	p := r.pool
	off := r.offset()
	if p.isFailure(off) {
		return
	}
	toff := r.sibling(t)
	if t.IsAllocationFailure() {
		r.ReplaceWithAllocationFailure(p.childrenAt(off))
		return
	}
	n := p.childrenAt(off)
	if i < 0 || i > n {
		violation(ErrIndexOutOfRange, "index %d, %d children", i, n)
	}
	r.checkAcyclic(t)

	m := p.childrenAt(toff)
	if m > 0 {
		first := toff + p.nodeSize(toff)
		p.move(p.childOffset(off, i), first, p.subtreeEnd(toff)-first)
	}
	p.setChildren(p.ids.offset(t.slot()), 0)
	p.setChildren(p.ids.offset(r.slot()), n+m)
	if r.HasChild(t) {
		p.detach(r.slot(), t.slot())
		p.release(t.slot())
	}
}
