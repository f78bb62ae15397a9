package pool

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbehopkins/treepool"
)

func TestAddChildTreeAtIndex(t *testing.T) {
	p := newTestPool(t, 512)
	root := p.Create(typeAdd, nil)
	defer root.Release()

	two := leaf(p, 2)
	root.AddChildTreeAtIndex(two, 0, 0)
	requireUnits(t, two, 1)
	two.Release()

	one := leaf(p, 1)
	root.AddChildTreeAtIndex(one, 0, 1)
	one.Release()
	three := leaf(p, 3)
	root.AddChildTreeAtIndex(three, 2, 2)
	three.Release()

	assert.Equal(t, "Add(1,2,3)", describe(root))
	requireValid(t, p)

	child := root.ChildAtIndex(1)
	assert.Equal(t, 2, child.RetainCount())
	child.Release()
}

func TestAddChildTreeAtIndexContractChecks(t *testing.T) {
	p := newTestPool(t, 512)
	root := build(p, typeAdd, leaf(p, 1))
	defer root.Release()
	c := leaf(p, 2)
	defer c.Release()

	requireViolation(t, ErrChildCountMismatch, func() { root.AddChildTreeAtIndex(c, 0, 0) })
	requireViolation(t, ErrIndexOutOfRange, func() { root.AddChildTreeAtIndex(c, 2, 1) })
	requireViolation(t, ErrCycle, func() { root.AddChildTreeAtIndex(root, 0, 1) })

	one := root.ChildAtIndex(0)
	defer one.Release()
	requireViolation(t, ErrCycle, func() { one.AddChildTreeAtIndex(root, 0, 0) })
	requireValid(t, p)
}

func TestAddChildMovesFromOtherParent(t *testing.T) {
	p := newTestPool(t, 512)
	a := build(p, typeAdd, leaf(p, 1), leaf(p, 2))
	b := build(p, typeMul, leaf(p, 3))
	defer a.Release()
	defer b.Release()

	one := a.ChildAtIndex(0)
	id := one.Identifier()
	b.AddChildTreeAtIndex(one, 1, 1)

	assert.Equal(t, "Add(2)", describe(a))
	assert.Equal(t, "Mul(3,1)", describe(b))
	assert.Equal(t, id, one.Identifier())
	requireUnits(t, one, 1)
	one.Release()
	requireValid(t, p)
}

func TestAddChildReordersOwnChild(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 2), leaf(p, 3))
	defer r.Release()

	one := r.ChildAtIndex(0)
	r.AddChildTreeAtIndex(one, 3, 3)
	one.Release()
	assert.Equal(t, "Add(2,3,1)", describe(r))
	assert.Equal(t, 3, r.NumberOfChildren())
	requireValid(t, p)
}

func TestRemoveTreeChildAtIndex(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 2), leaf(p, 3))
	defer r.Release()

	r.RemoveTreeChildAtIndex(1)
	assert.Equal(t, 2, r.NumberOfChildren())
	c := r.ChildAtIndex(1)
	assert.Equal(t, []byte{3}, c.Payload())
	c.Release()
	assert.Equal(t, 4, p.Stats().LiveNodes)
	requireValid(t, p)

	requireViolation(t, ErrIndexOutOfRange, func() { r.RemoveTreeChildAtIndex(2) })
}

func TestRemovedChildSurvivesWhileReferenced(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), build(p, typeMul, leaf(p, 2), leaf(p, 3)))
	defer r.Release()

	mul := r.ChildAtIndex(1)
	r.RemoveTreeChild(mul, 2)
	assert.Equal(t, "Add(1)", describe(r))
	assert.True(t, mul.IsDefined())
	assert.Equal(t, "Mul(2,3)", describe(mul))
	requireUnits(t, mul, 1)
	requireValid(t, p)

	mul.Release()
	assert.Equal(t, 3, p.Stats().LiveNodes)
	requireValid(t, p)
}

func TestRemoveTreeChildContractChecks(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, build(p, typeMul, leaf(p, 2)))
	defer r.Release()
	mul := r.ChildAtIndex(0)
	defer mul.Release()
	two := mul.ChildAtIndex(0)
	defer two.Release()

	requireViolation(t, ErrNotAChild, func() { r.RemoveTreeChild(two, 0) })
	requireViolation(t, ErrChildCountMismatch, func() { r.RemoveTreeChild(mul, 3) })
}

func TestRemoveChildren(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), build(p, typeMul, leaf(p, 2)), leaf(p, 3))
	defer r.Release()
	kept := r.ChildAtIndex(2)
	defer kept.Release()

	r.RemoveChildren()
	assert.Equal(t, 0, r.NumberOfChildren())
	assert.True(t, r.IsDefined())
	assert.True(t, kept.IsDefined())
	requireUnits(t, kept, 1)
	assert.Equal(t, 3, p.Stats().LiveNodes)
	requireValid(t, p)
}

func TestDestroyDetachesReferencedChildren(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, build(p, typeMul, leaf(p, 1), leaf(p, 2)), leaf(p, 3))
	mul := r.ChildAtIndex(0)
	inner := mul.ChildAtIndex(1)
	mul.Release()

	r.Release()
	assert.False(t, r.IsDefined())
	assert.True(t, inner.IsDefined())
	parent := inner.Parent()
	assert.False(t, parent.IsDefined())
	requireUnits(t, inner, 1)
	assert.Equal(t, 2, p.Stats().LiveNodes)
	requireValid(t, p)

	inner.Release()
	assert.Equal(t, HeaderSize, p.Stats().Used)
}

func TestReplaceTreeChild(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 2), leaf(p, 3))
	defer r.Release()

	old := r.ChildAtIndex(1)
	nine := leaf(p, 9)
	r.ReplaceTreeChild(old, nine)
	assert.Equal(t, "Add(1,9,3)", describe(r))
	requireUnits(t, nine, 1)
	requireUnits(t, old, 1)
	nine.Release()
	old.Release()
	assert.Equal(t, 5, p.Stats().LiveNodes)
	requireValid(t, p)
}

func TestReplaceTreeChildWithSibling(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 2), leaf(p, 3))
	defer r.Release()

	three := r.ChildAtIndex(2)
	r.ReplaceTreeChildAtIndex(0, three)
	three.Release()
	assert.Equal(t, "Add(3,2)", describe(r))
	assert.Equal(t, 2, r.NumberOfChildren())
	requireValid(t, p)
}

func TestReplaceTreeChildWithGrandchild(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeMul, build(p, typeAdd, leaf(p, 1), leaf(p, 2)), leaf(p, 3))
	defer r.Release()

	add := r.ChildAtIndex(0)
	one := add.ChildAtIndex(0)
	add.Release()
	r.ReplaceTreeChildAtIndex(0, one)
	one.Release()

	assert.Equal(t, "Mul(1,3)", describe(r))
	assert.Equal(t, 4, p.Stats().LiveNodes)
	requireValid(t, p)

	requireViolation(t, ErrIndexOutOfRange, func() { r.ReplaceTreeChildAtIndex(2, r) })
	c := r.ChildAtIndex(0)
	defer c.Release()
	requireViolation(t, ErrCycle, func() { r.ReplaceTreeChild(c, r) })
}

func TestReplaceWithRoundTrip(t *testing.T) {
	p := newTestPool(t, 1024)
	r := build(p, typeMul, build(p, typeAdd, leaf(p, 1), build(p, typeMul, leaf(p, 2), leaf(p, 4))), leaf(p, 3))
	defer r.Release()
	before := describe(r)

	child := r.ChildAtIndex(0)
	clone := child.TreeClone()
	child.ReplaceWith(clone)

	assert.Equal(t, before, describe(r))
	installed := r.ChildAtIndex(0)
	assert.True(t, installed.Equal(clone))
	installed.Release()
	requireUnits(t, clone, 1)
	requireUnits(t, child, 1)
	clone.Release()
	child.Release()
	requireValid(t, p)
	assert.Equal(t, 8, p.Stats().LiveNodes)
}

func TestReplaceWithOnRoot(t *testing.T) {
	p := newTestPool(t, 512)
	a := build(p, typeAdd, leaf(p, 1))
	b := leaf(p, 2)
	a.ReplaceWith(b)
	assert.Equal(t, "Add(1)", describe(a))
	assert.Equal(t, 1, a.RetainCount())
	assert.Equal(t, 1, b.RetainCount())
	requireValid(t, p)
	a.Release()
	b.Release()
	requireValid(t, p)
}

func TestMergeTreeChildrenAtIndex(t *testing.T) {
	p := newTestPool(t, 512)
	inner := build(p, typeAdd, leaf(p, 1), leaf(p, 2))
	outer := p.Create(typeAdd, nil)
	defer outer.Release()
	outer.AddChildTreeAtIndex(inner, 0, 0)
	three := leaf(p, 3)
	outer.AddChildTreeAtIndex(three, 1, 1)
	three.Release()

	outer.MergeTreeChildrenAtIndex(inner, 0)
	assert.Equal(t, "Add(1,2,3)", describe(outer))
	assert.Equal(t, 3, outer.NumberOfChildren())
	assert.Equal(t, 0, inner.NumberOfChildren())
	requireUnits(t, inner, 1)

	inner.Release()
	assert.Equal(t, 1, countType(p, typeAdd))
	for i := 0; i < 3; i++ {
		c := outer.ChildAtIndex(i)
		requireUnits(t, c, 1)
		c.Release()
	}
	requireValid(t, p)
}

func TestMergeTreeChildrenFromDetachedTree(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 4))
	defer r.Release()
	donor := build(p, typeAdd, leaf(p, 2), leaf(p, 3))
	defer donor.Release()

	r.MergeTreeChildrenAtIndex(donor, 1)
	assert.Equal(t, "Add(1,2,3,4)", describe(r))
	assert.Equal(t, "Add()", describe(donor))
	requireValid(t, p)

	r.MergeTreeChildrenAtIndex(donor, 4)
	assert.Equal(t, 4, r.NumberOfChildren())
	requireViolation(t, ErrIndexOutOfRange, func() { r.MergeTreeChildrenAtIndex(donor, 5) })
	requireViolation(t, ErrCycle, func() { r.MergeTreeChildrenAtIndex(r, 0) })
}

func TestMergeTreeChildrenAfterOwner(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), build(p, typeAdd, leaf(p, 2), leaf(p, 3)), leaf(p, 4))
	defer r.Release()
	inner := r.ChildAtIndex(1)

	// Splicing right after inner leaves the bytes in place.
	r.MergeTreeChildrenAtIndex(inner, 2)
	inner.Release()
	assert.Equal(t, "Add(1,2,3,4)", describe(r))
	assert.Equal(t, 1, countType(p, typeAdd))
	requireValid(t, p)
}

func TestTreeCloneIsIndependent(t *testing.T) {
	p := newTestPool(t, 1024)
	orig := build(p, typeAdd, leaf(p, 1), build(p, typeMul, leaf(p, 2), leaf(p, 3)))
	defer orig.Release()
	before := describe(orig)

	clone := orig.TreeClone()
	require.False(t, clone.IsAllocationFailure())
	assert.Equal(t, before, describe(clone))
	assert.NotEqual(t, orig.Identifier(), clone.Identifier())
	assert.Equal(t, 1, clone.RetainCount())

	origIds := map[treepool.NodeId]bool{}
	p.ForEachNode(func(id treepool.NodeId, _ treepool.NodeType) { origIds[id] = true })
	assert.Len(t, origIds, 11)

	c := clone.ChildAtIndex(1)
	requireUnits(t, c, 1)
	c.Release()

	clone.RemoveChildren()
	assert.Equal(t, before, describe(orig))
	assert.Equal(t, 2, orig.NumberOfChildren())
	clone.Release()
	assert.Equal(t, 6, p.Stats().LiveNodes)
	requireValid(t, p)
}

func TestTreeCloneOfFailure(t *testing.T) {
	p := newTestPool(t, 256)
	c := p.AllocationFailure().TreeClone()
	assert.True(t, c.IsAllocationFailure())
	assert.Equal(t, 1, p.Stats().LiveNodes)
}

func TestAllocationFailurePropagates(t *testing.T) {
	p := newTestPool(t, 512)
	root := build(p, typeMul, build(p, typeAdd, leaf(p, 1), leaf(p, 2)), leaf(p, 3))
	defer root.Release()
	inner := root.ChildAtIndex(0)
	defer inner.Release()

	inner.AddChildTreeAtIndex(p.AllocationFailure(), 2, 2)

	assert.True(t, inner.IsAllocationFailure())
	assert.True(t, root.IsAllocationFailure())
	assert.Equal(t, 0, root.NumberOfChildren())
	requireUnits(t, inner, 1)
	requireUnits(t, root, 1)
	assert.Equal(t, 3, p.Stats().LiveNodes)
	assert.Equal(t, 3*HeaderSize, p.Stats().Used)
	requireValid(t, p)

	// Further edits on a degraded tree are ignored.
	x := leaf(p, 5)
	root.AddChildTreeAtIndex(x, 0, 0)
	root.MergeTreeChildrenAtIndex(x, 0)
	assert.Equal(t, 0, root.NumberOfChildren())
	x.Release()
}

func TestReplaceWithAllocationFailure(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 2))
	defer r.Release()

	requireViolation(t, ErrChildCountMismatch, func() { r.ReplaceWithAllocationFailure(1) })
	r.ReplaceWithAllocationFailure(2)
	assert.True(t, r.IsAllocationFailure())
	assert.Empty(t, r.Payload())
	r.ReplaceWithAllocationFailure(0)
	requireValid(t, p)
}

func TestReplaceTreeChildWithFailureDegrades(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1), leaf(p, 2))
	defer r.Release()
	c := r.ChildAtIndex(0)
	defer c.Release()

	r.ReplaceTreeChild(c, p.AllocationFailure())
	assert.True(t, r.IsAllocationFailure())
	assert.True(t, c.IsDefined())
	assert.False(t, c.IsAllocationFailure())
	requireValid(t, p)
}

func TestMergeFailureDegrades(t *testing.T) {
	p := newTestPool(t, 512)
	r := build(p, typeAdd, leaf(p, 1))
	defer r.Release()
	r.MergeTreeChildrenAtIndex(p.AllocationFailure(), 0)
	assert.True(t, r.IsAllocationFailure())
	requireValid(t, p)
}

func TestRandomAddRemoveKeepsCount(t *testing.T) {
	p := newTestPool(t, 4096)
	r := p.Create(typeAdd, nil)
	defer r.Release()
	rng := rand.New(rand.NewSource(42))

	adds, removes := 0, 0
	for i := 0; i < 300; i++ {
		n := r.NumberOfChildren()
		if n > 0 && rng.Intn(3) == 0 {
			r.RemoveTreeChildAtIndex(rng.Intn(n))
			removes++
		} else {
			c := leaf(p, byte(i))
			require.False(t, c.IsAllocationFailure())
			r.AddChildTreeAtIndex(c, rng.Intn(n+1), n)
			c.Release()
			adds++
		}
		require.Equal(t, adds-removes, r.NumberOfChildren())
		require.Equal(t, 2+adds-removes, p.Stats().LiveNodes)
		requireValid(t, p)
	}
}

func TestExportImport(t *testing.T) {
	p := newTestPool(t, 1024)
	r := build(p, typeAdd, leaf(p, 1), build(p, typeMul, leaf(p, 2), leaf(p, 3)))
	defer r.Release()

	data := p.Export(r)
	q := newTestPool(t, 1024)
	got, err := q.Import(data)
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, describe(r), describe(got))
	assert.Equal(t, 1, got.RetainCount())
	requireValid(t, q)

	_, err = q.Import(data[:len(data)-1])
	assert.ErrorIs(t, err, ErrMalformedTree)
	_, err = q.Import(append(data, 0))
	assert.ErrorIs(t, err, ErrMalformedTree)
	_, err = q.Import(nil)
	assert.ErrorIs(t, err, ErrMalformedTree)

	q.SetLimit(0)
	f, err := q.Import(data)
	require.NoError(t, err)
	assert.True(t, f.IsAllocationFailure())
	requireValid(t, q)
}
