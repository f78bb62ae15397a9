package pool

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbehopkins/treepool"
)

const (
	typeInt treepool.NodeType = iota + 1
	typeAdd
	typeMul
)

func newTestPool(t *testing.T, capacity int, opts ...Option) *Pool {
	t.Helper()
	p, err := New(capacity, opts...)
	require.NoError(t, err)
	return p
}

func leaf(p *Pool, v byte) Reference {
	return p.Create(typeInt, []byte{v})
}

// build creates a node of typ and installs children in order, consuming them.
func build(p *Pool, typ treepool.NodeType, children ...Reference) Reference {
	r := p.Create(typ, nil)
	for i, c := range children {
		r.AddChildTreeAtIndex(c, i, i)
		c.Release()
	}
	return r
}

// describe renders a tree as Add(1,Mul(2,3)).
func describe(r Reference) string {
	switch r.Type() {
	case treepool.TypeAllocationFailure:
		return "Fail"
	case typeInt:
		return fmt.Sprint(r.Payload()[0])
	}
	name := map[treepool.NodeType]string{typeAdd: "Add", typeMul: "Mul"}[r.Type()]
	parts := make([]string, r.NumberOfChildren())
	for i := range parts {
		c := r.ChildAtIndex(i)
		parts[i] = describe(c)
		c.Release()
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func requireValid(t *testing.T, p *Pool) {
	t.Helper()
	require.NoError(t, p.Validate())
}

// requireUnits checks the ownership invariant for a node: one unit per live
// Reference plus one for its parent edge.
func requireUnits(t *testing.T, r Reference, references int) {
	t.Helper()
	want := references
	parent := r.Parent()
	if parent.IsDefined() {
		want++
	}
	parent.Release()
	// Parent() and its release must leave the count as it was.
	require.Equal(t, want, r.RetainCount(), "retain count of %s", r.Identifier())
}

func requireViolation(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		rec := recover()
		require.NotNil(t, rec, "expected a panic wrapping %v", want)
		err, ok := rec.(error)
		require.True(t, ok, "panic value %v is not an error", rec)
		require.ErrorIs(t, err, want)
	}()
	fn()
}

func countType(p *Pool, typ treepool.NodeType) int {
	n := 0
	p.ForEachNode(func(_ treepool.NodeId, got treepool.NodeType) {
		if got == typ {
			n++
		}
	})
	return n
}
