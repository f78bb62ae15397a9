// Package expr defines the expression node types stored in a pool and a few
// helpers built purely on the Reference API.
package expr

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cbehopkins/treepool"
	"github.com/cbehopkins/treepool/pool"
)

// Node types. Zero is reserved for the allocation-failure node.
const (
	Integer treepool.NodeType = iota + 1
	Symbol
	Addition
	Multiplication
	Opposite
)

var typeNames = map[treepool.NodeType]string{
	treepool.TypeAllocationFailure: "Fail",
	Integer:                        "Int",
	Symbol:                         "Sym",
	Addition:                       "Add",
	Multiplication:                 "Mul",
	Opposite:                       "Opp",
}

// TypeName returns a short display name for a node type.
func TypeName(t treepool.NodeType) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Type" + strconv.Itoa(int(t))
}

// NewInteger stores v as a zig-zag varint payload.
func NewInteger(p *pool.Pool, v int64) pool.Reference {
	return p.Create(Integer, binary.AppendVarint(nil, v))
}

// NewSymbol creates a variable named name.
func NewSymbol(p *pool.Pool, name string) pool.Reference {
	return p.Create(Symbol, []byte(name))
}

// NewAddition builds a sum. It takes ownership of children.
func NewAddition(p *pool.Pool, children ...pool.Reference) pool.Reference {
	return newOperator(p, Addition, children)
}

// NewMultiplication builds a product. It takes ownership of children.
func NewMultiplication(p *pool.Pool, children ...pool.Reference) pool.Reference {
	return newOperator(p, Multiplication, children)
}

// NewOpposite builds -child. It takes ownership of child.
func NewOpposite(p *pool.Pool, child pool.Reference) pool.Reference {
	return newOperator(p, Opposite, []pool.Reference{child})
}

func newOperator(p *pool.Pool, typ treepool.NodeType, children []pool.Reference) pool.Reference {
	r := p.Create(typ, nil)
	for i := range children {
		if !r.IsAllocationFailure() {
			r.AddChildTreeAtIndex(children[i], i, i)
		}
		children[i].Release()
	}
	return r
}

// IntegerValue decodes an Integer node.
func IntegerValue(r pool.Reference) (int64, bool) {
	if r.Type() != Integer {
		return 0, false
	}
	v, n := binary.Varint(r.Payload())
	return v, n > 0
}

// SymbolName decodes a Symbol node.
func SymbolName(r pool.Reference) (string, bool) {
	if r.Type() != Symbol {
		return "", false
	}
	return string(r.Payload()), true
}

// Format renders a tree in prefix form, e.g. Add(1,Mul(x,2)). It is meant for
// logs and tests, not for display to the end user.
func Format(r pool.Reference) string {
	var sb strings.Builder
	format(&sb, r)
	return sb.String()
}

func format(sb *strings.Builder, r pool.Reference) {
	switch r.Type() {
	case Integer:
		v, _ := IntegerValue(r)
		sb.WriteString(strconv.FormatInt(v, 10))
		return
	case Symbol:
		name, _ := SymbolName(r)
		sb.WriteString(name)
		return
	case treepool.TypeAllocationFailure:
		sb.WriteString(TypeName(treepool.TypeAllocationFailure))
		return
	}
	sb.WriteString(TypeName(r.Type()))
	sb.WriteByte('(')
	for i := 0; i < r.NumberOfChildren(); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		c := r.ChildAtIndex(i)
		format(sb, c)
		c.Release()
	}
	sb.WriteByte(')')
}

func isAssociative(t treepool.NodeType) bool {
	return t == Addition || t == Multiplication
}

// Flatten folds nested sums into their parent sum, and nested products into
// their parent product, so Add(Add(1,2),3) becomes Add(1,2,3). No wrapper node
// survives a fold. Flattening a degraded tree does nothing.
func Flatten(r pool.Reference) {
	if r.IsAllocationFailure() {
		return
	}
	for i := 0; i < r.NumberOfChildren(); {
		c := r.ChildAtIndex(i)
		Flatten(c)
		if r.IsAllocationFailure() {
			c.Release()
			return
		}
		if isAssociative(r.Type()) && c.Type() == r.Type() {
			n := c.NumberOfChildren()
			r.MergeTreeChildrenAtIndex(c, i)
			i += n
		} else {
			i++
		}
		c.Release()
	}
}
