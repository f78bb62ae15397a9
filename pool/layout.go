package pool

import (
	"encoding/binary"

	"github.com/cbehopkins/treepool"
)

// Node header layout. Every node in the arena starts with this fixed header and
// is followed by its payload, then by its children's subtrees in order.
//
//	0  size     u16  header + payload bytes
//	2  type     u8
//	3  flags    u8
//	4  slot     u16  identifier table slot
//	6  children u16
//	8  retain   u16
const (
	HeaderSize = 10

	offSize     = 0
	offType     = 2
	offFlags    = 3
	offSlot     = 4
	offChildren = 6
	offRetain   = 8

	// MaxPayload is the largest payload a single node can carry.
	MaxPayload = 0xFFFF - HeaderSize

	maxChildren = 0xFFFF
	maxRetain   = 0xFFFF
)

const flagStatic = 1 << 0

func (p *Pool) nodeSize(off int) int {
	return int(binary.LittleEndian.Uint16(p.buf[off+offSize:]))
}

func (p *Pool) setNodeSize(off, size int) {
	binary.LittleEndian.PutUint16(p.buf[off+offSize:], uint16(size))
}

func (p *Pool) typeAt(off int) treepool.NodeType {
	return treepool.NodeType(p.buf[off+offType])
}

func (p *Pool) setType(off int, typ treepool.NodeType) {
	p.buf[off+offType] = byte(typ)
}

func (p *Pool) isStatic(off int) bool {
	return p.buf[off+offFlags]&flagStatic != 0
}

func (p *Pool) slotAt(off int) uint16 {
	return binary.LittleEndian.Uint16(p.buf[off+offSlot:])
}

func (p *Pool) setSlot(off int, slot uint16) {
	binary.LittleEndian.PutUint16(p.buf[off+offSlot:], slot)
}

func (p *Pool) childrenAt(off int) int {
	return int(binary.LittleEndian.Uint16(p.buf[off+offChildren:]))
}

func (p *Pool) setChildren(off, n int) {
	if n < 0 || n > maxChildren {
		violation(ErrChildCountMismatch, "children count %d", n)
	}
	binary.LittleEndian.PutUint16(p.buf[off+offChildren:], uint16(n))
}

func (p *Pool) retainAt(off int) int {
	return int(binary.LittleEndian.Uint16(p.buf[off+offRetain:]))
}

func (p *Pool) setRetain(off, n int) {
	binary.LittleEndian.PutUint16(p.buf[off+offRetain:], uint16(n))
}

func (p *Pool) payloadAt(off int) []byte {
	return p.buf[off+HeaderSize : off+p.nodeSize(off)]
}

// writeHeader initialises a node header at off.
func (p *Pool) writeHeader(off int, typ treepool.NodeType, payloadLen int, slot uint16, children, retain int) {
	p.setNodeSize(off, HeaderSize+payloadLen)
	p.setType(off, typ)
	p.buf[off+offFlags] = 0
	p.setSlot(off, slot)
	p.setChildren(off, children)
	p.setRetain(off, retain)
}

// subtreeEnd returns the offset just past the last descendant of the node at off.
// Children are stored depth first right after their parent, so the walk needs no
// bookkeeping beyond the children counts.
func (p *Pool) subtreeEnd(off int) int {
	pending := 1
	for pending > 0 {
		pending += p.childrenAt(off) - 1
		off += p.nodeSize(off)
	}
	return off
}

// childOffset returns the offset of child i of the node at off. With
// i == childrenAt(off) it returns the end of the subtree.
func (p *Pool) childOffset(off, i int) int {
	pos := off + p.nodeSize(off)
	for k := 0; k < i; k++ {
		pos = p.subtreeEnd(pos)
	}
	return pos
}

// parentOffset locates the node whose direct child sits at off.
func (p *Pool) parentOffset(off int) (int, bool) {
	root := 0
	for root < p.cursor {
		end := p.subtreeEnd(root)
		if off < end {
			break
		}
		root = end
	}
	if root == off || root >= p.cursor {
		return 0, false
	}
	parent := root
	for {
		child := parent + p.nodeSize(parent)
		n := p.childrenAt(parent)
		for k := 0; k < n; k++ {
			end := p.subtreeEnd(child)
			if off < end {
				break
			}
			child = end
		}
		if child == off {
			return parent, true
		}
		parent = child
	}
}

// countNodes returns the number of nodes in the subtree at off.
func (p *Pool) countNodes(off int) int {
	end := p.subtreeEnd(off)
	n := 0
	for pos := off; pos < end; pos += p.nodeSize(pos) {
		n++
	}
	return n
}
