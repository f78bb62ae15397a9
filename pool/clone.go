package pool

import (
	"encoding/binary"
	"fmt"

	"github.com/cbehopkins/treepool"
)

// TreeClone deep-copies r's subtree. Every copied node gets a fresh identifier
// and a single ownership unit; the copy shares nothing with the source. If the
// arena or the identifier table cannot hold the whole copy, nothing is written
// and the allocation-failure Reference is returned.
func (r Reference) TreeClone() Reference {
	p := r.pool
	off := r.offset()
	if p.isFailure(off) {
		return p.AllocationFailure()
	}
	size := p.subtreeEnd(off) - off
	if p.cursor+size > p.limit || p.ids.free() < p.countNodes(off) {
		p.exhausted(size)
		return p.AllocationFailure()
	}
	dst := p.cursor
	copy(p.buf[dst:dst+size], p.buf[off:off+size])
	p.cursor += size
	for pos := dst; pos < dst+size; pos += p.nodeSize(pos) {
		slot, _ := p.ids.acquire()
		p.setSlot(pos, slot)
		p.buf[pos+offFlags] = 0
		p.setRetain(pos, 1)
		p.ids.set(slot, pos)
		if p.onAllocate != nil {
			p.onAllocate(p.ids.idOf(slot), treepool.Offset(pos), p.nodeSize(pos))
		}
	}
	return Reference{pool: p, id: p.ids.idOf(p.slotAt(dst))}
}

// Export serializes r's subtree depth first. Each node is written as
//
//	type u8 | children uvarint | payload length uvarint | payload
//
// Identifiers and retain counts are not part of the encoding.
func (p *Pool) Export(r Reference) []byte {
	off := r.offset()
	end := p.subtreeEnd(off)
	out := make([]byte, 0, end-off)
	for pos := off; pos < end; pos += p.nodeSize(pos) {
		payload := p.payloadAt(pos)
		out = append(out, byte(p.typeAt(pos)))
		out = binary.AppendUvarint(out, uint64(p.childrenAt(pos)))
		out = binary.AppendUvarint(out, uint64(len(payload)))
		out = append(out, payload...)
	}
	return out
}

type encodedNode struct {
	typ      treepool.NodeType
	children int
	payload  []byte
}

func decodeTree(data []byte) ([]encodedNode, int, error) {
	var nodes []encodedNode
	size := 0
	pending := 1
	for pending > 0 {
		if len(data) == 0 {
			return nil, 0, fmt.Errorf("%w: truncated after %d nodes", ErrMalformedTree, len(nodes))
		}
		typ := treepool.NodeType(data[0])
		data = data[1:]
		children, n := binary.Uvarint(data)
		if n <= 0 || children > maxChildren {
			return nil, 0, fmt.Errorf("%w: bad children count at node %d", ErrMalformedTree, len(nodes))
		}
		data = data[n:]
		plen, n := binary.Uvarint(data)
		if n <= 0 || plen > MaxPayload || uint64(len(data)-n) < plen {
			return nil, 0, fmt.Errorf("%w: bad payload at node %d", ErrMalformedTree, len(nodes))
		}
		data = data[n:]
		nodes = append(nodes, encodedNode{typ: typ, children: int(children), payload: data[:plen]})
		data = data[plen:]
		size += HeaderSize + int(plen)
		pending += int(children) - 1
	}
	if len(data) != 0 {
		return nil, 0, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTree, len(data))
	}
	return nodes, size, nil
}

// Import rebuilds a subtree produced by Export and returns an owning Reference
// to its root. Malformed input is an error; lack of space is not, and yields
// the allocation-failure Reference.
func (p *Pool) Import(data []byte) (Reference, error) {
	nodes, size, err := decodeTree(data)
	if err != nil {
		return p.Undefined(), err
	}
	for _, n := range nodes {
		if n.typ == treepool.TypeAllocationFailure {
			return p.AllocationFailure(), nil
		}
	}
	if p.cursor+size > p.limit || p.ids.free() < len(nodes) {
		p.exhausted(size)
		return p.AllocationFailure(), nil
	}
	root := p.cursor
	for _, n := range nodes {
		slot, _ := p.ids.acquire()
		off := p.cursor
		p.writeHeader(off, n.typ, len(n.payload), slot, n.children, 1)
		copy(p.buf[off+HeaderSize:], n.payload)
		p.ids.set(slot, off)
		p.cursor += HeaderSize + len(n.payload)
	}
	return Reference{pool: p, id: p.ids.idOf(p.slotAt(root))}, nil
}
