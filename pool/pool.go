package pool

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/cbehopkins/treepool"
)

// MaxCapacity is the largest arena a pool will manage.
const MaxCapacity = 1 << 24

// Pool owns one fixed-capacity arena of tree nodes and the identifier table that
// locates them. The arena is a forest: root subtrees are laid out back to back
// from offset 0 up to the high-water mark, and every subtree occupies one
// contiguous byte range.
//
// A Pool is not safe for concurrent use. All References into a pool must be used
// from the goroutine that owns it.
type Pool struct {
	buf    []byte
	cursor int // high-water mark
	limit  int // usable bytes, <= len(buf)

	ids *idTable

	failure treepool.NodeId // static allocation-failure node

	logger     *slog.Logger
	onAllocate func(treepool.NodeId, treepool.Offset, int)

	allocationFailures int
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxNodes bounds the identifier table. It defaults to one slot per header
// that fits in the arena.
func WithMaxNodes(n int) Option {
	return func(p *Pool) {
		p.ids = newIdTable(n)
	}
}

// WithLogger sets the logger used for exhaustion and degradation events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// WithOnAllocate registers a callback invoked after each node allocation.
func WithOnAllocate(fn func(id treepool.NodeId, offset treepool.Offset, size int)) Option {
	return func(p *Pool) {
		p.onAllocate = fn
	}
}

// New creates a pool with an arena of capacity bytes.
func New(capacity int, opts ...Option) (*Pool, error) {
	if capacity < HeaderSize || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrCapacity, capacity, HeaderSize, MaxCapacity)
	}
	p := &Pool{
		buf:    make([]byte, capacity),
		limit:  capacity,
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ids == nil {
		p.ids = newIdTable(min(capacity/HeaderSize, treepool.MaxSlots))
	}
	if n := p.ids.capacity(); n < 1 || n > treepool.MaxSlots {
		return nil, fmt.Errorf("%w: max nodes %d not in [1, %d]", ErrCapacity, n, treepool.MaxSlots)
	}

	slot, off, ok := p.allocate(treepool.TypeAllocationFailure, nil)
	if !ok {
		return nil, fmt.Errorf("%w: no room for the allocation-failure node", ErrCapacity)
	}
	p.buf[off+offFlags] |= flagStatic
	p.setRetain(off, 1)
	p.failure = p.ids.idOf(slot)
	return p, nil
}

// Create allocates a childless node and returns an owning Reference to it.
// When the arena or the identifier table is exhausted the Reference names the
// allocation-failure node instead.
func (p *Pool) Create(typ treepool.NodeType, payload []byte) Reference {
	if typ == treepool.TypeAllocationFailure {
		return p.AllocationFailure()
	}
	slot, off, ok := p.allocate(typ, payload)
	if !ok {
		return p.AllocationFailure()
	}
	p.setRetain(off, 1)
	return Reference{pool: p, id: p.ids.idOf(slot)}
}

// AllocationFailure returns a Reference to the pool's static allocation-failure
// node. Obtaining it never allocates.
func (p *Pool) AllocationFailure() Reference {
	return Reference{pool: p, id: p.failure}
}

// Undefined returns a Reference that names no node.
func (p *Pool) Undefined() Reference {
	return Reference{pool: p, id: treepool.NoNodeId}
}

// allocate appends a node at the high-water mark. The new node has no
// children and a zero retain count.
func (p *Pool) allocate(typ treepool.NodeType, payload []byte) (uint16, int, bool) {
	size := HeaderSize + len(payload)
	if len(payload) > MaxPayload || p.cursor+size > p.limit {
		p.exhausted(size)
		return 0, 0, false
	}
	slot, ok := p.ids.acquire()
	if !ok {
		p.exhausted(size)
		return 0, 0, false
	}
	off := p.cursor
	p.writeHeader(off, typ, len(payload), slot, 0, 0)
	copy(p.buf[off+HeaderSize:], payload)
	p.ids.set(slot, off)
	p.cursor += size
	if p.onAllocate != nil {
		p.onAllocate(p.ids.idOf(slot), treepool.Offset(off), size)
	}
	return slot, off, true
}

func (p *Pool) exhausted(requested int) {
	p.allocationFailures++
	p.logger.Warn("allocation failed",
		"requested", requested,
		"used", p.cursor,
		"limit", p.limit,
		"live_nodes", p.ids.live)
}

// move relocates the byte range [src, src+n) so that it starts where dst was
// before the call, shifting the bytes in between, and returns the range's new
// start. dst must be a node boundary outside (src, src+n). Every identifier in
// the shifted region is rewritten before returning.
func (p *Pool) move(dst, src, n int) int {
	if n == 0 || dst == src || dst == src+n {
		return src
	}
	if dst < src {
		rotateLeft(p.buf[dst:src+n], src-dst)
		p.reindex(dst, src+n)
		return dst
	}
	rotateLeft(p.buf[src:dst], n)
	p.reindex(src, dst)
	return dst - n
}

// excise removes [off, off+n) and closes the gap.
func (p *Pool) excise(off, n int) {
	copy(p.buf[off:], p.buf[off+n:p.cursor])
	p.cursor -= n
	clear(p.buf[p.cursor : p.cursor+n])
	p.reindex(off, p.cursor)
}

// reindex rewrites the table entry of every node whose header lies in [from, to).
func (p *Pool) reindex(from, to int) {
	for off := from; off < to; off += p.nodeSize(off) {
		p.ids.set(p.slotAt(off), off)
	}
}

// rotateLeft rotates s left by k bytes in place.
func rotateLeft(s []byte, k int) {
	reverse(s[:k])
	reverse(s[k:])
	reverse(s)
}

func reverse(s []byte) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func (p *Pool) retain(slot uint16) {
	off := p.ids.offset(slot)
	if p.isStatic(off) {
		return
	}
	c := p.retainAt(off)
	if c == maxRetain {
		violation(ErrRetainOverflow, "node %s", p.ids.idOf(slot))
	}
	p.setRetain(off, c+1)
}

// release drops one ownership unit and destroys the node when none remain.
func (p *Pool) release(slot uint16) {
	off := p.ids.offset(slot)
	if p.isStatic(off) {
		return
	}
	c := p.retainAt(off) - 1
	p.setRetain(off, c)
	if c == 0 {
		p.destroy(slot)
	}
}

// destroy reclaims an unowned root node. Each child is detached to the end of
// the arena and released first, so a child still held elsewhere survives as a
// root of its own.
func (p *Pool) destroy(slot uint16) {
	for {
		off := p.ids.offset(slot)
		if p.childrenAt(off) == 0 {
			break
		}
		child := p.slotAt(off + p.nodeSize(off))
		p.detach(slot, child)
		p.release(child)
	}
	off := p.ids.offset(slot)
	p.ids.release(slot)
	p.excise(off, p.nodeSize(off))
}

// detach moves child's subtree out of parent to the end of the arena and
// decrements parent's children count. The parent edge's ownership unit is left
// for the caller to transfer or release.
func (p *Pool) detach(parent, child uint16) {
	off := p.ids.offset(child)
	p.move(p.cursor, off, p.subtreeEnd(off)-off)
	poff := p.ids.offset(parent)
	p.setChildren(poff, p.childrenAt(poff)-1)
}

// degrade turns the node in slot into an allocation-failure node in place and
// propagates the failure to its ancestors. It never allocates: children are
// released, the payload is excised and the identifier is kept so every
// outstanding Reference now observes the failure.
func (p *Pool) degrade(slot uint16) {
	for {
		off := p.ids.offset(slot)
		if p.typeAt(off) == treepool.TypeAllocationFailure {
			return
		}
		for p.childrenAt(p.ids.offset(slot)) > 0 {
			off = p.ids.offset(slot)
			child := p.slotAt(off + p.nodeSize(off))
			p.detach(slot, child)
			p.release(child)
		}
		off = p.ids.offset(slot)
		p.setType(off, treepool.TypeAllocationFailure)
		if payload := p.nodeSize(off) - HeaderSize; payload > 0 {
			p.setNodeSize(off, HeaderSize)
			p.excise(off+HeaderSize, payload)
		}
		p.logger.Debug("node degraded to allocation failure", "node", p.ids.idOf(slot))

		parent, ok := p.parentOffset(p.ids.offset(slot))
		if !ok {
			return
		}
		slot = p.slotAt(parent)
	}
}

// SetLimit changes the number of usable arena bytes. It is clamped to the bytes
// currently in use and to the arena capacity.
func (p *Pool) SetLimit(n int) {
	p.limit = max(p.cursor, min(n, len(p.buf)))
}

// Stats describes arena and identifier table usage.
type Stats struct {
	Capacity           int
	Limit              int
	Used               int
	LiveNodes          int
	MaxNodes           int
	AllocationFailures int
}

// Free returns the bytes still available for allocation.
func (s Stats) Free() int {
	return s.Limit - s.Used
}

// Stats returns a snapshot of pool usage. The static allocation-failure node is
// counted as live.
func (p *Pool) Stats() Stats {
	return Stats{
		Capacity:           len(p.buf),
		Limit:              p.limit,
		Used:               p.cursor,
		LiveNodes:          p.ids.live,
		MaxNodes:           p.ids.capacity(),
		AllocationFailures: p.allocationFailures,
	}
}

// ForEachNode visits every node in arena order, roots and descendants alike.
func (p *Pool) ForEachNode(fn func(id treepool.NodeId, typ treepool.NodeType)) {
	for off := 0; off < p.cursor; off += p.nodeSize(off) {
		fn(p.ids.idOf(p.slotAt(off)), p.typeAt(off))
	}
}
