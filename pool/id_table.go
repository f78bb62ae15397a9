package pool

import "github.com/cbehopkins/treepool"

// idTable maps identifier slots to the current arena offset of their node.
// It is the only place that knows where a node lives right now; every move in
// the arena ends with a reindex that rewrites the affected entries.
//
// Slots are handed out by scanning forward from a hint cursor, wrapping around,
// which keeps recently freed slots cold for a while and makes reuse of a stale
// slot less likely even before the generation check.
type idTable struct {
	offsets     []int32 // -1 marks a free slot
	generations []uint16
	live        int
	hint        int
}

func newIdTable(slots int) *idTable {
	t := &idTable{
		offsets:     make([]int32, slots),
		generations: make([]uint16, slots),
	}
	for i := range t.offsets {
		t.offsets[i] = -1
	}
	return t
}

// acquire reserves a free slot. The caller must set its offset.
func (t *idTable) acquire() (uint16, bool) {
	n := len(t.offsets)
	if t.live == n {
		return 0, false
	}
	for i := 0; i < n; i++ {
		slot := (t.hint + i) % n
		if t.offsets[slot] < 0 {
			t.offsets[slot] = 0
			t.live++
			t.hint = (slot + 1) % n
			return uint16(slot), true
		}
	}
	return 0, false
}

// release frees a slot and bumps its generation so outstanding ids go stale.
func (t *idTable) release(slot uint16) {
	if t.offsets[slot] < 0 {
		return
	}
	t.offsets[slot] = -1
	t.generations[slot]++
	t.live--
}

func (t *idTable) set(slot uint16, off int) {
	t.offsets[slot] = int32(off)
}

func (t *idTable) offset(slot uint16) int {
	return int(t.offsets[slot])
}

// resolve returns the offset of the node named by id, if it is still live.
func (t *idTable) resolve(id treepool.NodeId) (int, bool) {
	if id == treepool.NoNodeId {
		return 0, false
	}
	slot := int(id.Slot())
	if slot >= len(t.offsets) || t.offsets[slot] < 0 || t.generations[slot] != id.Generation() {
		return 0, false
	}
	return int(t.offsets[slot]), true
}

func (t *idTable) idOf(slot uint16) treepool.NodeId {
	return treepool.MakeNodeId(slot, t.generations[slot])
}

func (t *idTable) free() int {
	return len(t.offsets) - t.live
}

func (t *idTable) capacity() int {
	return len(t.offsets)
}

// forEach visits every live slot in slot order.
func (t *idTable) forEach(fn func(slot uint16, off int)) {
	for slot, off := range t.offsets {
		if off >= 0 {
			fn(uint16(slot), int(off))
		}
	}
}
