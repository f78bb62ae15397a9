package treepool

import "fmt"

// NodeId names a node independently of where its bytes currently sit in the
// arena. The low 16 bits select a slot in the identifier table, the high 16 bits
// carry the slot generation at the time the node was created.
type NodeId uint32

// NoNodeId is the identifier held by an undefined Reference.
const NoNodeId = NodeId(0xFFFFFFFF)

// MaxSlots is the largest identifier table a pool may be built with.
// Slot 0xFFFF is never handed out so that NoNodeId cannot collide with a live id.
const MaxSlots = 0xFFFF

// MakeNodeId packs a slot and a generation into a NodeId.
func MakeNodeId(slot, generation uint16) NodeId {
	return NodeId(uint32(generation)<<16 | uint32(slot))
}

// Slot returns the identifier table index.
func (id NodeId) Slot() uint16 {
	return uint16(id)
}

// Generation returns the slot generation the id was minted with.
func (id NodeId) Generation() uint16 {
	return uint16(id >> 16)
}

func (id NodeId) String() string {
	if id == NoNodeId {
		return "NoNodeId"
	}
	return fmt.Sprintf("%d#%d", id.Slot(), id.Generation())
}

// Offset represents a byte offset within the arena.
type Offset int

// NodeType discriminates node variants. The pool only knows about
// TypeAllocationFailure; every other value belongs to the consumer.
type NodeType uint8

// TypeAllocationFailure marks the node substituted wherever an allocation could
// not be satisfied.
const TypeAllocationFailure = NodeType(0)
