package pool

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/cbehopkins/treepool"
)

// Validate checks the arena layout, the identifier table and the retain counts
// and reports every violation found. A nil result means the pool is consistent.
func (p *Pool) Validate() error {
	var result *multierror.Error

	nodes := 0
	for off := 0; off < p.cursor; {
		size := p.nodeSize(off)
		if size < HeaderSize || off+size > p.cursor {
			result = multierror.Append(result, fmt.Errorf("node at %d: size %d overruns the arena", off, size))
			return result.ErrorOrNil()
		}
		slot := p.slotAt(off)
		if int(slot) >= p.ids.capacity() {
			result = multierror.Append(result, fmt.Errorf("node at %d: slot %d out of range", off, slot))
		} else if got := p.ids.offset(slot); got != off {
			result = multierror.Append(result, fmt.Errorf("node at %d: table says slot %d is at %d", off, slot, got))
		}
		if p.retainAt(off) < 1 {
			result = multierror.Append(result, fmt.Errorf("node %s at %d: retain count %d", p.ids.idOf(slot), off, p.retainAt(off)))
		}
		if p.isFailure(off) && p.childrenAt(off) != 0 {
			result = multierror.Append(result, fmt.Errorf("allocation failure %s at %d has children", p.ids.idOf(slot), off))
		}
		nodes++
		off += size
	}
	if nodes != p.ids.live {
		result = multierror.Append(result, fmt.Errorf("arena holds %d nodes, table has %d live slots", nodes, p.ids.live))
	}

	for root := 0; root < p.cursor; {
		end := p.subtreeEnd(root)
		if end > p.cursor {
			result = multierror.Append(result, fmt.Errorf("subtree at %d ends at %d past high-water %d", root, end, p.cursor))
			break
		}
		root = end
	}

	if off, ok := p.ids.resolve(p.failure); !ok || off != 0 || !p.isStatic(off) || p.typeAt(off) != treepool.TypeAllocationFailure {
		result = multierror.Append(result, fmt.Errorf("static allocation-failure node missing from offset 0"))
	}
	return result.ErrorOrNil()
}
