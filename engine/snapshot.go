package engine

import (
	"sync/atomic"

	"github.com/patchgrid/patchgrid"
)

type (
	// Snapshot is an immutable, reference-counted view of the active graph:
	// module slots in evaluation order, the connection table and the elected
	// timeline master. The control thread builds a complete new snapshot for
	// every structural mutation and atomically swaps the one handle the
	// audio thread dereferences once per block; the audio thread never
	// observes a partially updated graph.
	//
	// The Go runtime keeps retired snapshots alive as long as a reader holds
	// them, so the reference count is not about memory safety: it decides
	// when a retired snapshot's block buffers may be recycled into the
	// buffer pool, and makes sure that happens off the audio thread.
	Snapshot struct {
		order []*slot       // evaluation (topological) order
		sinks []*slot       // terminal modules mixed into the host output
		byID  map[int]*slot // read-only after publish
		conns []patchgrid.Connection

		master   *slot // non-nil when a timeline master is elected and alive
		masterID int

		refs    atomic.Int32
		retired chan<- *Snapshot
	}

	// slot is one module instance inside a snapshot, with its preallocated
	// block buffers. Input and modulation slices alias the output buffers of
	// the connected source slots; evaluation order guarantees a producer has
	// run before any consumer reads. The events slice is audio-thread
	// scratch.
	slot struct {
		id       int
		mod      patchgrid.Module
		info     *patchgrid.ModuleInfo
		timeline patchgrid.TimelineProvider // nil when the module has no timeline capability

		out [][]float32
		in  [][]float32
		modIn [][]float32

		block   patchgrid.Block
		events  []patchgrid.ControlEvent
		faulted bool
	}
)

// maxPendingEvents bounds the per-slot control event scratch; events past the
// bound are dropped rather than allocated for.
const maxPendingEvents = 64

// tryAcquire takes a strong reference for the duration of one block, unless
// the snapshot is already dead. The reader's pointer load and its acquire are
// two separate steps: a publisher can swap the snapshot out and drop the last
// reference in between, at which point the block buffers may already be back
// in the pool. Resurrecting such a snapshot (0 -> 1) would retire it a second
// time and recycle every buffer twice, so an acquire from zero must fail and
// the reader must reload the current pointer instead.
func (s *Snapshot) tryAcquire() bool {
	for {
		refs := s.refs.Load()
		if refs == 0 {
			return false
		}
		if s.refs.CompareAndSwap(refs, refs+1) {
			return true
		}
	}
}

// release drops a reference. The publisher's reference is dropped when the
// snapshot is swapped out; whoever drops the last one hands the snapshot to
// the reclaim goroutine, non-blockingly, so buffer recycling never runs on
// the audio thread. If the reclaim queue is full the snapshot is simply left
// to the garbage collector.
func (s *Snapshot) release() {
	if s.refs.Add(-1) == 0 {
		select {
		case s.retired <- s:
		default:
		}
	}
}

// Modules returns the logical ids of the snapshot's modules in evaluation
// order. Meant for tests and diagnostics on the control side.
func (s *Snapshot) Modules() []int {
	ids := make([]int, len(s.order))
	for i, sl := range s.order {
		ids[i] = sl.id
	}
	return ids
}

// Connections returns a copy of the snapshot's connection table.
func (s *Snapshot) Connections() []patchgrid.Connection {
	conns := make([]patchgrid.Connection, len(s.conns))
	copy(conns, s.conns)
	return conns
}

// MasterID returns the elected timeline master, 0 for none.
func (s *Snapshot) MasterID() int {
	return s.masterID
}
