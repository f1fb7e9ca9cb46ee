package engine

import (
	"testing"
)

func TestTryAcquireFailsOnDeadSnapshot(t *testing.T) {
	retired := make(chan *Snapshot, 4)
	snap := &Snapshot{retired: retired}
	snap.refs.Store(1)
	// the reader has loaded the pointer but not yet acquired; the publisher
	// swaps the snapshot out and drops the last reference in between
	snap.release()
	if snap.tryAcquire() {
		t.Fatalf("acquire succeeded on a dead snapshot whose buffers may already be recycled")
	}
	// a failed acquire must not retire the snapshot a second time, or its
	// buffers would go back to the pool twice and alias two live slots
	if got := len(retired); got != 1 {
		t.Fatalf("snapshot retired %v times, want exactly 1", got)
	}
}

func TestAcquireReleasePairing(t *testing.T) {
	retired := make(chan *Snapshot, 4)
	snap := &Snapshot{retired: retired}
	snap.refs.Store(1)
	if !snap.tryAcquire() {
		t.Fatalf("acquire failed on a live snapshot")
	}
	snap.release() // reader done, publisher's reference still holds
	if got := len(retired); got != 0 {
		t.Fatalf("snapshot retired while the publisher still references it")
	}
	snap.release() // publisher swaps it out
	if got := len(retired); got != 1 {
		t.Fatalf("snapshot retired %v times, want 1", got)
	}
	if snap.tryAcquire() {
		t.Fatalf("retired snapshot could be resurrected")
	}
}
