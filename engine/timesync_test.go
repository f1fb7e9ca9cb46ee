package engine

import (
	"testing"

	"github.com/patchgrid/patchgrid"
)

func masterOf(e *Engine, id int) *fakeMaster {
	return e.mods[id].mod.(*fakeMaster)
}

func TestMasterDrivesTransport(t *testing.T) {
	e, _ := newTestEngine()
	defer e.Close()
	id := mustAdd(t, e, "fakemaster")
	if err := e.SetTimelineMaster(id); err != nil {
		t.Fatalf("SetTimelineMaster failed: %v", err)
	}
	master := masterOf(e, id)
	master.duration = 10
	master.active = true
	master.pos = 1.5
	e.Play()
	out := make(patchgrid.AudioBuffer, e.BlockSize())
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 1.5 {
		t.Errorf("position = %v, want the master's 1.5", e.transport.PositionSeconds)
	}
	if !e.transport.Playing {
		t.Errorf("transport not playing after Play with a master elected")
	}
	if e.transport.MasterID != id {
		t.Errorf("transport master id = %v, want %v", e.transport.MasterID, id)
	}

	// the playing flag follows the host, not the master's own activity
	e.Stop()
	e.ProcessBlock(out)
	if e.transport.Playing {
		t.Errorf("transport still playing after Stop while the master reports active")
	}
}

func TestMasterGatedOnTransportStarts(t *testing.T) {
	e, _ := newTestEngine()
	defer e.Close()
	id := mustAdd(t, e, "clockmaster")
	if err := e.SetTimelineMaster(id); err != nil {
		t.Fatalf("SetTimelineMaster failed: %v", err)
	}
	out := make(patchgrid.AudioBuffer, e.BlockSize())

	// stopped: a master that only runs while the transport plays must not
	// pin the transport at zero forever
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 0 {
		t.Fatalf("position moved to %v while stopped", e.transport.PositionSeconds)
	}

	e.Play()
	for i := 0; i < 100; i++ {
		e.ProcessBlock(out)
	}
	if e.transport.PositionSeconds <= 0 {
		t.Fatalf("position still %v after 100 playing blocks", e.transport.PositionSeconds)
	}

	e.Stop()
	e.ProcessBlock(out)
	held := e.transport.PositionSeconds
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != held {
		t.Errorf("position moved from %v to %v after Stop", held, e.transport.PositionSeconds)
	}
}

func TestClearedElectionIsNotReportedLost(t *testing.T) {
	e, broker := newTestEngine()
	defer e.Close()
	id := mustAdd(t, e, "fakemaster")
	if err := e.SetTimelineMaster(id); err != nil {
		t.Fatalf("SetTimelineMaster failed: %v", err)
	}
	out := make(patchgrid.AudioBuffer, e.BlockSize())
	e.ProcessBlock(out)
	if err := e.SetTimelineMaster(0); err != nil {
		t.Fatalf("SetTimelineMaster(0) failed: %v", err)
	}
	drainToModel(broker)
	e.ProcessBlock(out)
	for _, msg := range drainToModel(broker) {
		if _, ok := msg.Data.(TimelineMasterLostMsg); ok {
			t.Fatalf("deliberate SetTimelineMaster(0) reported the master as lost")
		}
	}
	if e.transport.MasterID != 0 {
		t.Errorf("transport master id = %v, want 0", e.transport.MasterID)
	}
}

func TestMasterPositionClampedToDuration(t *testing.T) {
	e, _ := newTestEngine()
	defer e.Close()
	id := mustAdd(t, e, "fakemaster")
	if err := e.SetTimelineMaster(id); err != nil {
		t.Fatalf("SetTimelineMaster failed: %v", err)
	}
	master := masterOf(e, id)
	master.duration = 10
	master.pos = 25
	out := make(patchgrid.AudioBuffer, e.BlockSize())
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 10 {
		t.Errorf("position = %v, want clamped to duration 10", e.transport.PositionSeconds)
	}
	master.pos = -3
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 0 {
		t.Errorf("position = %v, want clamped to 0", e.transport.PositionSeconds)
	}
}

func TestTempoDerivedFreshFromCadence(t *testing.T) {
	e, _ := newTestEngine()
	defer e.Close()
	id := mustAdd(t, e, "fakemaster")
	if err := e.SetTimelineMaster(id); err != nil {
		t.Fatalf("SetTimelineMaster failed: %v", err)
	}
	master := masterOf(e, id)
	master.duration = 1000
	master.active = true
	dt := float64(e.BlockSize()) / float64(e.SampleRate())
	out := make(patchgrid.AudioBuffer, e.BlockSize())

	// first block has no previous reading, so the base tempo holds
	master.pos = 1
	e.ProcessBlock(out)
	if e.transport.TempoBPM != patchgrid.DefaultTempoBPM {
		t.Errorf("first block tempo = %v, want base %v", e.transport.TempoBPM, patchgrid.DefaultTempoBPM)
	}

	// master advancing at twice real time doubles the tempo
	master.pos = 1 + 2*dt
	e.ProcessBlock(out)
	if got, want := e.transport.TempoBPM, 2*patchgrid.DefaultTempoBPM; !closeEnough(got, want) {
		t.Errorf("tempo = %v, want %v", got, want)
	}

	// a forward seek is capped, not trusted verbatim
	master.pos = 500
	e.ProcessBlock(out)
	if got, want := e.transport.TempoBPM, 4*patchgrid.DefaultTempoBPM; !closeEnough(got, want) {
		t.Errorf("tempo after a forward jump = %v, want capped %v", got, want)
	}

	// a backward seek falls back to the base tempo for one block
	master.pos = 1
	e.ProcessBlock(out)
	if got := e.transport.TempoBPM; got != patchgrid.DefaultTempoBPM {
		t.Errorf("tempo after a backward seek = %v, want base %v", got, patchgrid.DefaultTempoBPM)
	}

	// a paused master reports the base tempo, not zero
	e.ProcessBlock(out)
	if got := e.transport.TempoBPM; got != patchgrid.DefaultTempoBPM {
		t.Errorf("tempo while master paused = %v, want base %v", got, patchgrid.DefaultTempoBPM)
	}
}

func TestMasterLossHoldsPositionOneBlock(t *testing.T) {
	e, broker := newTestEngine()
	defer e.Close()
	id := mustAdd(t, e, "fakemaster")
	if err := e.SetTimelineMaster(id); err != nil {
		t.Fatalf("SetTimelineMaster failed: %v", err)
	}
	master := masterOf(e, id)
	master.duration = 100
	master.active = true
	master.pos = 5
	e.Play()
	out := make(patchgrid.AudioBuffer, e.BlockSize())
	e.ProcessBlock(out)
	if err := e.RemoveModule(id); err != nil {
		t.Fatalf("RemoveModule failed: %v", err)
	}
	drainToModel(broker)

	// first block after the loss: position held, selection cleared, control
	// layer notified
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 5 {
		t.Errorf("position after master loss = %v, want held at 5", e.transport.PositionSeconds)
	}
	if e.transport.MasterID != 0 {
		t.Errorf("master id not cleared after loss")
	}
	var lost *TimelineMasterLostMsg
	for _, msg := range drainToModel(broker) {
		if m, ok := msg.Data.(TimelineMasterLostMsg); ok {
			lost = &m
		}
	}
	if lost == nil {
		t.Fatalf("no TimelineMasterLostMsg after master loss")
	}
	if lost.ID != id {
		t.Errorf("lost master id = %v, want %v", lost.ID, id)
	}

	// second block: the internal clock takes over from the held position
	dt := float64(e.BlockSize()) / float64(e.SampleRate())
	e.ProcessBlock(out)
	if got, want := e.transport.PositionSeconds, 5+dt; !closeEnough(got, want) {
		t.Errorf("position = %v, want internal clock at %v", got, want)
	}
}

func TestSeekWhileIdleIsNoOp(t *testing.T) {
	e, _ := newTestEngine()
	defer e.Close()
	e.Seek(5)
	out := make(patchgrid.AudioBuffer, e.BlockSize())
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 0 {
		t.Errorf("seek while Idle moved the position to %v", e.transport.PositionSeconds)
	}
}

func TestSeekClampsNegative(t *testing.T) {
	e, _ := newTestEngine()
	defer e.Close()
	mustAdd(t, e, "gen")
	e.Seek(-3)
	out := make(patchgrid.AudioBuffer, e.BlockSize())
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 0 {
		t.Errorf("negative seek landed at %v, want 0", e.transport.PositionSeconds)
	}
	e.Seek(2)
	e.ProcessBlock(out)
	if e.transport.PositionSeconds != 2 {
		t.Errorf("seek landed at %v, want 2", e.transport.PositionSeconds)
	}
}

func closeEnough(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
