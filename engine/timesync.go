package engine

// syncTransport refreshes the global transport state for the coming block,
// before any module runs. When a timeline master is alive its atomics are
// the authority for position and tempo: they are advisory and re-read every
// block with no ordering requirements, so staleness is tolerated. Everything
// derived from the master's cadence is recomputed fresh every block; caching
// a derived tempo is exactly the staleness bug this function exists to
// avoid.
//
// The playing flag stays with the host even while a master is elected. A
// master that only runs while the transport plays (a clip, say) would
// otherwise deadlock against itself: it waits for Playing, and Playing
// waits for it.
//
// Modules see the refreshed state before their own process step, so a module
// reacting to a transport change does it one block late. That latency is
// accepted; the evaluation order is never reshuffled to remove it.
func (e *Engine) syncTransport(snap *Snapshot, frames int) {
	dt := float64(frames) / float64(e.sampleRate)
	t := &e.transport
	if snap != nil && snap.master != nil {
		pos := snap.master.timeline.TimelinePosition()
		dur := snap.master.timeline.TimelineDuration()
		if pos < 0 {
			pos = 0
		}
		if dur > 0 && pos > dur {
			pos = dur
		}
		t.TempoBPM = e.deriveTempo(pos, dt)
		t.Playing = e.hostPlaying
		t.PositionSeconds = pos
		t.SongPositionBeats = t.TempoBPM / 60 * pos
		t.MasterID = snap.masterID
		e.prevMasterPos = pos
		e.haveMasterPos = true
		return
	}
	e.haveMasterPos = false
	t.TempoBPM = e.baseBPM
	if t.MasterID != 0 {
		// the elected master vanished from the snapshot: hold the last known
		// position for this block, fall back to the internal clock and tell
		// the control layer so any UI bound to the selection resets
		lost := t.MasterID
		t.MasterID = 0
		TrySend(e.broker.ToModel, MsgToModel{Data: TimelineMasterLostMsg{ID: lost}})
		return
	}
	if t.Playing {
		t.PositionSeconds += dt
		t.SongPositionBeats += t.TempoBPM / 60 * dt
	}
}

// deriveTempo recomputes the effective tempo from the master's reported
// cadence: the host tempo scaled by how fast the master's position actually
// moves. The rate is re-derived from scratch every block from the previous
// block's reading, never cached across structural changes.
func (e *Engine) deriveTempo(pos, dt float64) float64 {
	if !e.haveMasterPos || dt <= 0 {
		return e.baseBPM
	}
	rate := (pos - e.prevMasterPos) / dt
	if rate < 0 {
		// the master sought backwards; rate is meaningless for this block
		return e.baseBPM
	}
	if rate > maxTimelineRate {
		rate = maxTimelineRate
	}
	if rate == 0 {
		return e.baseBPM
	}
	return e.baseBPM * rate
}

// maxTimelineRate bounds the playback-speed factor derived from a master's
// position delta, so a master seeking forward does not report an absurd
// tempo for one block.
const maxTimelineRate = 4
