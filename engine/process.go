package engine

import (
	"fmt"

	"github.com/patchgrid/patchgrid"
)

// ProcessBlock is the audio callback: it renders one block of the graph into
// the host's stereo buffer. It never blocks on a control-thread lock and
// never allocates on the happy path; the snapshot loaded at block start is
// referenced for the whole block, so every module observes the same graph
// and the same transport state.
//
// len(out) must equal the engine block size.
func (e *Engine) ProcessBlock(out patchgrid.AudioBuffer) {
	var snap *Snapshot
	for {
		// the load and the acquire race against a publish: if the publisher
		// retired this snapshot in between, reload and try the new one
		snap = e.current.Load()
		if snap == nil || snap.tryAcquire() {
			break
		}
	}
	if snap != nil {
		defer snap.release()
	}
	e.processMessages(snap)
	e.syncTransport(snap, len(out))
	for i := range out {
		out[i] = [2]float32{}
	}
	if snap == nil {
		return
	}
	for _, s := range snap.order {
		for _, buf := range s.out {
			clear(buf)
		}
		s.block.Frames = len(out)
		s.block.Transport = e.transport
		e.runModule(s)
		s.events = s.events[:0]
	}
	for _, s := range snap.sinks {
		l, r := s.out[0], s.out[1]
		for i := range out {
			out[i][0] += l[i]
			out[i][1] += r[i]
		}
	}
	bufPtr := e.broker.GetAudioBuffer()
	*bufPtr = append(*bufPtr, out...)
	if len(*bufPtr) == 0 || !TrySend(e.broker.ToLevel, MsgToLevel{Data: bufPtr}) {
		e.broker.PutAudioBuffer(bufPtr)
	}
	TrySend(e.broker.ToModel, MsgToModel{HasTransport: true, Transport: e.transport})
}

// runModule runs one module's process step, isolating faults: a panicking
// module gets silence on its outputs for the rest of the block and the rest
// of the graph keeps going.
func (e *Engine) runModule(s *slot) {
	defer func() {
		if err := recover(); err != nil {
			for _, buf := range s.out {
				clear(buf)
			}
			// alert on the transition only, so a module faulting on every
			// block does not flood the control layer
			if !s.faulted {
				TrySend(e.broker.ToModel, MsgToModel{Data: Alert{
					Name:     "ModuleFault",
					Priority: Error,
					Message:  fmt.Sprintf("module %v (%v) faulted: %v", s.id, s.info.Type, err),
					Duration: defaultAlertDuration,
				}})
			}
			s.faulted = true
		}
	}()
	s.mod.Process(&s.block, s.events)
	s.faulted = false
}

// processMessages drains the control command channel at block start. All
// receives are non-blocking; a command referencing a module that is not in
// the current snapshot is dropped (it raced a removal).
func (e *Engine) processMessages(snap *Snapshot) {
loop:
	for {
		select {
		case msg := <-e.broker.ToAudio:
			switch m := msg.(type) {
			case playMsg:
				e.hostPlaying = true
				e.transport.Playing = true
			case stopMsg:
				e.hostPlaying = false
				e.transport.Playing = false
			case seekMsg:
				e.transport.PositionSeconds = m.seconds
				e.transport.SongPositionBeats = e.transport.TempoBPM / 60 * m.seconds
			case bpmMsg:
				e.baseBPM = m.bpm
			case masterMsg:
				e.transport.MasterID = m.id
			case paramMsg:
				if snap == nil {
					break
				}
				if s, ok := snap.byID[m.id]; ok {
					s.mod.SetParam(m.name, m.value)
				}
			case noteMsg:
				if snap == nil {
					break
				}
				if s, ok := snap.byID[m.id]; ok && len(s.events) < maxPendingEvents {
					s.events = append(s.events, m.event)
				}
			default:
				// ignore unknown messages
			}
		default:
			break loop
		}
	}
}
