package mods

import (
	"github.com/patchgrid/patchgrid"
)

// MIDIIn converts the note events the engine delivers into control voltages:
// a gate, the note number scaled to [0,1] and the velocity scaled to [0,1].
// Events are sample-accurate within the block; the gate edge lands on the
// event's frame.
type MIDIIn struct {
	gate     float32
	note     float32
	velocity float32
}

var midiInInfo = &patchgrid.ModuleInfo{
	Type:        "midiin",
	DisplayName: "MIDI In",
	Outputs: []patchgrid.Pin{
		{Name: "gate", Channel: 0, Kind: patchgrid.KindGate},
		{Name: "note", Channel: 1, Kind: patchgrid.KindControlVoltage},
		{Name: "velocity", Channel: 2, Kind: patchgrid.KindControlVoltage},
	},
}

func init() {
	patchgrid.Register(midiInInfo, func() patchgrid.Module {
		return &MIDIIn{}
	})
}

func (m *MIDIIn) Info() *patchgrid.ModuleInfo             { return midiInInfo }
func (m *MIDIIn) Prepare(sampleRate, blockSize int) error { return nil }

func (m *MIDIIn) SetParam(name string, value float32) error {
	return setParam(midiInInfo, name, value, nil)
}

func (m *MIDIIn) ParameterRouting(param string) (int, bool) {
	return midiInInfo.ModChannel(param)
}

func (m *MIDIIn) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	gate, note, vel := block.Out[0], block.Out[1], block.Out[2]
	frame := 0
	for _, ev := range events {
		end := ev.Frame
		if end > len(gate) {
			end = len(gate)
		}
		for ; frame < end; frame++ {
			gate[frame], note[frame], vel[frame] = m.gate, m.note, m.velocity
		}
		if ev.On {
			m.gate = 1
			m.note = float32(ev.Note) / 127
			m.velocity = float32(ev.Velocity) / 127
		} else {
			m.gate = 0
		}
	}
	for ; frame < len(gate); frame++ {
		gate[frame], note[frame], vel[frame] = m.gate, m.note, m.velocity
	}
}
