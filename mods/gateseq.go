package mods

import (
	"github.com/patchgrid/patchgrid"
)

// GateSeq emits a gate signal from a 16 step bit pattern, clocked by the
// global transport. Step k of the pattern is bit 15-k of the pattern
// parameter, so the pattern reads left to right when written in binary.
// Division is the length of one step in beats.
type GateSeq struct {
	pattern  float32
	division float32
	length   float32
}

const gateSeqSteps = 16

var gateSeqInfo = &patchgrid.ModuleInfo{
	Type:        "gateseq",
	DisplayName: "Gate Sequencer",
	Outputs: []patchgrid.Pin{
		{Name: "gate", Channel: 0, Kind: patchgrid.KindGate},
	},
	Params: []patchgrid.Param{
		{Name: "pattern", Min: 0, Max: 65535, Default: 0b1000100010001000},
		{Name: "division", Min: 0.0625, Max: 4, Default: 0.25},
		{Name: "length", Min: 1, Max: gateSeqSteps, Default: gateSeqSteps},
	},
}

func init() {
	patchgrid.Register(gateSeqInfo, func() patchgrid.Module {
		return &GateSeq{
			pattern:  gateSeqInfo.Params[0].Default,
			division: gateSeqInfo.Params[1].Default,
			length:   gateSeqInfo.Params[2].Default,
		}
	})
}

func (g *GateSeq) Info() *patchgrid.ModuleInfo             { return gateSeqInfo }
func (g *GateSeq) Prepare(sampleRate, blockSize int) error { return nil }

func (g *GateSeq) SetParam(name string, value float32) error {
	return setParam(gateSeqInfo, name, value, map[string]*float32{
		"pattern":  &g.pattern,
		"division": &g.division,
		"length":   &g.length,
	})
}

func (g *GateSeq) ParameterRouting(param string) (int, bool) {
	return gateSeqInfo.ModChannel(param)
}

func (g *GateSeq) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	if !block.Transport.Playing {
		return
	}
	length := int(g.length)
	if length < 1 {
		length = 1
	}
	step := int(block.Transport.SongPositionBeats/float64(g.division)) % length
	if step < 0 {
		step += length
	}
	mask := uint16(g.pattern)
	var level float32
	if mask&(1<<(gateSeqSteps-1-step)) != 0 {
		level = 1
	}
	out := block.Out[0]
	for i := range out {
		out[i] = level
	}
}
