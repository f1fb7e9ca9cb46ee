package mods

import (
	"math"

	"github.com/patchgrid/patchgrid"
)

// LFO is a low frequency control voltage source. Its output is unipolar
// [0,1] so that wired to an additive target it sweeps symmetrically around
// the base value, and wired to an absolute target it covers the full range.
type LFO struct {
	sampleRate int

	rate  float32 // Hz
	shape float32

	phase float64
}

var lfoInfo = &patchgrid.ModuleInfo{
	Type:        "lfo",
	DisplayName: "LFO",
	Outputs: []patchgrid.Pin{
		{Name: "cv", Channel: 0, Kind: patchgrid.KindControlVoltage},
	},
	Params: []patchgrid.Param{
		{Name: "rate", Min: 0.01, Max: 40, Default: 2, Modulatable: true, Policy: patchgrid.ModAbsolute},
		{Name: "shape", Min: shapeSine, Max: shapePulse, Default: shapeSine},
	},
}

func init() {
	patchgrid.Register(lfoInfo, func() patchgrid.Module {
		return &LFO{
			rate:  lfoInfo.Params[0].Default,
			shape: lfoInfo.Params[1].Default,
		}
	})
}

func (l *LFO) Info() *patchgrid.ModuleInfo { return lfoInfo }

func (l *LFO) Prepare(sampleRate, blockSize int) error {
	l.sampleRate = sampleRate
	return nil
}

func (l *LFO) SetParam(name string, value float32) error {
	return setParam(lfoInfo, name, value, map[string]*float32{
		"rate":  &l.rate,
		"shape": &l.shape,
	})
}

func (l *LFO) ParameterRouting(param string) (int, bool) {
	return lfoInfo.ModChannel(param)
}

func (l *LFO) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	rate := modulated(lfoInfo, block, "rate", l.rate)
	out := block.Out[0]
	step := float64(rate) / float64(l.sampleRate)
	shape := int(l.shape)
	for i := range out {
		out[i] = waveform(l.phase, shape)*0.5 + 0.5
		l.phase += step
		l.phase -= math.Floor(l.phase)
	}
}
