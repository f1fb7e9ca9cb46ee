// Package mods contains the built-in processing modules. Each module type
// registers a factory with the core catalog in init(); the engine never
// needs to know the types by name.
package mods

import (
	"math"

	"github.com/patchgrid/patchgrid"
)

type Oscillator struct {
	sampleRate int

	frequency float32
	shape     float32
	gain      float32

	phase float64
	gated bool // true after the first note event; gate then controls output
	open  bool
}

const (
	shapeSine = iota
	shapeTriangle
	shapeSaw
	shapePulse
)

var oscillatorInfo = &patchgrid.ModuleInfo{
	Type:        "oscillator",
	DisplayName: "Oscillator",
	Outputs: []patchgrid.Pin{
		{Name: "out", Channel: 0, Kind: patchgrid.KindAudio},
	},
	Params: []patchgrid.Param{
		{Name: "frequency", Min: 20, Max: 8000, Default: 220, Modulatable: true, Policy: patchgrid.ModAbsolute},
		{Name: "shape", Min: shapeSine, Max: shapePulse, Default: shapeSine},
		{Name: "gain", Min: 0, Max: 1, Default: 0.5, Modulatable: true, Policy: patchgrid.ModAdditive},
	},
}

func init() {
	patchgrid.Register(oscillatorInfo, func() patchgrid.Module {
		return &Oscillator{
			frequency: oscillatorInfo.Params[0].Default,
			shape:     oscillatorInfo.Params[1].Default,
			gain:      oscillatorInfo.Params[2].Default,
		}
	})
}

func (o *Oscillator) Info() *patchgrid.ModuleInfo { return oscillatorInfo }

func (o *Oscillator) Prepare(sampleRate, blockSize int) error {
	o.sampleRate = sampleRate
	return nil
}

func (o *Oscillator) SetParam(name string, value float32) error {
	return setParam(oscillatorInfo, name, value, map[string]*float32{
		"frequency": &o.frequency,
		"shape":     &o.shape,
		"gain":      &o.gain,
	})
}

func (o *Oscillator) ParameterRouting(param string) (int, bool) {
	return oscillatorInfo.ModChannel(param)
}

func (o *Oscillator) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	for _, ev := range events {
		o.gated = true
		if ev.On {
			o.frequency = float32(440 * math.Exp2((float64(ev.Note)-69)/12))
			o.open = true
		} else {
			o.open = false
		}
	}
	if o.gated && !o.open {
		return // outputs are pre-cleared, releasing the gate means silence
	}
	freq := modulated(oscillatorInfo, block, "frequency", o.frequency)
	gain := modulated(oscillatorInfo, block, "gain", o.gain)
	out := block.Out[0]
	step := float64(freq) / float64(o.sampleRate)
	shape := int(o.shape)
	for i := range out {
		out[i] = waveform(o.phase, shape) * gain
		o.phase += step
		o.phase -= math.Floor(o.phase)
	}
}

func waveform(phase float64, shape int) float32 {
	switch shape {
	case shapeTriangle:
		if phase < 0.5 {
			return float32(phase*4 - 1)
		}
		return float32(3 - phase*4)
	case shapeSaw:
		return float32(phase*2 - 1)
	case shapePulse:
		if phase < 0.5 {
			return 1
		}
		return -1
	default:
		return float32(math.Sin(2 * math.Pi * phase))
	}
}
