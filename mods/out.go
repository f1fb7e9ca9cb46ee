package mods

import (
	"github.com/patchgrid/patchgrid"
	"github.com/viterin/vek/vek32"
)

// Out is the terminal sink: it applies the output gain to its stereo input
// and hands the result to the engine, which mixes all sinks into the host
// buffer. It declares no public outputs.
type Out struct {
	gain float32
}

var outInfo = &patchgrid.ModuleInfo{
	Type:        "out",
	DisplayName: "Output",
	Inputs: []patchgrid.Pin{
		{Name: "left", Channel: 0, Kind: patchgrid.KindAudio},
		{Name: "right", Channel: 1, Kind: patchgrid.KindAudio},
	},
	Params: []patchgrid.Param{
		{Name: "gain", Min: 0, Max: 2, Default: 1, Modulatable: true, Policy: patchgrid.ModAdditive},
	},
	Sink: true,
}

func init() {
	patchgrid.Register(outInfo, func() patchgrid.Module {
		return &Out{gain: outInfo.Params[0].Default}
	})
}

func (o *Out) Info() *patchgrid.ModuleInfo        { return outInfo }
func (o *Out) Prepare(sampleRate, blockSize int) error { return nil }

func (o *Out) SetParam(name string, value float32) error {
	return setParam(outInfo, name, value, map[string]*float32{"gain": &o.gain})
}

func (o *Out) ParameterRouting(param string) (int, bool) {
	return outInfo.ModChannel(param)
}

func (o *Out) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	gain := modulated(outInfo, block, "gain", o.gain)
	for chn := 0; chn < 2; chn++ {
		in := block.Input(chn)
		if in == nil {
			in = block.Input(0) // mono source feeds both sides
		}
		if in == nil {
			continue
		}
		vek32.MulNumber_Into(block.Out[chn], in, gain)
	}
}
