package mods

import (
	"github.com/patchgrid/patchgrid"
	"github.com/viterin/vek/vek32"
)

// VCA scales its audio input by a gain, the bread-and-butter target for
// envelope and LFO modulation.
type VCA struct {
	gain float32
}

var vcaInfo = &patchgrid.ModuleInfo{
	Type:        "vca",
	DisplayName: "VCA",
	Inputs: []patchgrid.Pin{
		{Name: "in", Channel: 0, Kind: patchgrid.KindAudio},
	},
	Outputs: []patchgrid.Pin{
		{Name: "out", Channel: 0, Kind: patchgrid.KindAudio},
	},
	Params: []patchgrid.Param{
		{Name: "gain", Min: 0, Max: 1, Default: 1, Modulatable: true, Policy: patchgrid.ModAbsolute},
	},
}

func init() {
	patchgrid.Register(vcaInfo, func() patchgrid.Module {
		return &VCA{gain: vcaInfo.Params[0].Default}
	})
}

func (v *VCA) Info() *patchgrid.ModuleInfo             { return vcaInfo }
func (v *VCA) Prepare(sampleRate, blockSize int) error { return nil }

func (v *VCA) SetParam(name string, value float32) error {
	return setParam(vcaInfo, name, value, map[string]*float32{"gain": &v.gain})
}

func (v *VCA) ParameterRouting(param string) (int, bool) {
	return vcaInfo.ModChannel(param)
}

func (v *VCA) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	in := block.Input(0)
	if in == nil {
		return
	}
	gain := modulated(vcaInfo, block, "gain", v.gain)
	vek32.MulNumber_Into(block.Out[0], in, gain)
}
