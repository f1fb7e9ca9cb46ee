package mods

import (
	"github.com/patchgrid/patchgrid"
	"github.com/viterin/vek/vek32"
)

const mixerInputs = 4

// Mixer sums up to four audio inputs with a shared level control. Unconnected
// inputs cost nothing.
type Mixer struct {
	level   float32
	scratch []float32
}

var mixerInfo = &patchgrid.ModuleInfo{
	Type:        "mixer",
	DisplayName: "Mixer",
	Inputs: []patchgrid.Pin{
		{Name: "in1", Channel: 0, Kind: patchgrid.KindAudio},
		{Name: "in2", Channel: 1, Kind: patchgrid.KindAudio},
		{Name: "in3", Channel: 2, Kind: patchgrid.KindAudio},
		{Name: "in4", Channel: 3, Kind: patchgrid.KindAudio},
	},
	Outputs: []patchgrid.Pin{
		{Name: "out", Channel: 0, Kind: patchgrid.KindAudio},
	},
	Params: []patchgrid.Param{
		{Name: "level", Min: 0, Max: 1, Default: 0.25, Modulatable: true, Policy: patchgrid.ModAdditive},
	},
}

func init() {
	patchgrid.Register(mixerInfo, func() patchgrid.Module {
		return &Mixer{level: mixerInfo.Params[0].Default}
	})
}

func (m *Mixer) Info() *patchgrid.ModuleInfo { return mixerInfo }

func (m *Mixer) Prepare(sampleRate, blockSize int) error {
	m.scratch = make([]float32, blockSize)
	return nil
}

func (m *Mixer) SetParam(name string, value float32) error {
	return setParam(mixerInfo, name, value, map[string]*float32{"level": &m.level})
}

func (m *Mixer) ParameterRouting(param string) (int, bool) {
	return mixerInfo.ModChannel(param)
}

func (m *Mixer) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	out := block.Out[0]
	sum := m.scratch[:len(out)]
	for i := range sum {
		sum[i] = 0
	}
	for chn := 0; chn < mixerInputs; chn++ {
		in := block.Input(chn)
		if in == nil {
			continue
		}
		vek32.Add_Inplace(sum, in)
	}
	level := modulated(mixerInfo, block, "level", m.level)
	vek32.MulNumber_Into(out, sum, level)
}
