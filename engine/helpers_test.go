package engine

import (
	"testing"

	"github.com/patchgrid/patchgrid"
)

// test module types, registered once for the whole package

type (
	// genModule outputs a constant value on one audio channel and records the
	// control events it receives.
	genModule struct {
		value  float32
		events []patchgrid.ControlEvent
	}

	// sumModule adds its two audio inputs.
	sumModule struct{}

	// copySink copies its two inputs to the hidden sink bus.
	copySink struct{}

	// rawGen outputs on a raw channel, for kind mismatch tests.
	rawGen struct{}

	// panicModule panics on every process call.
	panicModule struct{}

	// fakeMaster is a controllable timeline provider. Plain fields are fine
	// in tests where ProcessBlock runs on the test goroutine.
	fakeMaster struct {
		pos      float64
		duration float64
		active   bool
	}

	// clockMaster is a timeline provider that only advances while the
	// transport plays, the way a sample player does.
	clockMaster struct {
		pos    float64
		active bool
		dt     float64
	}
)

var genInfo = &patchgrid.ModuleInfo{
	Type:    "gen",
	Outputs: []patchgrid.Pin{{Name: "out", Channel: 0, Kind: patchgrid.KindAudio}},
	Params: []patchgrid.Param{
		{Name: "value", Min: -1, Max: 1, Default: 1, Modulatable: true, Policy: patchgrid.ModAdditive},
	},
}

var sumInfo = &patchgrid.ModuleInfo{
	Type: "sum",
	Inputs: []patchgrid.Pin{
		{Name: "a", Channel: 0, Kind: patchgrid.KindAudio},
		{Name: "b", Channel: 1, Kind: patchgrid.KindAudio},
	},
	Outputs: []patchgrid.Pin{{Name: "out", Channel: 0, Kind: patchgrid.KindAudio}},
}

var copySinkInfo = &patchgrid.ModuleInfo{
	Type: "copysink",
	Inputs: []patchgrid.Pin{
		{Name: "left", Channel: 0, Kind: patchgrid.KindAudio},
		{Name: "right", Channel: 1, Kind: patchgrid.KindAudio},
	},
	Sink: true,
}

var rawGenInfo = &patchgrid.ModuleInfo{
	Type:    "rawgen",
	Outputs: []patchgrid.Pin{{Name: "out", Channel: 0, Kind: patchgrid.KindRaw}},
}

var panicInfo = &patchgrid.ModuleInfo{
	Type:    "panicker",
	Outputs: []patchgrid.Pin{{Name: "out", Channel: 0, Kind: patchgrid.KindAudio}},
}

var fakeMasterInfo = &patchgrid.ModuleInfo{
	Type:    "fakemaster",
	Outputs: []patchgrid.Pin{{Name: "cv", Channel: 0, Kind: patchgrid.KindControlVoltage}},
}

var clockMasterInfo = &patchgrid.ModuleInfo{
	Type:    "clockmaster",
	Outputs: []patchgrid.Pin{{Name: "cv", Channel: 0, Kind: patchgrid.KindControlVoltage}},
}

func init() {
	patchgrid.Register(genInfo, func() patchgrid.Module { return &genModule{value: 1} })
	patchgrid.Register(sumInfo, func() patchgrid.Module { return &sumModule{} })
	patchgrid.Register(copySinkInfo, func() patchgrid.Module { return &copySink{} })
	patchgrid.Register(rawGenInfo, func() patchgrid.Module { return &rawGen{} })
	patchgrid.Register(panicInfo, func() patchgrid.Module { return &panicModule{} })
	patchgrid.Register(fakeMasterInfo, func() patchgrid.Module { return &fakeMaster{} })
	patchgrid.Register(clockMasterInfo, func() patchgrid.Module { return &clockMaster{} })
}

func (g *genModule) Info() *patchgrid.ModuleInfo             { return genInfo }
func (g *genModule) Prepare(sampleRate, blockSize int) error { return nil }
func (g *genModule) SetParam(name string, value float32) error {
	g.value = value
	return nil
}
func (g *genModule) ParameterRouting(param string) (int, bool) { return genInfo.ModChannel(param) }
func (g *genModule) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	g.events = append(g.events, events...)
	value := g.value
	if cv, ok := block.CV(0); ok {
		p, _ := genInfo.ParamByName("value")
		value = p.Modulate(value, cv)
	}
	out := block.Out[0]
	for i := range out {
		out[i] = value
	}
}

func (s *sumModule) Info() *patchgrid.ModuleInfo               { return sumInfo }
func (s *sumModule) Prepare(sampleRate, blockSize int) error   { return nil }
func (s *sumModule) SetParam(name string, value float32) error { return nil }
func (s *sumModule) ParameterRouting(param string) (int, bool) { return 0, false }
func (s *sumModule) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	out := block.Out[0]
	for chn := 0; chn < 2; chn++ {
		in := block.Input(chn)
		if in == nil {
			continue
		}
		for i := range out {
			out[i] += in[i]
		}
	}
}

func (c *copySink) Info() *patchgrid.ModuleInfo               { return copySinkInfo }
func (c *copySink) Prepare(sampleRate, blockSize int) error   { return nil }
func (c *copySink) SetParam(name string, value float32) error { return nil }
func (c *copySink) ParameterRouting(param string) (int, bool) { return 0, false }
func (c *copySink) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	for chn := 0; chn < 2; chn++ {
		in := block.Input(chn)
		if in == nil {
			continue
		}
		copy(block.Out[chn], in)
	}
}

func (r *rawGen) Info() *patchgrid.ModuleInfo                                 { return rawGenInfo }
func (r *rawGen) Prepare(sampleRate, blockSize int) error                     { return nil }
func (r *rawGen) SetParam(name string, value float32) error                   { return nil }
func (r *rawGen) ParameterRouting(param string) (int, bool)                   { return 0, false }
func (r *rawGen) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {}

func (p *panicModule) Info() *patchgrid.ModuleInfo               { return panicInfo }
func (p *panicModule) Prepare(sampleRate, blockSize int) error   { return nil }
func (p *panicModule) SetParam(name string, value float32) error { return nil }
func (p *panicModule) ParameterRouting(param string) (int, bool) { return 0, false }
func (p *panicModule) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	panic("synthetic module fault")
}

func (f *fakeMaster) Info() *patchgrid.ModuleInfo               { return fakeMasterInfo }
func (f *fakeMaster) Prepare(sampleRate, blockSize int) error   { return nil }
func (f *fakeMaster) SetParam(name string, value float32) error { return nil }
func (f *fakeMaster) ParameterRouting(param string) (int, bool) { return 0, false }
func (f *fakeMaster) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {}

func (f *fakeMaster) CanProvideTimeline() bool  { return true }
func (f *fakeMaster) TimelinePosition() float64 { return f.pos }
func (f *fakeMaster) TimelineDuration() float64 { return f.duration }
func (f *fakeMaster) TimelineActive() bool      { return f.active }

func (c *clockMaster) Info() *patchgrid.ModuleInfo { return clockMasterInfo }
func (c *clockMaster) Prepare(sampleRate, blockSize int) error {
	c.dt = float64(blockSize) / float64(sampleRate)
	return nil
}
func (c *clockMaster) SetParam(name string, value float32) error { return nil }
func (c *clockMaster) ParameterRouting(param string) (int, bool) { return 0, false }
func (c *clockMaster) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	if block.Transport.Playing {
		c.pos += c.dt
		c.active = true
	} else {
		c.active = false
	}
}

func (c *clockMaster) CanProvideTimeline() bool  { return true }
func (c *clockMaster) TimelinePosition() float64 { return c.pos }
func (c *clockMaster) TimelineDuration() float64 { return 1000 }
func (c *clockMaster) TimelineActive() bool      { return c.active }

// newTestEngine builds an engine with a small block size so tests stay fast.
func newTestEngine() (*Engine, *Broker) {
	broker := NewBroker()
	return NewEngine(broker, 44100, 8), broker
}

// mustAdd adds a module or fails the test.
func mustAdd(t *testing.T, e *Engine, typeTag string) int {
	t.Helper()
	id, err := e.AddModule(typeTag)
	if err != nil {
		t.Fatalf("AddModule(%q) failed: %v", typeTag, err)
	}
	return id
}

// mustConnect connects or fails the test.
func mustConnect(t *testing.T, e *Engine, from, fromChannel, to, toChannel int) {
	t.Helper()
	c := patchgrid.Connection{From: from, FromChannel: fromChannel, To: to, ToChannel: toChannel}
	if err := e.Connect(c); err != nil {
		t.Fatalf("Connect(%v) failed: %v", c, err)
	}
}

// drainToModel empties the control channel and returns everything that was in
// it.
func drainToModel(broker *Broker) []MsgToModel {
	var msgs []MsgToModel
	for {
		select {
		case msg := <-broker.ToModel:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}
