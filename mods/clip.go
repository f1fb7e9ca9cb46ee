package mods

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/patchgrid/patchgrid"
)

type (
	// Clip plays a sample from memory and can act as the timeline master: its
	// position and duration are exposed through atomics so the transport
	// synchronizer can read them from the audio thread every block while the
	// control thread loads or replaces the sample data.
	//
	// A failed or missing load leaves the clip in a degraded state: it renders
	// silence and reports no timeline, but stays in the graph so its
	// connections survive.
	Clip struct {
		sampleRate int

		gain float32
		loop float32

		data   atomic.Pointer[clipData]
		pos    atomic.Uint64 // math.Float64bits of the position in seconds
		active atomic.Bool

		frame int64
	}

	clipData struct {
		samples    [][2]float32
		sampleRate int
	}
)

var clipInfo = &patchgrid.ModuleInfo{
	Type:        "clip",
	DisplayName: "Clip Player",
	Outputs: []patchgrid.Pin{
		{Name: "left", Channel: 0, Kind: patchgrid.KindAudio},
		{Name: "right", Channel: 1, Kind: patchgrid.KindAudio},
	},
	Params: []patchgrid.Param{
		{Name: "gain", Min: 0, Max: 2, Default: 1, Modulatable: true, Policy: patchgrid.ModAdditive},
		{Name: "loop", Min: 0, Max: 1, Default: 0},
	},
}

func init() {
	patchgrid.Register(clipInfo, func() patchgrid.Module {
		return &Clip{gain: clipInfo.Params[0].Default}
	})
}

func (c *Clip) Info() *patchgrid.ModuleInfo { return clipInfo }

func (c *Clip) Prepare(sampleRate, blockSize int) error {
	c.sampleRate = sampleRate
	return nil
}

func (c *Clip) SetParam(name string, value float32) error {
	return setParam(clipInfo, name, value, map[string]*float32{
		"gain": &c.gain,
		"loop": &c.loop,
	})
}

func (c *Clip) ParameterRouting(param string) (int, bool) {
	return clipInfo.ModChannel(param)
}

// Load reads a sample file and swaps it in. 16-bit little endian PCM, either
// a WAV file or headerless raw data assumed stereo 44.1k. Safe to call from
// the control thread while the audio thread renders; the new sample takes
// effect at the next block. On error the previous data is kept.
func (c *Clip) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load clip: %w", err)
	}
	data, err := parseClip(raw)
	if err != nil {
		return fmt.Errorf("load clip %v: %w", path, err)
	}
	c.data.Store(data)
	return nil
}

func parseClip(raw []byte) (*clipData, error) {
	sampleRate := 44100
	if len(raw) >= 44 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WAVE" {
		sampleRate = int(binary.LittleEndian.Uint32(raw[24:28]))
		raw = raw[44:]
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("sample data too short (%v bytes)", len(raw))
	}
	samples := make([][2]float32, len(raw)/4)
	for i := range samples {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		samples[i] = [2]float32{float32(l) / 32768, float32(r) / 32768}
	}
	return &clipData{samples: samples, sampleRate: sampleRate}, nil
}

func (c *Clip) CanProvideTimeline() bool { return c.data.Load() != nil }

func (c *Clip) TimelinePosition() float64 {
	return math.Float64frombits(c.pos.Load())
}

func (c *Clip) TimelineDuration() float64 {
	data := c.data.Load()
	if data == nil {
		return 0
	}
	return float64(len(data.samples)) / float64(data.sampleRate)
}

func (c *Clip) TimelineActive() bool { return c.active.Load() }

func (c *Clip) Process(block *patchgrid.Block, events []patchgrid.ControlEvent) {
	data := c.data.Load()
	if data == nil {
		c.active.Store(false)
		return // degraded: outputs stay silent
	}
	if !block.Transport.Playing {
		c.active.Store(false)
		return
	}
	gain := modulated(clipInfo, block, "gain", c.gain)
	left, right := block.Out[0], block.Out[1]
	ratio := float64(data.sampleRate) / float64(c.sampleRate)
	total := int64(len(data.samples))
	done := false
	for i := range left {
		src := int64(float64(c.frame) * ratio)
		if src >= total {
			if c.loop < 0.5 {
				done = true
				break
			}
			c.frame = 0
			src = 0
		}
		left[i] = data.samples[src][0] * gain
		right[i] = data.samples[src][1] * gain
		c.frame++
	}
	c.pos.Store(math.Float64bits(float64(c.frame) / float64(c.sampleRate)))
	c.active.Store(!done)
}
