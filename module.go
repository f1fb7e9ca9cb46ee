package patchgrid

import (
	"fmt"
	"sort"
)

type (
	// Module is the uniform contract every processing unit in the graph
	// implements. A module instance is exclusively owned by the graph engine;
	// after it has been published in a snapshot, only the audio thread
	// touches it (Prepare never runs concurrently with Process).
	Module interface {
		// Info returns the static manifest of the module type. The returned
		// value is shared and read-only.
		Info() *ModuleInfo

		// Prepare allocates any per-instance working storage for the given
		// sample rate and block size. It is called before the instance enters
		// an active snapshot and never concurrently with Process.
		Prepare(sampleRate, blockSize int) error

		// Process transforms the block's inputs into its outputs. It must be
		// bounded-time, allocation-free and non-blocking: it runs on the
		// audio callback. A panic inside Process is recovered by the engine
		// and the module's outputs are silenced for the rest of the block.
		Process(block *Block, events []ControlEvent)

		// SetParam sets the base value of a named parameter, clamped to its
		// range. The engine delivers parameter edits to the audio thread and
		// applies them between blocks, so implementations need no locking.
		SetParam(name string, value float32) error

		// ParameterRouting tells which modulation bus channel carries the
		// live control signal for a modulatable parameter, or ok=false when
		// the parameter is not modulatable. The routing is fixed for the
		// lifetime of the instance.
		ParameterRouting(param string) (channel int, ok bool)
	}

	// TimelineProvider is the optional capability of modules that can act as
	// the authoritative playback master. All methods must be backed by plain
	// atomics: the transport synchronizer reads them from the audio thread
	// every block without locking, and workers inside the module may update
	// them from their own goroutines.
	TimelineProvider interface {
		CanProvideTimeline() bool
		TimelinePosition() float64 // seconds
		TimelineDuration() float64 // seconds
		TimelineActive() bool
	}

	// ModuleInfo is the static, read-only discovery manifest of a module
	// type: pure data the editor layer uses to draw ports and build a search
	// catalog. The engine only consults it for pin and parameter lookup.
	ModuleInfo struct {
		Type        string // type tag, always lowercase; persisted
		DisplayName string
		Inputs      []Pin
		Outputs     []Pin
		Params      []Param

		// Sink marks a terminal module whose processed audio the engine
		// mixes into the host output. Sinks declare no public output pins.
		Sink bool
	}

	// Block is the per-module view of one audio block. Input slices alias the
	// output buffers of the connected source modules; a nil slice means the
	// channel is unconnected. All slices have the same length, the engine
	// block size.
	Block struct {
		Frames int

		In  [][]float32 // primary input bus, indexed by channel
		Out [][]float32 // output bus, indexed by channel
		Mod [][]float32 // modulation bus, indexed by modulation channel

		// Transport is the global transport state, refreshed by the
		// synchronizer before any module of the block runs. Every module in
		// one block observes the same value.
		Transport TransportState
	}

	// ControlEvent is a discrete event delivered to one module at the start
	// of a block: a note trigger or release. Frame is relative to the start
	// of the block.
	ControlEvent struct {
		Frame    int
		On       bool
		Note     byte
		Velocity byte
	}

	// FactoryFunc creates a new, unprepared instance of a module type.
	FactoryFunc func() Module
)

// CV samples the control voltage on a modulation channel, block-rate. The
// second return value is false when the channel is unconnected. Modules that
// want per-sample modulation can index Mod[channel] directly; block-rate is
// the only granularity the engine guarantees.
func (b *Block) CV(channel int) (float32, bool) {
	if channel < 0 || channel >= len(b.Mod) || b.Mod[channel] == nil {
		return 0, false
	}
	return b.Mod[channel][0], true
}

// Input returns the buffer connected to a primary input channel, or nil when
// unconnected.
func (b *Block) Input(channel int) []float32 {
	if channel < 0 || channel >= len(b.In) {
		return nil
	}
	return b.In[channel]
}

// NumModChannels returns the size of the module type's modulation bus: one
// channel per modulatable parameter, in declaration order.
func (mi *ModuleInfo) NumModChannels() int {
	n := 0
	for i := range mi.Params {
		if mi.Params[i].Modulatable {
			n++
		}
	}
	return n
}

// ModChannel returns the modulation bus channel reserved for a parameter.
// The assignment is purely positional among the modulatable parameters of
// the manifest, so it is stable as long as the manifest is, which is the
// whole point: saved connections reference it by index.
func (mi *ModuleInfo) ModChannel(param string) (int, bool) {
	ch := 0
	for i := range mi.Params {
		if !mi.Params[i].Modulatable {
			continue
		}
		if mi.Params[i].Name == param {
			return ch, true
		}
		ch++
	}
	return 0, false
}

// ParamByName returns the descriptor of a named parameter.
func (mi *ModuleInfo) ParamByName(name string) (Param, bool) {
	for i := range mi.Params {
		if mi.Params[i].Name == name {
			return mi.Params[i], true
		}
	}
	return Param{}, false
}

// InputKind returns the data kind accepted by an input channel. Channels
// beyond the primary pins address the modulation bus, which always carries
// control voltage.
func (mi *ModuleInfo) InputKind(channel int) (DataKind, bool) {
	if channel < 0 {
		return 0, false
	}
	if channel < len(mi.Inputs) {
		return mi.Inputs[channel].Kind, true
	}
	if channel < len(mi.Inputs)+mi.NumModChannels() {
		return KindControlVoltage, true
	}
	return 0, false
}

// OutputKind returns the data kind produced by an output channel.
func (mi *ModuleInfo) OutputKind(channel int) (DataKind, bool) {
	if channel < 0 || channel >= len(mi.Outputs) {
		return 0, false
	}
	return mi.Outputs[channel].Kind, true
}

// ModBase is the first input channel of the modulation bus; modulation
// channel c is addressed as input channel ModBase()+c in connections.
func (mi *ModuleInfo) ModBase() int {
	return len(mi.Inputs)
}

// moduleTypes is the open set of registered module types. New module types
// register a factory; the engine never needs to know them by name.
var moduleTypes = map[string]registration{}

type registration struct {
	info *ModuleInfo
	fn   FactoryFunc
}

// Register adds a module type to the catalog. It is meant to be called from
// init() and panics on a duplicate type tag, as that is a programming error.
func Register(info *ModuleInfo, fn FactoryFunc) {
	if _, ok := moduleTypes[info.Type]; ok {
		panic(fmt.Sprintf("module type %q registered twice", info.Type))
	}
	moduleTypes[info.Type] = registration{info: info, fn: fn}
}

// NewModule creates a new, unprepared instance of a registered type.
func NewModule(typeTag string) (Module, error) {
	r, ok := moduleTypes[typeTag]
	if !ok {
		return nil, fmt.Errorf("unknown module type %q", typeTag)
	}
	return r.fn(), nil
}

// ModuleTypeInfo returns the manifest of a registered type.
func ModuleTypeInfo(typeTag string) (*ModuleInfo, bool) {
	r, ok := moduleTypes[typeTag]
	return r.info, ok
}

// ModuleTypeNames returns the tags of all registered module types, sorted
// alphabetically for the editor's search catalog.
func ModuleTypeNames() []string {
	names := make([]string, 0, len(moduleTypes))
	for k := range moduleTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
