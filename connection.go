package patchgrid

import (
	"errors"
	"fmt"
)

type (
	// Connection is a directed edge from an output channel of one module
	// instance to an input channel of another. Modules are referenced by
	// their stable logical ids, so a persisted connection table survives a
	// save/load cycle. Input channels at or past the destination's ModBase
	// address its modulation bus.
	Connection struct {
		From        int `yaml:"from" json:"from"`
		FromChannel int `yaml:"fromChannel" json:"fromChannel"`
		To          int `yaml:"to" json:"to"`
		ToChannel   int `yaml:"toChannel" json:"toChannel"`
	}

	// StructuralError is a rejected graph mutation. The graph is left
	// unchanged whenever one is returned.
	StructuralError struct {
		Op   string // "connect", "disconnect", "remove", ...
		Conn Connection
		Err  error
	}
)

var (
	// ErrChannelOccupied means the destination channel already has a
	// connection. A destination accepts at most one edge; the first one
	// stays, the second request is rejected, never silently overwritten.
	ErrChannelOccupied = errors.New("destination channel already connected")

	// ErrKindMismatch means the source and destination pin kinds are
	// incompatible and no adapter rule permits the coercion.
	ErrKindMismatch = errors.New("incompatible pin kinds")

	// ErrCycle means the edge would make the graph cyclic. Cycles are
	// rejected at connection time; the engine never attempts runtime cycle
	// resolution.
	ErrCycle = errors.New("connection would create a cycle")

	// ErrUnknownModule means a logical id does not name an active module.
	ErrUnknownModule = errors.New("unknown module id")

	// ErrNoSuchChannel means the referenced channel does not exist on the
	// module's pin layout.
	ErrNoSuchChannel = errors.New("no such channel")
)

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s %v.%v -> %v.%v: %v", e.Op, e.Conn.From, e.Conn.FromChannel, e.Conn.To, e.Conn.ToChannel, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// kindAdapters lists the kind pairs that may be coerced even though they
// differ. Gate and control voltage are both "one float per frame" signals,
// and either may feed an audio input (it just sounds like a step signal);
// nothing converts into raw, video or midi.
var kindAdapters = map[[2]DataKind]bool{
	{KindGate, KindControlVoltage}: true,
	{KindControlVoltage, KindGate}: true,
	{KindGate, KindAudio}:          true,
	{KindControlVoltage, KindAudio}: true,
	{KindAudio, KindControlVoltage}: true,
}

// KindsCompatible reports whether a signal of kind from may drive an input
// of kind to, either directly or through an adapter rule.
func KindsCompatible(from, to DataKind) bool {
	if from == to {
		return true
	}
	return kindAdapters[[2]DataKind{from, to}]
}
