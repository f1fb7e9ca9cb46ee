package patchgrid

import (
	"errors"
	"fmt"
)

type (
	// DataKind tells what kind of signal a pin carries. Connections are only
	// allowed between compatible kinds; see KindsCompatible.
	DataKind uint8

	// Pin describes one input or output port of a module type. The channel is
	// the index of the pin on its bus and is fixed for the lifetime of the
	// module type: persisted connections reference pins by channel, so
	// renumbering them would break every saved document.
	Pin struct {
		Name    string
		Channel int
		Kind    DataKind
	}

	// PinID is the packed, persistable identity of one pin of one module
	// instance. The packing is part of the save file format, so the layout
	// must never change:
	//
	//   bits 0-15   logical id of the module instance
	//   bits 16-22  channel index on the bus
	//   bit  23     direction, 1 = input
	//   bits 24-27  data kind
	//   bits 28-31  reserved, always zero
	PinID uint32
)

const (
	KindAudio DataKind = iota
	KindControlVoltage
	KindGate
	KindRaw
	KindVideo
	KindMidi

	numDataKinds
)

const (
	MaxLogicalID = 1<<16 - 1
	MaxChannel   = 1<<7 - 1
)

var kindNames = [...]string{"audio", "cv", "gate", "raw", "video", "midi"}

func (k DataKind) String() string {
	if int(k) >= len(kindNames) {
		return "???"
	}
	return kindNames[k]
}

// ErrInvalidPin is returned when a pin id cannot be encoded or decoded. A
// malformed or stale id always fails explicitly; the registry never guesses
// what the caller meant.
var ErrInvalidPin = errors.New("invalid pin id")

// EncodePin packs the identity of a pin into a PinID.
func EncodePin(logicalID, channel int, input bool, kind DataKind) (PinID, error) {
	if logicalID < 0 || logicalID > MaxLogicalID {
		return 0, fmt.Errorf("%w: logical id %v out of range", ErrInvalidPin, logicalID)
	}
	if channel < 0 || channel > MaxChannel {
		return 0, fmt.Errorf("%w: channel %v out of range", ErrInvalidPin, channel)
	}
	if kind >= numDataKinds {
		return 0, fmt.Errorf("%w: unknown data kind %v", ErrInvalidPin, int(kind))
	}
	id := PinID(logicalID) | PinID(channel)<<16 | PinID(kind)<<24
	if input {
		id |= 1 << 23
	}
	return id, nil
}

// Decode unpacks a PinID into its components. Ids with the reserved bits set
// or an out-of-range data kind fail with ErrInvalidPin; they are either
// corrupted or come from a future, incompatible format.
func (p PinID) Decode() (logicalID, channel int, input bool, kind DataKind, err error) {
	if p>>28 != 0 {
		return 0, 0, false, 0, fmt.Errorf("%w: reserved bits set in %#x", ErrInvalidPin, uint32(p))
	}
	kind = DataKind(p >> 24 & 0xF)
	if kind >= numDataKinds {
		return 0, 0, false, 0, fmt.Errorf("%w: unknown data kind in %#x", ErrInvalidPin, uint32(p))
	}
	logicalID = int(p & 0xFFFF)
	channel = int(p >> 16 & 0x7F)
	input = p>>23&1 == 1
	return logicalID, channel, input, kind, nil
}

// LogicalID returns just the module instance part of the id, without
// validating the rest. Use Decode when the id comes from persisted data.
func (p PinID) LogicalID() int {
	return int(p & 0xFFFF)
}
