package patchgrid

// TransportState is the global playback state, broadcast to every active
// module once per block before that module's own process step. It is mutated
// only by the graph engine, either from validated host commands or from the
// synchronizer's per-block read of the timeline master.
type TransportState struct {
	Playing           bool
	PositionSeconds   float64
	TempoBPM          float64
	SongPositionBeats float64

	// MasterID is the logical id of the module currently authoritative for
	// the playback position, or 0 when the engine follows its internal
	// clock.
	MasterID int
}

// DefaultTempoBPM is used when a loaded document does not carry a tempo.
const DefaultTempoBPM float64 = 120
