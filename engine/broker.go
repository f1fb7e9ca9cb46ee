package engine

import (
	"sync"
	"time"

	"github.com/patchgrid/patchgrid"
)

type (
	// Broker is the centralized message hub between the graph engine's audio
	// side, the control/editor side and the level detector. It is
	// many-to-one communication, one buffered channel per recipient, so that
	// the audio thread can always use a non-blocking send. The broker also
	// carries a sync.Pool of *patchgrid.AudioBuffer, so rendered audio can
	// be passed to the detector without allocating on every block.
	//
	// For closing goroutines, the broker has two channels per goroutine:
	// CloseXXX and FinishedXXX. CloseXXX has a capacity of 1, so requesting
	// a close never blocks; if the channel is already full, someone else
	// already requested the closure and dropping the message is fine.
	// FinishedXXX is never sent to, only closed, so waiting for a goroutine
	// is "<-FinishedXXX", combined with a timeout to avoid deadlocks.
	Broker struct {
		ToAudio chan any // commands applied between blocks: transport, params, notes
		ToModel chan MsgToModel
		ToLevel chan MsgToLevel

		CloseLevel    chan struct{}
		CloseReclaim  chan struct{}
		FinishedLevel chan struct{}
		FinishedReclaim chan struct{}

		bufferPool sync.Pool
	}

	// MsgToModel is a message from the engine to the control/editor layer.
	// The frequently sent transport state is not boxed, to avoid
	// allocations; everything infrequent travels boxed in Data (casting
	// pointer types to any does not allocate).
	MsgToModel struct {
		HasTransport bool
		Transport    patchgrid.TransportState

		Data any // Alert, TimelineMasterLostMsg, LevelResult, ...
	}

	// MsgToLevel carries rendered master audio to the level detector.
	MsgToLevel struct {
		Reset bool
		Data  any // *patchgrid.AudioBuffer or func() run in the detector goroutine
	}

	// TimelineMasterLostMsg tells the control layer that the elected
	// timeline master disappeared from the active graph and the engine fell
	// back to its internal clock. Any UI bound to the selection should
	// reset.
	TimelineMasterLostMsg struct {
		ID int // the logical id of the master that was lost
	}

	// Alert is a prioritized notification for the frontend: module faults,
	// degraded resources and the like.
	Alert struct {
		Name     string
		Priority AlertPriority
		Message  string
		Duration time.Duration
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

const defaultAlertDuration = 5 * time.Second

func NewBroker() *Broker {
	return &Broker{
		ToAudio:         make(chan any, 1024),
		ToModel:         make(chan MsgToModel, 1024),
		ToLevel:         make(chan MsgToLevel, 1024),
		CloseLevel:      make(chan struct{}, 1),
		CloseReclaim:    make(chan struct{}, 1),
		FinishedLevel:   make(chan struct{}),
		FinishedReclaim: make(chan struct{}),
		bufferPool:      sync.Pool{New: func() any { return &patchgrid.AudioBuffer{} }},
	}
}

// GetAudioBuffer returns an empty audio buffer from the buffer pool. After
// use it should be returned with PutAudioBuffer.
func (b *Broker) GetAudioBuffer() *patchgrid.AudioBuffer {
	return b.bufferPool.Get().(*patchgrid.AudioBuffer)
}

// PutAudioBuffer returns an audio buffer to the pool, resetting its length
// but keeping the capacity.
func (b *Broker) PutAudioBuffer(buf *patchgrid.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend sends a value to a channel if it is not full. It is guaranteed to
// be non-blocking; the return value tells if the value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received or the timeout elapses.
// ok is false on timeout or when the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
