package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patchgrid/patchgrid"
)

type (
	// Engine owns the module set and the connection table of the graph. All
	// structural mutations (add/remove module, connect/disconnect, parameter
	// edits, master election) belong to the control thread; the audio
	// callback only ever loads the current snapshot and runs ProcessBlock.
	// The snapshot handle is the single structure shared between the two
	// threads.
	Engine struct {
		broker     *Broker
		sampleRate int
		blockSize  int

		// control-side tables, the authoritative graph. Mutations build a
		// complete new snapshot off to the side and swap it in; an
		// in-progress mutation that errors out is simply discarded before
		// the swap.
		state    State
		mods     map[int]*moduleEntry
		order    []int // insertion order of ids; tie-breaker for evaluation order
		conns    []patchgrid.Connection
		masterID int
		nextID   int
		bpm      float64
		playing  bool

		current atomic.Pointer[Snapshot]
		retired chan *Snapshot
		bufPool sync.Pool

		// audio-side state, touched only from ProcessBlock and the helpers
		// it calls. hostPlaying is the host's play intent; it survives the
		// per-block transport refresh while a master is elected, so a master
		// that runs only while the transport plays can actually be started.
		transport     patchgrid.TransportState
		hostPlaying   bool
		baseBPM       float64
		prevMasterPos float64
		haveMasterPos bool
	}

	moduleEntry struct {
		mod    patchgrid.Module
		params map[string]float32 // editor copy of the base values, for persistence
	}

	// State is the engine lifecycle: Idle (no compiled graph), Built
	// (audio-ready), Mutating (control thread is building the next
	// snapshot).
	State int
)

const (
	Idle State = iota
	Built
	Mutating
)

// control messages, applied on the audio side between blocks
type (
	playMsg struct{}
	stopMsg struct{}
	seekMsg struct{ seconds float64 }
	bpmMsg  struct{ bpm float64 }

	paramMsg struct {
		id    int
		name  string
		value float32
	}

	noteMsg struct {
		id    int
		event patchgrid.ControlEvent
	}

	// masterMsg tells the audio side the election changed deliberately, so a
	// cleared election is not mistaken for a lost master.
	masterMsg struct{ id int }
)

// NewEngine creates an engine for the given block size and starts its
// reclaim goroutine. Close releases the goroutine.
func NewEngine(broker *Broker, sampleRate, blockSize int) *Engine {
	e := &Engine{
		broker:     broker,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		mods:       make(map[int]*moduleEntry),
		retired:    make(chan *Snapshot, 16),
		bpm:        patchgrid.DefaultTempoBPM,
		baseBPM:    patchgrid.DefaultTempoBPM,
	}
	e.bufPool = sync.Pool{New: func() any {
		buf := make([]float32, blockSize)
		return &buf
	}}
	e.transport.TempoBPM = patchgrid.DefaultTempoBPM
	go e.reclaimLoop()
	return e
}

func (e *Engine) SampleRate() int { return e.sampleRate }
func (e *Engine) BlockSize() int  { return e.blockSize }

// State returns the engine lifecycle state as seen by the control thread.
func (e *Engine) State() State { return e.state }

// Snapshot returns the currently published snapshot, or nil while Idle.
func (e *Engine) Snapshot() *Snapshot { return e.current.Load() }

// Close stops the reclaim goroutine.
func (e *Engine) Close() {
	TrySend(e.broker.CloseReclaim, struct{}{})
	TimeoutReceive(e.broker.FinishedReclaim, 3*time.Second)
}

// AddModule creates, prepares and publishes a new instance of a registered
// module type, returning its stable logical id.
func (e *Engine) AddModule(typeTag string) (int, error) {
	return e.addModule(typeTag, e.nextID+1)
}

func (e *Engine) addModule(typeTag string, id int) (int, error) {
	id, err := e.addModuleNoPublish(typeTag, id)
	if err != nil {
		return 0, err
	}
	e.publish()
	return id, nil
}

// RemoveModule removes a module and every connection touching it. If the
// module was the elected timeline master, the audio side falls back to the
// internal clock on its next block and notifies the control layer
// asynchronously.
func (e *Engine) RemoveModule(id int) error {
	if _, ok := e.mods[id]; !ok {
		return &patchgrid.StructuralError{Op: "remove", Conn: patchgrid.Connection{To: id}, Err: patchgrid.ErrUnknownModule}
	}
	delete(e.mods, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	conns := e.conns[:0]
	for _, c := range e.conns {
		if c.From != id && c.To != id {
			conns = append(conns, c)
		}
	}
	e.conns = conns
	if e.masterID == id {
		e.masterID = 0
	}
	e.publish()
	return nil
}

// Connect validates and adds a directed edge. Validation happens before
// anything is applied to the live graph: incompatible kinds, an occupied
// destination channel and a cycle all reject the edge and leave the graph
// unchanged.
func (e *Engine) Connect(c patchgrid.Connection) error {
	if err := e.validateConnection(c); err != nil {
		return err
	}
	e.conns = append(e.conns, c)
	e.publish()
	return nil
}

func (e *Engine) validateConnection(c patchgrid.Connection) error {
	fail := func(err error) error {
		return &patchgrid.StructuralError{Op: "connect", Conn: c, Err: err}
	}
	src, ok := e.mods[c.From]
	if !ok {
		return fail(patchgrid.ErrUnknownModule)
	}
	dst, ok := e.mods[c.To]
	if !ok {
		return fail(patchgrid.ErrUnknownModule)
	}
	fromKind, ok := src.mod.Info().OutputKind(c.FromChannel)
	if !ok {
		return fail(patchgrid.ErrNoSuchChannel)
	}
	toKind, ok := dst.mod.Info().InputKind(c.ToChannel)
	if !ok {
		return fail(patchgrid.ErrNoSuchChannel)
	}
	if !patchgrid.KindsCompatible(fromKind, toKind) {
		return fail(patchgrid.ErrKindMismatch)
	}
	for _, existing := range e.conns {
		if existing.To == c.To && existing.ToChannel == c.ToChannel {
			return fail(patchgrid.ErrChannelOccupied)
		}
	}
	candidate := append(append([]patchgrid.Connection{}, e.conns...), c)
	if _, err := topoOrder(e.order, candidate); err != nil {
		return fail(patchgrid.ErrCycle)
	}
	return nil
}

// Disconnect removes an exact edge.
func (e *Engine) Disconnect(c patchgrid.Connection) error {
	for i, existing := range e.conns {
		if existing == c {
			e.conns = append(e.conns[:i], e.conns[i+1:]...)
			e.publish()
			return nil
		}
	}
	return &patchgrid.StructuralError{Op: "disconnect", Conn: c, Err: patchgrid.ErrUnknownModule}
}

// SetParam edits the base value of a module parameter. The edit is recorded
// on the control side for persistence and delivered to the audio thread,
// which applies it to the module between blocks.
func (e *Engine) SetParam(id int, name string, value float32) error {
	entry, ok := e.mods[id]
	if !ok {
		return patchgrid.ErrUnknownModule
	}
	p, ok := entry.mod.Info().ParamByName(name)
	if !ok {
		return fmt.Errorf("module %v has no parameter %q", id, name)
	}
	value = p.Clamp(value)
	entry.params[name] = value
	if e.current.Load() == nil {
		// not yet published, the module is still exclusively ours
		return entry.mod.SetParam(name, value)
	}
	if !TrySend(e.broker.ToAudio, any(paramMsg{id: id, name: name, value: value})) {
		return fmt.Errorf("engine busy, parameter edit dropped")
	}
	return nil
}

// SetTimelineMaster elects a timeline master, or clears the election with
// id 0. At most one module is master at a time.
func (e *Engine) SetTimelineMaster(id int) error {
	if id != 0 {
		entry, ok := e.mods[id]
		if !ok {
			return patchgrid.ErrUnknownModule
		}
		tl, ok := entry.mod.(patchgrid.TimelineProvider)
		if !ok || !tl.CanProvideTimeline() {
			return fmt.Errorf("module %v cannot provide a timeline", id)
		}
	}
	e.masterID = id
	e.publish()
	TrySend(e.broker.ToAudio, any(masterMsg{id: id}))
	return nil
}

// Play starts the transport.
func (e *Engine) Play() {
	e.playing = true
	TrySend(e.broker.ToAudio, any(playMsg{}))
}

// Stop stops the transport.
func (e *Engine) Stop() {
	e.playing = false
	TrySend(e.broker.ToAudio, any(stopMsg{}))
}

// Seek moves the transport position. Seeking while Idle is a no-op, and
// negative positions clamp to zero.
func (e *Engine) Seek(seconds float64) {
	if e.state == Idle {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	TrySend(e.broker.ToAudio, any(seekMsg{seconds: seconds}))
}

// SetBPM sets the internal clock tempo.
func (e *Engine) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("BPM should be > 0")
	}
	e.bpm = bpm
	TrySend(e.broker.ToAudio, any(bpmMsg{bpm: bpm}))
	return nil
}

// SendNote delivers a note on/off control event to a module. Events arrive
// at the start of the following block.
func (e *Engine) SendNote(id int, on bool, note, velocity byte) {
	TrySend(e.broker.ToAudio, any(noteMsg{id: id, event: patchgrid.ControlEvent{On: on, Note: note, Velocity: velocity}}))
}

// publish builds a complete new snapshot from the control tables and
// atomically swaps it in. The audio thread keeps using the old snapshot for
// at most the block it already started; it can never observe the graph
// half-mutated.
func (e *Engine) publish() {
	e.state = Mutating
	snap := e.buildSnapshot()
	old := e.current.Swap(snap)
	if old != nil {
		old.release()
	}
	if len(e.order) > 0 {
		e.state = Built
	} else {
		e.state = Idle
	}
}

func (e *Engine) buildSnapshot() *Snapshot {
	ids, err := topoOrder(e.order, e.conns)
	if err != nil {
		// connections are validated before they are accepted, so the control
		// tables can never hold a cycle
		panic(err)
	}
	snap := &Snapshot{
		order:    make([]*slot, 0, len(ids)),
		byID:     make(map[int]*slot, len(ids)),
		conns:    append([]patchgrid.Connection{}, e.conns...),
		masterID: e.masterID,
		retired:  e.retired,
	}
	for _, id := range ids {
		entry := e.mods[id]
		info := entry.mod.Info()
		numOut := len(info.Outputs)
		if info.Sink {
			numOut = sinkChannels
		}
		s := &slot{
			id:     id,
			mod:    entry.mod,
			info:   info,
			out:    make([][]float32, numOut),
			in:     make([][]float32, len(info.Inputs)),
			modIn:  make([][]float32, info.NumModChannels()),
			events: make([]patchgrid.ControlEvent, 0, maxPendingEvents),
		}
		for i := range s.out {
			s.out[i] = *e.getBuf()
		}
		if tl, ok := entry.mod.(patchgrid.TimelineProvider); ok && tl.CanProvideTimeline() {
			s.timeline = tl
		}
		s.block = patchgrid.Block{Frames: e.blockSize, In: s.in, Out: s.out, Mod: s.modIn}
		snap.byID[id] = s
		snap.order = append(snap.order, s)
		if info.Sink {
			snap.sinks = append(snap.sinks, s)
		}
	}
	for _, c := range snap.conns {
		src := snap.byID[c.From]
		dst := snap.byID[c.To]
		buf := src.out[c.FromChannel]
		if base := dst.info.ModBase(); c.ToChannel >= base {
			dst.modIn[c.ToChannel-base] = buf
		} else {
			dst.in[c.ToChannel] = buf
		}
	}
	if e.masterID != 0 {
		if s, ok := snap.byID[e.masterID]; ok && s.timeline != nil {
			snap.master = s
		}
	}
	snap.refs.Store(1)
	return snap
}

func (e *Engine) getBuf() *[]float32 {
	buf := e.bufPool.Get().(*[]float32)
	if len(*buf) != e.blockSize {
		b := make([]float32, e.blockSize)
		return &b
	}
	clear(*buf)
	return buf
}

// reclaimLoop recycles the block buffers of retired snapshots back into the
// pool. It is the only place buffers are freed, so the audio callback never
// sees an allocation or deallocation spike.
func (e *Engine) reclaimLoop() {
	for {
		select {
		case snap := <-e.retired:
			for _, s := range snap.order {
				for i := range s.out {
					buf := s.out[i]
					e.bufPool.Put(&buf)
				}
			}
		case <-e.broker.CloseReclaim:
			close(e.broker.FinishedReclaim)
			return
		}
	}
}

// sinkChannels is the hidden stereo output bus of sink modules: sinks
// declare no public outputs, but their Process still writes the mixdown the
// engine sums into the host buffer.
const sinkChannels = 2
