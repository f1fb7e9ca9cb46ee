package engine

import (
	"fmt"

	"github.com/patchgrid/patchgrid"
)

// LoadDocument replaces the whole graph with the persisted one. Logical ids
// are taken from the document verbatim, which is what keeps the connection
// table resolvable across a save/load cycle. Missing optional fields default
// to safe values: an absent playing flag means stopped, an absent tempo
// means DefaultTempoBPM.
//
// On error the engine is left with whatever had been applied so far but
// nothing is published; callers should treat a failed load as fatal for the
// session rather than try to continue with half a graph.
func (e *Engine) LoadDocument(doc *patchgrid.Document) error {
	e.reset()
	for _, m := range doc.Modules {
		if _, err := e.addModuleNoPublish(m.Type, m.ID); err != nil {
			return fmt.Errorf("load module %v: %w", m.ID, err)
		}
		for name, value := range m.Params {
			if err := e.SetParam(m.ID, name, value); err != nil {
				return fmt.Errorf("load module %v: %w", m.ID, err)
			}
		}
	}
	for _, c := range doc.Connections {
		if err := e.validateConnection(c); err != nil {
			return err
		}
		e.conns = append(e.conns, c)
	}
	if doc.Master != 0 {
		entry, ok := e.mods[doc.Master]
		if !ok {
			return fmt.Errorf("document elects unknown master %v", doc.Master)
		}
		tl, ok := entry.mod.(patchgrid.TimelineProvider)
		if !ok || !tl.CanProvideTimeline() {
			return fmt.Errorf("document master %v cannot provide a timeline", doc.Master)
		}
		e.masterID = doc.Master
	}
	e.publish()
	TrySend(e.broker.ToAudio, any(masterMsg{id: e.masterID}))
	bpm := doc.BPM
	if bpm <= 0 {
		bpm = patchgrid.DefaultTempoBPM
	}
	e.SetBPM(bpm)
	if doc.Playing {
		e.Play()
	} else {
		e.Stop()
	}
	return nil
}

// SaveDocument captures the current graph as a persistable document.
func (e *Engine) SaveDocument() *patchgrid.Document {
	doc := &patchgrid.Document{
		BPM:     e.bpm,
		Playing: e.playing,
		Master:  e.masterID,
	}
	for _, id := range e.order {
		entry := e.mods[id]
		params := make(map[string]float32, len(entry.params))
		for k, v := range entry.params {
			params[k] = v
		}
		doc.Modules = append(doc.Modules, patchgrid.ModuleState{
			ID:     id,
			Type:   entry.mod.Info().Type,
			Params: params,
		})
	}
	doc.Connections = append(doc.Connections, e.conns...)
	return doc
}

func (e *Engine) reset() {
	e.mods = make(map[int]*moduleEntry)
	e.order = e.order[:0]
	e.conns = e.conns[:0]
	e.masterID = 0
	e.nextID = 0
	if old := e.current.Swap(nil); old != nil {
		old.release()
	}
	e.state = Idle
}

// addModuleNoPublish is the load path: one publish at the end of the load
// instead of one per module.
func (e *Engine) addModuleNoPublish(typeTag string, id int) (int, error) {
	if id <= 0 || id > patchgrid.MaxLogicalID {
		return 0, fmt.Errorf("logical id %v out of range", id)
	}
	if _, ok := e.mods[id]; ok {
		return 0, fmt.Errorf("logical id %v already in use", id)
	}
	mod, err := patchgrid.NewModule(typeTag)
	if err != nil {
		return 0, err
	}
	if err := mod.Prepare(e.sampleRate, e.blockSize); err != nil {
		return 0, fmt.Errorf("prepare %v: %w", typeTag, err)
	}
	info := mod.Info()
	params := make(map[string]float32, len(info.Params))
	for _, p := range info.Params {
		params[p.Name] = p.Default
	}
	e.mods[id] = &moduleEntry{mod: mod, params: params}
	e.order = append(e.order, id)
	if id > e.nextID {
		e.nextID = id
	}
	return id, nil
}
