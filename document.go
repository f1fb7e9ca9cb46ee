package patchgrid

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	// Document is the persisted form of a graph: module instances keyed by
	// stable logical id plus a connection table referencing those ids and
	// channel numbers. Logical ids must survive a save/load cycle unchanged
	// or the connections fail to resolve.
	Document struct {
		// Tempo of the internal clock. Zero means unset; the engine falls
		// back to DefaultTempoBPM.
		BPM float64 `yaml:",omitempty" json:"bpm,omitempty"`

		// Playing is the persisted transport flag. Absent defaults to
		// stopped, which is the safe value.
		Playing bool `yaml:",omitempty" json:"playing,omitempty"`

		// Master is the logical id of the elected timeline master, 0 for
		// none.
		Master int `yaml:",omitempty" json:"master,omitempty"`

		Modules     []ModuleState `json:"modules"`
		Connections []Connection  `yaml:",flow" json:"connections"`
	}

	// ModuleState is one persisted module instance: its stable logical id,
	// type tag and base parameter values.
	ModuleState struct {
		ID     int                `json:"id"`
		Type   string             `json:"type"`
		Params map[string]float32 `yaml:",flow,omitempty" json:"params,omitempty"`
	}
)

// ReadDocument parses a graph document. JSON is tried first and YAML second,
// so both serializations load transparently.
func ReadDocument(r io.Reader) (*Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read document: %w", err)
	}
	var doc Document
	if errJSON := json.Unmarshal(b, &doc); errJSON != nil {
		if errYaml := yaml.Unmarshal(b, &doc); errYaml != nil {
			return nil, fmt.Errorf("could not unmarshal document: %v / %v", errYaml, errJSON)
		}
	}
	return &doc, nil
}

// Write serializes the document as YAML.
func (d *Document) Write(w io.Writer) error {
	contents, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("could not marshal document: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("could not write document: %w", err)
	}
	return nil
}

// Copy makes a deep copy of a Document.
func (d *Document) Copy() Document {
	modules := make([]ModuleState, len(d.Modules))
	for i, m := range d.Modules {
		params := make(map[string]float32, len(m.Params))
		for k, v := range m.Params {
			params[k] = v
		}
		modules[i] = ModuleState{ID: m.ID, Type: m.Type, Params: params}
	}
	connections := make([]Connection, len(d.Connections))
	copy(connections, d.Connections)
	return Document{
		BPM:         d.BPM,
		Playing:     d.Playing,
		Master:      d.Master,
		Modules:     modules,
		Connections: connections,
	}
}
