package mods

import (
	"testing"

	"github.com/patchgrid/patchgrid"
	"github.com/patchgrid/patchgrid/engine"
)

func TestBuiltinPresetsLoad(t *testing.T) {
	presets := LoadPresets()
	if len(presets) < 3 {
		t.Fatalf("only %v builtin presets found", len(presets))
	}
	for _, p := range presets {
		if p.User {
			continue // the test environment may have user presets, skip them
		}
		t.Run(p.Name, func(t *testing.T) {
			broker := engine.NewBroker()
			e := engine.NewEngine(broker, 44100, 64)
			defer e.Close()
			doc := p.Doc.Copy()
			if err := e.LoadDocument(&doc); err != nil {
				t.Fatalf("preset does not load: %v", err)
			}
			out := make(patchgrid.AudioBuffer, 64)
			e.ProcessBlock(out) // must not panic or fault
		})
	}
}

func TestPresetByName(t *testing.T) {
	presets := LoadPresets()
	if _, ok := presets.ByName("basic tone"); !ok {
		t.Errorf("builtin preset %q not found", "basic tone")
	}
	if _, ok := presets.ByName("no such preset"); ok {
		t.Errorf("ByName found a preset that does not exist")
	}
}
