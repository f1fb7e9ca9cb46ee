package mods

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/patchgrid/patchgrid"
	"gopkg.in/yaml.v2"
)

//go:embed presets/*
var presetFS embed.FS

type (
	// Preset is a complete ready-to-load patch. Builtin presets are embedded
	// in the binary; user presets live under the user config directory and
	// shadow nothing, both kinds are listed side by side.
	Preset struct {
		Name string
		User bool
		Doc  patchgrid.Document
	}

	Presets []Preset
)

// LoadPresets collects the embedded presets and any user presets found under
// <UserConfigDir>/patchgrid/presets. Unparseable files are skipped silently;
// a broken user preset should not take the whole bank down.
func LoadPresets() Presets {
	var p Presets
	p.loadFromFs(presetFS, false)
	if configDir, err := os.UserConfigDir(); err == nil {
		p.loadFromFs(os.DirFS(filepath.Join(configDir, "patchgrid")), true)
	}
	sort.Slice(p, func(i, j int) bool {
		if p[i].Name == p[j].Name {
			return p[i].User && !p[j].User
		}
		return p[i].Name < p[j].Name
	})
	return p
}

func (p *Presets) loadFromFs(fsys fs.FS, userDefined bool) {
	fs.WalkDir(fsys, "presets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil
		}
		var doc patchgrid.Document
		if yaml.UnmarshalStrict(data, &doc) == nil {
			name := filepath.Base(path)
			name = name[:len(name)-len(filepath.Ext(name))]
			*p = append(*p, Preset{
				Name: strings.ReplaceAll(name, "_", " "),
				User: userDefined,
				Doc:  doc,
			})
		}
		return nil
	})
}

// ByName finds a preset by its display name.
func (p Presets) ByName(name string) (Preset, bool) {
	for _, preset := range p {
		if preset.Name == name {
			return preset, true
		}
	}
	return Preset{}, false
}

// SaveUserPreset writes a patch to the user preset directory, creating it if
// needed. An existing preset of the same name is overwritten.
func SaveUserPreset(name string, doc *patchgrid.Document) error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(configDir, "patchgrid", "presets")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, presetFilename(name)+".yml"), data, 0644)
}

func presetFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
