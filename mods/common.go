package mods

import (
	"fmt"

	"github.com/patchgrid/patchgrid"
)

// setParam is the shared SetParam body: look up the descriptor, clamp, store
// through the pointer table. Unknown names are an error so typos in documents
// surface at load time.
func setParam(info *patchgrid.ModuleInfo, name string, value float32, targets map[string]*float32) error {
	p, ok := info.ParamByName(name)
	if !ok {
		return fmt.Errorf("module %q has no parameter %q", info.Type, name)
	}
	dst, ok := targets[name]
	if !ok {
		return fmt.Errorf("module %q has no parameter %q", info.Type, name)
	}
	*dst = p.Clamp(value)
	return nil
}

// modulated resolves the effective value of a parameter for this block: the
// base value when the modulation channel is unconnected, the policy-combined
// value when it carries a signal.
func modulated(info *patchgrid.ModuleInfo, block *patchgrid.Block, name string, base float32) float32 {
	ch, ok := info.ModChannel(name)
	if !ok {
		return base
	}
	cv, ok := block.CV(ch)
	if !ok {
		return base
	}
	p, _ := info.ParamByName(name)
	return p.Modulate(base, cv)
}
