package patchgrid

type (
	// ModPolicy is the rule by which a control voltage combines with a
	// parameter's base value. There are exactly two policies and every
	// CV-style module implements one of them; both sides of a modulation pair
	// must agree or the modulation depths will not match audibly.
	ModPolicy int

	// Param describes one named, range-bound parameter of a module type. If
	// Modulatable is set, the parameter gets one reserved channel on the
	// module's modulation bus, assigned at construction in declaration order
	// and never renumbered afterwards (persisted connections reference the
	// channel by index).
	Param struct {
		Name        string
		Min         float32
		Max         float32
		Default     float32
		Modulatable bool
		Policy      ModPolicy
	}
)

const (
	// ModAdditive nudges the parameter around its base value:
	// clamp(base + (cv-0.5)*range, min, max). A centered control signal
	// (cv = 0.5) leaves the parameter untouched.
	ModAdditive ModPolicy = iota

	// ModAbsolute overrides the parameter across its entire range:
	// lerp(min, max, cv). The base value is ignored while connected.
	ModAbsolute
)

func (p ModPolicy) String() string {
	switch p {
	case ModAdditive:
		return "additive"
	case ModAbsolute:
		return "absolute"
	}
	return "???"
}

// Clamp limits v to the parameter's range.
func (p *Param) Clamp(v float32) float32 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Modulate combines the base value with a control voltage according to the
// parameter's policy. cv is expected in [0,1] but is not required to be;
// additive results are clamped to the range either way.
func (p *Param) Modulate(base, cv float32) float32 {
	switch p.Policy {
	case ModAbsolute:
		return p.Min + (p.Max-p.Min)*cv
	default:
		return p.Clamp(base + (cv-0.5)*(p.Max-p.Min))
	}
}
