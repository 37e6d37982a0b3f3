package flashlight

// DefaultRowAspectRatioThreshold is the row-packing threshold used when the
// configured options leave it unset.
const DefaultRowAspectRatioThreshold = 5.0

// Options are the tunables that influence tiling. Extra carries
// host-specific settings the engine does not interpret but whose changes
// still trigger a retile; values must be comparable.
type Options struct {
	// RowAspectRatioThreshold is the cumulative aspect-ratio sum at which a
	// row is considered full. Zero means DefaultRowAspectRatioThreshold.
	RowAspectRatioThreshold float64

	// Extra holds opaque host settings carried alongside the engine's own.
	Extra map[string]any
}

// threshold returns the effective row threshold.
func (o Options) threshold() float64 {
	if o.RowAspectRatioThreshold <= 0 {
		return DefaultRowAspectRatioThreshold
	}
	return o.RowAspectRatioThreshold
}

// merge overlays the set fields of partial onto o and reports whether any
// value actually changed. Extra entries are compared shallowly and copied on
// write, so neither side's map is aliased.
func (o Options) merge(partial Options) (Options, bool) {
	changed := false
	if partial.RowAspectRatioThreshold != 0 && partial.RowAspectRatioThreshold != o.RowAspectRatioThreshold {
		o.RowAspectRatioThreshold = partial.RowAspectRatioThreshold
		changed = true
	}
	for k, v := range partial.Extra {
		cur, ok := o.Extra[k]
		if ok && cur == v {
			continue
		}
		extra := make(map[string]any, len(o.Extra)+1)
		for ek, ev := range o.Extra {
			extra[ek] = ev
		}
		extra[k] = v
		o.Extra = extra
		changed = true
	}
	return o, changed
}
