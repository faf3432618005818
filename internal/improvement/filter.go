// Package improvement implements the bounded-window relative-improvement
// test OWL-QN uses as its convergence criterion.
package improvement

import "math"

// Window is the number of readings averaged over (W in spec.md).
const Window = 5

// Filter holds up to 2*Window recent objective values.
type Filter struct {
	history []float64
}

// New returns an empty filter.
func New() *Filter {
	return &Filter{}
}

// GetImprovement reports the relative average improvement implied by
// new_value against the oldest reading in the window, then slides the
// window forward. Returns +Inf until the window holds more than Window
// entries.
func (f *Filter) GetImprovement(newValue float64) float64 {
	ret := math.Inf(1)

	if len(f.history) > Window {
		front := f.history[0]
		avgImprovement := (front - newValue) / float64(len(f.history))
		ret = avgImprovement / math.Abs(newValue)

		if len(f.history) == 2*Window {
			f.history = f.history[1:]
		}
	}

	f.history = append(f.history, newValue)
	return ret
}

// Snapshot returns a copy of the current window, oldest first, for
// serialization.
func (f *Filter) Snapshot() []float64 {
	out := make([]float64, len(f.history))
	copy(out, f.history)
	return out
}

// Restore replaces the window verbatim, as read back by the serializer.
func (f *Filter) Restore(values []float64) {
	f.history = append(f.history[:0], values...)
}
