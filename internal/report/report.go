// Package report formats a training run's terminal state for human and
// JSON consumption. The engine always computes in float64; this package
// rounds that output to a fixed number of decimal places for display,
// the teacher's idiom (internal/sizing, internal/montecarlo) for
// presenting a float as a precise decimal string.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

// displayPlaces is how many decimal places the value and gradient norm
// round to for display; the engine's convergence test still runs on the
// unrounded float64.
const displayPlaces = 6

// Summary is the terminal-state dump: the reason the engine stopped, the
// final iterate, and rounded scalar diagnostics.
type Summary struct {
	Reason        string          `json:"reason"`
	Iteration     int             `json:"iteration"`
	Value         decimal.Decimal `json:"value"`
	GradientNorm  decimal.Decimal `json:"gradient_norm"`
	X             []IndexValue    `json:"x"`
}

// IndexValue is one nonzero (or dense-positional) component of the final
// iterate, rounded for display.
type IndexValue struct {
	Index int             `json:"index"`
	Value decimal.Decimal `json:"value"`
}

// Build summarizes s's terminal state under the given termination reason.
func Build(reason string, s *state.State) Summary {
	summary := Summary{
		Reason:       reason,
		Iteration:    s.Iteration,
		Value:        round(s.Value),
		GradientNorm: round(vector.Norm2(s.Grad)),
	}
	s.X.Each(func(i int, v float64) {
		if v != 0 {
			summary.X = append(summary.X, IndexValue{Index: i, Value: round(v)})
		}
	})
	return summary
}

func round(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(displayPlaces)
}

// String renders a human-readable one-paragraph summary.
func (s Summary) String() string {
	return fmt.Sprintf("reason=%s iteration=%d value=%s gradient_norm=%s nonzero=%d",
		s.Reason, s.Iteration, s.Value.String(), s.GradientNorm.String(), len(s.X))
}

// JSON renders the summary as indented JSON.
func (s Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
