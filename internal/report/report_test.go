package report

import (
	"strings"
	"testing"

	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

func TestBuildRoundsValueAndListsNonzeroEntries(t *testing.T) {
	s := state.New(vector.NewDenseFrom([]float64{1.0000001, 0, -2.3333335}), state.HyperParameters{
		MemorySize: 1, MaxLineSearchSteps: 1, MaxIterations: 1, ConvergenceTolerance: 1e-4,
	})
	s.Value = 3.14159265
	s.Grad = vector.NewDenseFrom([]float64{0, 0, 0})
	s.Iteration = 7

	summary := Build("CONVERGED", s)

	if summary.Reason != "CONVERGED" || summary.Iteration != 7 {
		t.Fatalf("summary = %+v", summary)
	}
	if !summary.Value.Equal(round(3.14159265)) {
		t.Fatalf("value = %s", summary.Value.String())
	}
	if len(summary.X) != 2 {
		t.Fatalf("nonzero entries = %d, want 2", len(summary.X))
	}
}

func TestStringIncludesReasonAndValue(t *testing.T) {
	s := state.New(vector.NewDense(1), state.HyperParameters{
		MemorySize: 1, MaxLineSearchSteps: 1, MaxIterations: 1, ConvergenceTolerance: 1e-4,
	})
	s.Grad = vector.NewDense(1)
	s.Value = 1.5

	out := Build("MAX_ITERATIONS", s).String()
	if !strings.Contains(out, "reason=MAX_ITERATIONS") || !strings.Contains(out, "value=1.5") {
		t.Fatalf("String() = %q", out)
	}
}
