package owlqn_test

import (
	"testing"

	"github.com/atlas-desktop/owlqn-trainer/internal/evaluator"
	"github.com/atlas-desktop/owlqn-trainer/internal/improvement"
	"github.com/atlas-desktop/owlqn-trainer/internal/owlqn"
	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

// TestToyDatasetConverges is spec.md §8 scenario 6: a driver running the
// toy logistic-regression training data in the repository must terminate
// with ReasonConverged within max_iterations, and every line-search
// acceptance must not increase the objective value.
func TestToyDatasetConverges(t *testing.T) {
	eval := &evaluator.Logistic{Instances: evaluator.ToyDataset(), L1Weight: 0.1, Dim: evaluator.ToyDim}

	s := state.New(vector.NewDense(evaluator.ToyDim), state.HyperParameters{
		MemorySize:           10,
		L1Weight:             0.1,
		MaxLineSearchSteps:   20,
		MaxIterations:        500,
		ConvergenceTolerance: 1e-4,
	})
	engine := owlqn.New(s, improvement.New(), nil)

	value, grad := eval.Evaluate(s.NewX)
	engine.SetObjectiveAndGradient(value, grad)
	outcome := engine.Initialize()

	lastAccepted := value
	for !outcome.Done {
		value, grad = eval.Evaluate(s.NewX)
		engine.SetObjectiveAndGradient(value, grad)
		prevIteration := s.Iteration
		outcome = engine.GradientDescent()
		if s.Iteration > prevIteration {
			if s.Value > lastAccepted+1e-9 {
				t.Fatalf("objective increased after acceptance: %v -> %v", lastAccepted, s.Value)
			}
			lastAccepted = s.Value
		}
	}

	if outcome.Reason != owlqn.ReasonConverged {
		t.Fatalf("reason = %s, want %s", outcome.Reason, owlqn.ReasonConverged)
	}
	if s.Iteration >= 500 {
		t.Fatalf("iteration = %d, expected convergence well before the budget", s.Iteration)
	}
}
