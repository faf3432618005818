package tuning

import (
	"context"
	"testing"

	"github.com/atlas-desktop/owlqn-trainer/internal/evaluator"
	"github.com/atlas-desktop/owlqn-trainer/internal/improvement"
	"github.com/atlas-desktop/owlqn-trainer/internal/owlqn"
	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

// trainToConvergence runs a fresh engine under the given l1Weight and
// returns the converged objective value, for use as a tuning objective.
func trainToConvergence(l1Weight float64) (float64, error) {
	eval := &evaluator.Logistic{Instances: evaluator.ToyDataset(), L1Weight: l1Weight, Dim: evaluator.ToyDim}
	s := state.New(vector.NewDense(evaluator.ToyDim), state.HyperParameters{
		MemorySize: 10, L1Weight: l1Weight, MaxLineSearchSteps: 20,
		MaxIterations: 500, ConvergenceTolerance: 1e-4,
	})
	engine := owlqn.New(s, improvement.New(), nil)

	value, grad := eval.Evaluate(s.NewX)
	engine.SetObjectiveAndGradient(value, grad)
	outcome := engine.Initialize()
	for !outcome.Done {
		value, grad = eval.Evaluate(s.NewX)
		engine.SetObjectiveAndGradient(value, grad)
		outcome = engine.GradientDescent()
	}
	return s.Value, nil
}

func TestGridSearchFindsLowestObjectiveOverL1Weight(t *testing.T) {
	searcher := NewSearcher(nil, 1)
	searcher.GridResolution = 3

	result, err := searcher.Grid(context.Background(), []Parameter{{Name: "l1_weight", Min: 0.01, Max: 1.0}},
		func(p ParamSet) (float64, error) { return trainToConvergence(p["l1_weight"]) })
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	if len(result.AllResults) == 0 {
		t.Fatal("expected at least one evaluation")
	}
	for _, r := range result.AllResults {
		if r.Score < result.BestScore {
			t.Fatalf("BestScore %v is not the minimum observed (%v)", result.BestScore, r.Score)
		}
	}
}

func TestRandomSearchRespectsTrialCount(t *testing.T) {
	searcher := NewSearcher(nil, 42)
	searcher.RandomTrials = 5

	result, err := searcher.Random(context.Background(), []Parameter{{Name: "l1_weight", Min: 0.01, Max: 1.0}},
		func(p ParamSet) (float64, error) { return trainToConvergence(p["l1_weight"]) })
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if len(result.AllResults) != 5 {
		t.Fatalf("evaluations = %d, want 5", len(result.AllResults))
	}
}
