package evaluator

import (
	"math"
	"testing"

	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

func feat(pairs ...int) *vector.Sparse {
	s := vector.NewSparse()
	for i := 0; i < len(pairs); i += 2 {
		s.Set(pairs[i], float64(pairs[i+1]))
	}
	return s
}

func TestEvaluateAllPositiveZeroModelGivesLog2Loss(t *testing.T) {
	l := &Logistic{
		Instances: []Instance{{Features: feat(0, 1), NumPositives: 1, NumAppearances: 1}},
		Dim:       1,
	}
	model := vector.NewDense(1)

	value, _ := l.Evaluate(model)
	// score=0 -> loss=log(2); value starts at bias 1.0.
	want := 1.0 + math.Log(2)
	if math.Abs(value-want) > 1e-9 {
		t.Fatalf("value = %v, want %v", value, want)
	}
}

func TestEvaluateGradientPointsTowardReducingPositiveLoss(t *testing.T) {
	l := &Logistic{
		Instances: []Instance{{Features: feat(0, 1), NumPositives: 1, NumAppearances: 1}},
		Dim:       1,
	}
	model := vector.NewDense(1)

	_, grad := l.Evaluate(model)
	// A positive example's gradient w.r.t. its own feature must be
	// negative at the zero model: increasing the weight reduces loss.
	if grad.At(0) >= 0 {
		t.Fatalf("grad[0] = %v, expected negative", grad.At(0))
	}
}

func TestEvaluateClampsExtremeScores(t *testing.T) {
	l := &Logistic{
		Instances: []Instance{{Features: feat(0, 1), NumPositives: 1, NumAppearances: 1}},
		Dim:       1,
	}
	model := vector.NewDenseFrom([]float64{1000})

	value, _ := l.Evaluate(model)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.Fatalf("expected a finite clamped value, got %v", value)
	}
}

func TestRegularizationFactorScalesWithL1Weight(t *testing.T) {
	model := vector.NewDenseFrom([]float64{2, -3})
	got := regularizationFactor(model, 0.5)
	want := 0.5 * (2 + 3)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("regularizationFactor = %v, want %v", got, want)
	}
}
