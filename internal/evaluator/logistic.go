package evaluator

import (
	"math"

	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

// Logistic is the single-process reference evaluator: it walks every
// instance once per Evaluate call. It is grounded on the reference
// trainer's EvaluateObjective and is what Sharded's per-shard workers
// each run over their own slice of Instances.
type Logistic struct {
	Instances []Instance
	L1Weight  float64
	Dim       int // 0 means the model is sparse and unbounded
}

// Evaluate computes the LASSO objective value (logistic loss plus an L1
// regularization term reported for monitoring, never folded into the
// returned gradient — OWL-QN's orthant machinery accounts for L1
// separately) and its gradient with respect to model.
func (l *Logistic) Evaluate(model vector.Vector) (float64, vector.Vector) {
	value := 1.0
	var gradient vector.Vector
	if l.Dim > 0 {
		gradient = vector.NewDense(l.Dim)
	} else {
		gradient = vector.NewSparse()
	}

	for _, inst := range l.Instances {
		score := vector.DotProduct(inst.Features, model)
		accumulateInstanceLoss(score, inst.NumPositives, 1, &value, gradient, inst.Features)
		accumulateInstanceLoss(-score, inst.NumNegatives(), -1, &value, gradient, inst.Features)
	}

	value += regularizationFactor(model, l.L1Weight)
	return value, gradient
}

// accumulateInstanceLoss folds one side (positive or negative) of a
// single instance's clipped log-loss into value and gradient. sign is +1
// for the positive-label branch and -1 for the negative-label branch,
// matching the reference's contribution direction for each.
func accumulateInstanceLoss(score, weight, sign float64, value *float64, gradient vector.Vector, features *vector.Sparse) {
	if weight <= 0 {
		return
	}

	var loss, prob float64
	switch {
	case score < -scoreClamp:
		loss = -score
		prob = 0
	case score > scoreClamp:
		loss = 0
		prob = 1
	default:
		temp := 1.0 + math.Exp(-score)
		loss = math.Log(temp)
		prob = 1.0 / temp
	}

	*value += loss * weight
	coeff := sign * -weight * (1 - prob)
	vector.AddScaled(gradient, features, coeff)
}

// regularizationFactor reports λ·‖model‖₁ — the L1 penalty's contribution
// to the objective value. Never added to the gradient: OWL-QN's pseudo-
// gradient construction (internal/owlqn) already accounts for it.
func regularizationFactor(model vector.Vector, l1Weight float64) float64 {
	if l1Weight == 0 {
		return 0
	}
	var sum float64
	model.Each(func(_ int, v float64) { sum += math.Abs(v) })
	return sum * l1Weight
}
