// Package evaluator computes the LASSO logistic-regression objective
// (value and gradient) the OWL-QN engine optimizes. The distributed
// map/reduce evaluator itself is out of scope (spec.md §1); this package
// provides the single-process reference realization and a worker-pool
// based data-parallel wrapper that exercises the same per-instance
// formula so a distributed evaluator can be swapped in behind the same
// contract without changing the engine.
package evaluator

import "github.com/atlas-desktop/owlqn-trainer/internal/vector"

// Evaluator computes f(model) and ∇f(model) for the current trial
// iterate. The OWL-QN engine treats this as an external collaborator
// (spec.md §1): it only ever calls Evaluate and feeds the result to
// Engine.SetObjectiveAndGradient.
type Evaluator interface {
	Evaluate(model vector.Vector) (value float64, gradient vector.Vector)
}

// Instance is one labeled training example: a sparse feature vector with
// aggregated positive/negative example counts (the reference data format
// groups identical feature vectors and carries their counts rather than
// storing one row per example).
type Instance struct {
	Features     *vector.Sparse
	NumPositives float64
	NumAppearances float64
}

// NumNegatives is the count of negative occurrences of this instance.
func (in Instance) NumNegatives() float64 {
	return in.NumAppearances - in.NumPositives
}

// scoreClamp bounds the logistic score before exponentiating, matching
// the reference implementation's overflow guard: outside [-30, 30] the
// sigmoid has already saturated to machine precision.
const scoreClamp = 30.0
