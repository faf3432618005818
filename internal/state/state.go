// Package state owns OptimizerState S — the complete durable snapshot the
// OWL-QN engine advances each iteration and the serializer persists after
// every probe (spec.md §3).
package state

import "github.com/atlas-desktop/owlqn-trainer/internal/vector"

// HyperParameters are the construction-time knobs from spec.md §6.
type HyperParameters struct {
	MemorySize            int     // m: cap on L-BFGS history length
	L1Weight              float64 // λ: L1 regularization strength, λ>=0
	MaxLineSearchSteps    int
	MaxIterations         int
	ConvergenceTolerance  float64
}

// State is the full persistent snapshot (spec.md §3 table).
type State struct {
	X        vector.Vector // current iterate (committed)
	NewX     vector.Vector // trial iterate being probed by line search
	Grad     vector.Vector // gradient at X
	NewGrad  vector.Vector // gradient at NewX; also carries pseudo-descent dir
	Dir      vector.Vector // current search direction

	SList   []vector.Vector // (x'-x) snapshots, oldest first, len<=m; nil entry = NULL
	YList   []vector.Vector // (g'-g) snapshots, same length/order as SList
	RhoList []float64       // rho_k = <s_k, y_k>, same length/order

	Alphas []float64 // scratch buffer of m scalars, reused every two-loop recursion

	Value            float64 // f(x') last reported by evaluator
	OldValue         float64 // f(x) at start of current line search
	DirDeriv         float64 // <d, pseudo-gradient> at start of current line search
	StepFraction     float64 // current line-search step size
	DegradeFactor    float64 // backoff multiplier on StepFraction per failed probe

	Iteration        int // count of successfully completed outer iterations
	LineSearchStep   int // probes attempted in the current outer iteration

	HyperParameters
}

// New constructs S seeded with x0; x and x' both start at x0, histories
// empty, iteration 0. MemorySize, MaxLineSearchSteps, MaxIterations must
// be > 0 and ConvergenceTolerance > 0, matching the original's
// construction-time CHECKs.
func New(x0 vector.Vector, hp HyperParameters) *State {
	if hp.MemorySize <= 0 {
		panic("state: memory_size must be > 0")
	}
	if hp.MaxLineSearchSteps <= 0 {
		panic("state: max_line_search_steps must be > 0")
	}
	if hp.MaxIterations <= 0 {
		panic("state: max_iterations must be > 0")
	}
	if hp.ConvergenceTolerance <= 0 {
		panic("state: convergence_tolerance must be > 0")
	}
	if hp.L1Weight < 0 {
		panic("state: l1_weight must be >= 0")
	}

	return &State{
		X:               x0,
		NewX:            cloneVector(x0),
		Alphas:          make([]float64, hp.MemorySize),
		StepFraction:    1,
		DegradeFactor:   0.5,
		HyperParameters: hp,
	}
}

func cloneVector(v vector.Vector) vector.Vector {
	switch t := v.(type) {
	case *vector.Dense:
		return t.Clone()
	case *vector.Sparse:
		return t.Clone()
	default:
		return v
	}
}

// HistoryLen returns the current length of the s/y/rho lists (k <= m).
func (s *State) HistoryLen() int {
	return len(s.SList)
}

// CheckInvariants validates the structural invariants spec.md §3 requires
// to hold at every observable point. Intended for tests and for defensive
// assertions in the serializer round-trip.
func (s *State) CheckInvariants() error {
	if len(s.SList) != len(s.YList) || len(s.SList) != len(s.RhoList) {
		return &InvariantViolation{"s/y/rho list length mismatch"}
	}
	if len(s.SList) > s.MemorySize {
		return &InvariantViolation{"history length exceeds memory_size"}
	}
	if len(s.Alphas) != s.MemorySize {
		return &InvariantViolation{"alpha buffer size != memory_size"}
	}
	if s.LineSearchStep < 0 || s.LineSearchStep > s.MaxLineSearchSteps {
		return &InvariantViolation{"line_search_step out of bounds"}
	}
	return nil
}

// InvariantViolation is a fatal programmer-error condition (spec.md §7):
// the caller cannot reasonably continue.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "state: invariant violation: " + e.Reason
}
