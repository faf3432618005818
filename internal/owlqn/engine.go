// Package owlqn implements the Orthant-Wise Limited-memory Quasi-Newton
// engine: the state machine that turns a sequence of (value, gradient)
// evaluations into a converged L1-regularized parameter vector.
package owlqn

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/owlqn-trainer/internal/improvement"
	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

const lineSearchC1 = 1e-4

// Engine drives one State through Initialize and repeated GradientDescent
// calls until an Outcome reports Done. The caller owns the evaluation
// loop: after each non-Done Outcome it must evaluate the objective at
// NewX and call SetObjectiveAndGradient before calling GradientDescent
// again.
type Engine struct {
	S      *state.State
	Filter *improvement.Filter
	log    *zap.Logger
}

// New wraps an existing state and improvement filter (freshly constructed
// or restored from a checkpoint) in an Engine.
func New(s *state.State, filter *improvement.Filter, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{S: s, Filter: filter, log: log}
}

// SetObjectiveAndGradient records the evaluator's result for the point
// the engine last asked it to probe (NewX).
func (e *Engine) SetObjectiveAndGradient(value float64, gradient vector.Vector) {
	e.S.Value = value
	e.S.NewGrad = gradient
}

// Initialize must be called exactly once, immediately after the first
// SetObjectiveAndGradient. It seeds Grad from the first gradient,
// computes the initial steepest-descent direction, and requests the
// first line-search probe.
func (e *Engine) Initialize() Outcome {
	s := e.S
	s.Grad = s.NewGrad
	e.Filter.GetImprovement(s.Value)

	e.updateDir()
	s.DirDeriv = e.dirDeriv()
	if s.DirDeriv >= 0 {
		e.log.Warn("non-descent direction at initialization", zap.Float64("dir_deriv", s.DirDeriv))
		return Outcome{Done: true, Reason: ReasonNonDescentDirection}
	}

	normDir := vector.Norm2(s.Dir)
	s.StepFraction = 1 / normDir
	s.DegradeFactor = 0.1

	s.OldValue = s.Value
	e.getNextPoint(s.StepFraction)
	return Outcome{}
}

// GradientDescent advances the state machine by one Armijo probe. Expects
// SetObjectiveAndGradient to have just been called with the result at
// NewX requested by the previous Initialize/GradientDescent call.
func (e *Engine) GradientDescent() Outcome {
	s := e.S

	if s.Value <= s.OldValue+lineSearchC1*s.DirDeriv*s.StepFraction {
		improvementRatio := e.Filter.GetImprovement(s.Value)
		if improvementRatio < s.ConvergenceTolerance {
			e.log.Info("converged", zap.Int("iteration", s.Iteration), zap.Float64("value", s.Value))
			return Outcome{Done: true, Reason: ReasonConverged}
		}

		e.shift()
		if s.Iteration > s.MaxIterations {
			e.log.Warn("iteration budget exhausted", zap.Int("iteration", s.Iteration))
			return Outcome{Done: true, Reason: ReasonMaxIterations}
		}

		e.updateDir()
		s.DirDeriv = e.dirDeriv()
		if s.DirDeriv >= 0 {
			e.log.Warn("non-descent direction", zap.Int("iteration", s.Iteration), zap.Float64("dir_deriv", s.DirDeriv))
			return Outcome{Done: true, Reason: ReasonNonDescentDirection}
		}

		if s.Iteration > 0 {
			s.StepFraction = 1
			s.DegradeFactor = 0.5
		}

		s.OldValue = s.Value
		e.getNextPoint(s.StepFraction)
		return Outcome{}
	}

	s.LineSearchStep++
	if s.LineSearchStep > s.MaxLineSearchSteps {
		e.log.Warn("line search exhausted", zap.Int("iteration", s.Iteration))
		return Outcome{Done: true, Reason: ReasonLineSearchExhausted}
	}
	s.StepFraction *= s.DegradeFactor
	e.getNextPoint(s.StepFraction)
	return Outcome{}
}

func (e *Engine) updateDir() {
	e.makeSteepestDescDir()
	e.mapDirByInverseHessian()
	e.fixDirSigns()
}

func (e *Engine) makeSteepestDescDir() {
	s := e.S
	switch x := s.X.(type) {
	case *vector.Dense:
		grad := s.Grad.(*vector.Dense)
		dir, ok := s.Dir.(*vector.Dense)
		if !ok {
			dir = vector.NewDense(x.Size())
		}
		makeSteepestDescDirDense(x, grad, dir, s.L1Weight)
		s.Dir = dir
		s.NewGrad = dir.Clone()
	case *vector.Sparse:
		grad := s.Grad.(*vector.Sparse)
		dir, ok := s.Dir.(*vector.Sparse)
		if !ok {
			dir = vector.NewSparse()
		}
		makeSteepestDescDirSparse(x, grad, dir, s.L1Weight)
		s.Dir = dir
		s.NewGrad = dir.Clone()
	}
}

// mapDirByInverseHessian is the two-loop recursion. It is shape-agnostic:
// it only ever calls DotProduct/AddScaled/Scale, which dispatch on the
// concrete vector type themselves.
func (e *Engine) mapDirByInverseHessian() {
	s := e.S
	count := len(s.SList)
	if count == 0 {
		return
	}

	for i := count - 1; i >= 0; i-- {
		sv, yv := s.SList[i], s.YList[i]
		s.Alphas[i] = -vector.DotProduct(sv, s.Dir) / s.RhoList[i]
		vector.AddScaled(s.Dir, yv, s.Alphas[i])
	}

	lastY := s.YList[count-1]
	yDotY := vector.DotProduct(lastY, lastY)
	scalar := s.RhoList[count-1] / yDotY
	vector.Scale(s.Dir, scalar)

	for i := 0; i < count; i++ {
		beta := vector.DotProduct(s.YList[i], s.Dir) / s.RhoList[i]
		vector.AddScaled(s.Dir, s.SList[i], -s.Alphas[i]-beta)
	}
}

func (e *Engine) fixDirSigns() {
	s := e.S
	switch dir := s.Dir.(type) {
	case *vector.Dense:
		fixDirSignsDense(dir, s.NewGrad.(*vector.Dense), s.L1Weight)
	case *vector.Sparse:
		fixDirSignsSparse(dir, s.NewGrad.(*vector.Sparse), s.L1Weight)
	}
}

func (e *Engine) dirDeriv() float64 {
	s := e.S
	switch dir := s.Dir.(type) {
	case *vector.Dense:
		return dirDerivDense(dir, s.Grad.(*vector.Dense), s.X.(*vector.Dense), s.L1Weight)
	case *vector.Sparse:
		return dirDerivSparse(dir, s.Grad.(*vector.Sparse), s.X.(*vector.Sparse), s.L1Weight)
	}
	return 0
}

func (e *Engine) getNextPoint(alpha float64) {
	s := e.S
	switch x := s.X.(type) {
	case *vector.Dense:
		newX, ok := s.NewX.(*vector.Dense)
		if !ok {
			newX = vector.NewDense(x.Size())
		}
		getNextPointDense(newX, x, s.Dir.(*vector.Dense), alpha, s.L1Weight)
		s.NewX = newX
	case *vector.Sparse:
		newX, ok := s.NewX.(*vector.Sparse)
		if !ok {
			newX = vector.NewSparse()
		}
		getNextPointSparse(newX, x, s.Dir.(*vector.Sparse), alpha, s.L1Weight)
		s.NewX = newX
	}
}

// shift rotates NewX/NewGrad into the committed X/Grad, records the
// (s, y, rho) triple in history, and recycles the oldest triple once the
// history reaches MemorySize. The reference implementation also catches
// allocation failure here and shrinks memory_size in response; Go has no
// catchable out-of-memory condition so that recovery path is not ported
// (see SPEC_FULL.md §9).
func (e *Engine) shift() {
	s := e.S

	var nextS, nextY vector.Vector
	if len(s.SList) < s.MemorySize {
		nextS = vector.NewLike(s.X)
		nextY = vector.NewLike(s.X)
	} else {
		nextS = s.SList[0]
		nextY = s.YList[0]
		s.SList = s.SList[1:]
		s.YList = s.YList[1:]
		s.RhoList = s.RhoList[1:]
	}

	vector.AddScaledInto(nextS, s.NewX, s.X, -1)
	vector.AddScaledInto(nextY, s.NewGrad, s.Grad, -1)
	rho := vector.DotProduct(nextS, nextY)

	s.SList = append(s.SList, nextS)
	s.YList = append(s.YList, nextY)
	s.RhoList = append(s.RhoList, rho)

	s.X, s.NewX = s.NewX, s.X
	s.Grad, s.NewGrad = s.NewGrad, s.Grad

	s.LineSearchStep = 0
	s.Iteration++
}
