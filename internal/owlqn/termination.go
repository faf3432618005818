package owlqn

// Termination reasons (learner.cc in the reference implementation this
// engine is grounded on): the engine reports exactly one of these when
// GradientDescent or Initialize decides training is over.
const (
	ReasonConverged = "SUCCEEDED: We have converged."

	ReasonNonDescentDirection = "ERROR: UpdateDir chose a non-descent direction, " +
		"the line search will break, so we stop here. The likely reason is " +
		"bug in gradient computation."

	ReasonLineSearchExhausted = "WARNING: We have done enough number of steps in " +
		"line search, and have to stop."

	ReasonMaxIterations = "WARNING: We have done enough number of iterations."
)

// Outcome reports why a call into the engine stopped driving toward a
// new point, if it did. A zero Outcome means "keep going — call
// SetObjectiveAndGradient for the probe just requested".
type Outcome struct {
	Done   bool
	Reason string
}
