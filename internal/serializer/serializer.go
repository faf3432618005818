package serializer

import (
	"io"
	"strconv"

	"github.com/atlas-desktop/owlqn-trainer/internal/improvement"
	"github.com/atlas-desktop/owlqn-trainer/internal/state"
)

// Save writes s and its improvement filter to w as a fixed-order record
// stream (spec.md §4.3). The order below is load-bearing: Load asserts
// each key in sequence and a mismatch aborts the restore.
func Save(w io.Writer, s *state.State, filter *improvement.Filter) error {
	wr := newWriter(w)

	wr.WriteVector("x_", s.X)
	wr.WriteVector("new_x_", s.NewX)
	wr.WriteVector("grad_", s.Grad)
	wr.WriteVector("new_grad_", s.NewGrad)
	wr.WriteVector("dir_", s.Dir)

	wr.WriteInt32("s_list_.size", int32(len(s.SList)))
	for i, v := range s.SList {
		wr.WriteVector("s_list_"+strconv.Itoa(i), v)
	}
	wr.WriteInt32("y_list_.size", int32(len(s.YList)))
	for i, v := range s.YList {
		wr.WriteVector("y_list_"+strconv.Itoa(i), v)
	}

	wr.WriteDoubleSeq("ro_list_", s.RhoList)
	wr.WriteDoubleSeq("alphas_", s.Alphas)

	wr.WriteDouble("value_", s.Value)
	wr.WriteDouble("old_value_", s.OldValue)
	wr.WriteDouble("dir_deriv_", s.DirDeriv)
	wr.WriteDouble("step_fraction_", s.StepFraction)
	wr.WriteDouble("degrade_factor_", s.DegradeFactor)
	wr.WriteDouble("l1weight_", s.L1Weight)
	wr.WriteDouble("convergence_tolerance_", s.ConvergenceTolerance)

	wr.WriteInt32("iteration_", int32(s.Iteration))
	wr.WriteInt32("line_search_step_", int32(s.LineSearchStep))
	wr.WriteInt32("max_line_search_steps_", int32(s.MaxLineSearchSteps))
	wr.WriteInt32("max_iterations_", int32(s.MaxIterations))
	wr.WriteInt32("memory_size_", int32(s.MemorySize))

	wr.WriteDoubleSeq("improvement_filter_", filter.Snapshot())

	return wr.Err()
}

// Load reads a record stream written by Save and reconstructs the
// optimizer state and improvement filter. CheckInvariants is NOT called
// here — callers that need the defensive check run it themselves.
func Load(r io.Reader) (*state.State, *improvement.Filter, error) {
	rd := newReader(r)

	s := &state.State{}
	s.X = rd.ReadVector("x_")
	s.NewX = rd.ReadVector("new_x_")
	s.Grad = rd.ReadVector("grad_")
	s.NewGrad = rd.ReadVector("new_grad_")
	s.Dir = rd.ReadVector("dir_")

	sSize := int(rd.ReadInt32("s_list_.size"))
	for i := 0; i < sSize && rd.Err() == nil; i++ {
		s.SList = append(s.SList, rd.ReadVector("s_list_"+strconv.Itoa(i)))
	}
	ySize := int(rd.ReadInt32("y_list_.size"))
	for i := 0; i < ySize && rd.Err() == nil; i++ {
		s.YList = append(s.YList, rd.ReadVector("y_list_"+strconv.Itoa(i)))
	}

	s.RhoList = rd.ReadDoubleSeq("ro_list_")
	s.Alphas = rd.ReadDoubleSeq("alphas_")

	s.Value = rd.ReadDouble("value_")
	s.OldValue = rd.ReadDouble("old_value_")
	s.DirDeriv = rd.ReadDouble("dir_deriv_")
	s.StepFraction = rd.ReadDouble("step_fraction_")
	s.DegradeFactor = rd.ReadDouble("degrade_factor_")
	s.L1Weight = rd.ReadDouble("l1weight_")
	s.ConvergenceTolerance = rd.ReadDouble("convergence_tolerance_")

	s.Iteration = int(rd.ReadInt32("iteration_"))
	s.LineSearchStep = int(rd.ReadInt32("line_search_step_"))
	s.MaxLineSearchSteps = int(rd.ReadInt32("max_line_search_steps_"))
	s.MaxIterations = int(rd.ReadInt32("max_iterations_"))
	s.MemorySize = int(rd.ReadInt32("memory_size_"))

	filterHistory := rd.ReadDoubleSeq("improvement_filter_")
	if rd.Err() != nil {
		return nil, nil, rd.Err()
	}

	filter := improvement.New()
	filter.Restore(filterHistory)

	return s, filter, nil
}
