package evaluator

import "github.com/atlas-desktop/owlqn-trainer/internal/vector"

// ToyDim is the feature dimension of ToyDataset.
const ToyDim = 4

// ToyDataset is a small training set checked into the
// repository for the end-to-end convergence drill (spec.md §8 scenario
// 6): a driver running it must reach ReasonConverged within a modest
// iteration budget. Features 0 and 1 correlate with the positive class,
// features 2 and 3 with the negative class.
func ToyDataset() []Instance {
	mk := func(f0, f1, f2, f3 float64, pos, n float64) Instance {
		feats := vector.NewSparse()
		if f0 != 0 {
			feats.Set(0, f0)
		}
		if f1 != 0 {
			feats.Set(1, f1)
		}
		if f2 != 0 {
			feats.Set(2, f2)
		}
		if f3 != 0 {
			feats.Set(3, f3)
		}
		return Instance{Features: feats, NumPositives: pos, NumAppearances: n}
	}

	return []Instance{
		mk(1, 1, 0, 0, 8, 8),
		mk(1, 0, 0, 0, 6, 7),
		mk(0, 1, 0, 0, 7, 8),
		mk(0, 0, 1, 1, 1, 8),
		mk(0, 0, 1, 0, 2, 7),
		mk(0, 0, 0, 1, 1, 6),
		mk(1, 1, 1, 0, 5, 8),
		mk(0, 0, 0, 0, 4, 8),
	}
}
