package owlqn

import "github.com/atlas-desktop/owlqn-trainer/internal/vector"

func makeSteepestDescDirDense(x, grad, dir *vector.Dense, l1Weight float64) {
	if l1Weight == 0 {
		vector.ScaleInto(dir, grad, -1)
		return
	}

	n := dir.Size()
	for i := 0; i < n; i++ {
		xi := x.At(i)
		gi := grad.At(i)
		switch {
		case xi < 0:
			dir.Set(i, -gi+l1Weight)
		case xi > 0:
			dir.Set(i, -gi-l1Weight)
		case gi < -l1Weight:
			dir.Set(i, -gi-l1Weight)
		case gi > l1Weight:
			dir.Set(i, -gi+l1Weight)
		default:
			dir.Set(i, 0)
		}
	}
}

func fixDirSignsDense(dir, pseudoGrad *vector.Dense, l1Weight float64) {
	if l1Weight <= 0 {
		return
	}
	n := dir.Size()
	for i := 0; i < n; i++ {
		if dir.At(i)*pseudoGrad.At(i) <= 0 {
			dir.Set(i, 0)
		}
	}
}

func dirDerivDense(dir, grad, x *vector.Dense, l1Weight float64) float64 {
	if l1Weight == 0 {
		return vector.DotProduct(dir, grad)
	}
	var ret float64
	n := dir.Size()
	for i := 0; i < n; i++ {
		di := dir.At(i)
		if di == 0 {
			continue
		}
		xi := x.At(i)
		switch {
		case xi < 0:
			ret += di * (grad.At(i) - l1Weight)
		case xi > 0:
			ret += di * (grad.At(i) + l1Weight)
		case di < 0:
			ret += di * (grad.At(i) - l1Weight)
		case di > 0:
			ret += di * (grad.At(i) + l1Weight)
		}
	}
	return ret
}

func getNextPointDense(newX, x, dir *vector.Dense, alpha, l1Weight float64) {
	vector.AddScaledInto(newX, x, dir, alpha)
	if l1Weight <= 0 {
		return
	}
	n := x.Size()
	for i := 0; i < n; i++ {
		if x.At(i)*newX.At(i) < 0 {
			newX.Set(i, 0)
		}
	}
}
