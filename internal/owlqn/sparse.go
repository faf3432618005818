package owlqn

import "github.com/atlas-desktop/owlqn-trainer/internal/vector"

func makeSteepestDescDirSparse(x, grad, dir *vector.Sparse, l1Weight float64) {
	if l1Weight == 0 {
		vector.ScaleInto(dir, grad, -1)
		return
	}

	dir.Clear()
	xk, gk := x.Keys(), grad.Keys()
	i, j := 0, 0
	for i < len(xk) && j < len(gk) {
		switch {
		case xk[i] == gk[j]:
			xi := x.At(xk[i])
			if xi < 0 {
				dir.Set(xk[i], -grad.At(xk[i])+l1Weight)
			} else if xi > 0 {
				dir.Set(xk[i], -grad.At(xk[i])-l1Weight)
			}
			i++
			j++
		case xk[i] < gk[j]:
			xi := x.At(xk[i])
			if xi < 0 {
				dir.Set(xk[i], l1Weight)
			} else if xi > 0 {
				dir.Set(xk[i], -l1Weight)
			}
			i++
		default:
			gi := grad.At(gk[j])
			if gi < -l1Weight {
				dir.Set(gk[j], -gi-l1Weight)
			} else if gi > l1Weight {
				dir.Set(gk[j], -gi+l1Weight)
			}
			j++
		}
	}
	for ; i < len(xk); i++ {
		xi := x.At(xk[i])
		if xi < 0 {
			dir.Set(xk[i], l1Weight)
		} else if xi > 0 {
			dir.Set(xk[i], -l1Weight)
		}
	}
	for ; j < len(gk); j++ {
		gi := grad.At(gk[j])
		if gi < -l1Weight {
			dir.Set(gk[j], -gi-l1Weight)
		} else if gi > l1Weight {
			dir.Set(gk[j], -gi+l1Weight)
		}
	}
}

func fixDirSignsSparse(dir, pseudoGrad *vector.Sparse, l1Weight float64) {
	if l1Weight <= 0 {
		return
	}
	dk := append([]int(nil), dir.Keys()...)
	for _, k := range dk {
		if dir.At(k)*pseudoGrad.At(k) <= 0 {
			dir.Set(k, 0)
		}
	}
}

func dirDerivSparse(dir, grad, x *vector.Sparse, l1Weight float64) float64 {
	if l1Weight == 0 {
		return vector.DotProduct(dir, grad)
	}
	var ret float64
	dk, xk := dir.Keys(), x.Keys()
	i, j := 0, 0
	for i < len(dk) && j < len(xk) {
		switch {
		case dk[i] == xk[j]:
			xi := x.At(xk[j])
			di := dir.At(dk[i])
			if xi < 0 {
				ret += di * (grad.At(dk[i]) - l1Weight)
			} else if xi > 0 {
				ret += di * (grad.At(dk[i]) + l1Weight)
			}
			i++
			j++
		case dk[i] < xk[j]:
			di := dir.At(dk[i])
			if di < 0 {
				ret += di * (grad.At(dk[i]) - l1Weight)
			} else if di > 0 {
				ret += di * (grad.At(dk[i]) + l1Weight)
			}
			i++
		default:
			j++
		}
	}
	for ; i < len(dk); i++ {
		di := dir.At(dk[i])
		if di < 0 {
			ret += di * (grad.At(dk[i]) - l1Weight)
		} else if di > 0 {
			ret += di * (grad.At(dk[i]) + l1Weight)
		}
	}
	return ret
}

func getNextPointSparse(newX, x, dir *vector.Sparse, alpha, l1Weight float64) {
	vector.AddScaledInto(newX, x, dir, alpha)
	if l1Weight <= 0 {
		return
	}
	xk := x.Keys()
	for _, k := range xk {
		if x.At(k)*newX.At(k) < 0 {
			newX.Set(k, 0)
		}
	}
}
