package evaluator

import (
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
	"github.com/atlas-desktop/owlqn-trainer/internal/workers"
)

// Sharded fans Evaluate out across a workers.Pool: each shard computes a
// partial (value, gradient) over its own slice of instances with the
// same per-instance formula as Logistic, and the shards' results are
// summed once every goroutine has reported back. This stands in for the
// distributed map/reduce evaluator spec.md §1 puts out of scope —
// same contract (one Evaluate call in, one (value, gradient) pair out),
// parallel execution instead of a single pass.
type Sharded struct {
	Pool     *workers.Pool
	Shards   [][]Instance
	L1Weight float64
	Dim      int
}

// NewSharded splits instances into shards of ceil(len(instances)/n)
// instances each, run on pool; the last shard may be smaller, and there
// may be fewer than n shards (4 instances with n=3 give 2 shards of 2).
func NewSharded(pool *workers.Pool, instances []Instance, n int, l1Weight float64, dim int) *Sharded {
	if n < 1 {
		n = 1
	}
	shards := make([][]Instance, 0, n)
	shardSize := (len(instances) + n - 1) / n
	if shardSize == 0 {
		shardSize = 1
	}
	for start := 0; start < len(instances); start += shardSize {
		end := start + shardSize
		if end > len(instances) {
			end = len(instances)
		}
		shards = append(shards, instances[start:end])
	}
	return &Sharded{Pool: pool, Shards: shards, L1Weight: l1Weight, Dim: dim}
}

type shardResult struct {
	value    float64
	gradient vector.Vector
}

// Evaluate runs every shard concurrently on the pool and sums the
// partial results. The L1 regularization term is added once, using the
// full model, after the parallel pass — it does not decompose by shard.
func (s *Sharded) Evaluate(model vector.Vector) (float64, vector.Vector) {
	results := make([]shardResult, len(s.Shards))

	done := make(chan error, len(s.Shards))
	for i, shard := range s.Shards {
		i, shard := i, shard
		task := workers.TaskFunc(func() error {
			sub := &Logistic{Instances: shard, L1Weight: 0, Dim: s.Dim}
			v, g := sub.Evaluate(model)
			results[i] = shardResult{value: v - 1.0, gradient: g} // strip the per-call bias term; added back once below
			return nil
		})
		go func() { done <- s.Pool.SubmitWait(task) }()
	}
	for range s.Shards {
		<-done
	}

	total := 1.0 + regularizationFactor(model, s.L1Weight)
	var gradient vector.Vector
	if s.Dim > 0 {
		gradient = vector.NewDense(s.Dim)
	} else {
		gradient = vector.NewSparse()
	}
	for _, r := range results {
		total += r.value
		addGradientInto(gradient, r.gradient)
	}
	return total, gradient
}

func addGradientInto(dst, src vector.Vector) {
	src.Each(func(i int, v float64) { dst.Set(i, dst.At(i)+v) })
}
