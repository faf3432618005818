// Package tuning searches an OWL-QN hyperparameter space (l1_weight,
// memory_size) by running the optimizer to convergence once per
// candidate and comparing the final objective value. Adapted from the
// teacher's strategy-parameter optimizer: same ParamSet/grid/random-search
// shape, generalized from a backtest Sharpe-ratio objective to an
// arbitrary minimization objective. The genetic-algorithm and
// walk-forward methods are not carried over — see DESIGN.md.
package tuning

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ParamSet is a named assignment of hyperparameter values.
type ParamSet map[string]float64

// ObjectiveFunc trains under paramSet and returns the resulting score;
// Search always minimizes this value (the converged objective value).
type ObjectiveFunc func(params ParamSet) (float64, error)

// Parameter describes one dimension of the search space.
type Parameter struct {
	Name string
	Min  float64
	Max  float64
	Step float64 // grid spacing; ignored by Random
}

// EvaluationResult records one objective call.
type EvaluationResult struct {
	Params   ParamSet
	Score    float64
	Duration time.Duration
}

// Result is a completed search's outcome.
type Result struct {
	BestParams      ParamSet
	BestScore       float64
	AllResults      []EvaluationResult
	ConvergenceHist []float64
}

// Searcher runs Grid or Random search over a Parameter space.
type Searcher struct {
	logger *zap.Logger
	rng    *rand.Rand

	ParallelWorkers int
	GridResolution  int // grid steps per continuous parameter when Step==0
	RandomTrials    int
}

// NewSearcher constructs a Searcher with sensible defaults; logger may be
// nil, and seed fixes the random-search draw order for reproducibility.
func NewSearcher(logger *zap.Logger, seed int64) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		logger:          logger,
		rng:             rand.New(rand.NewSource(seed)),
		ParallelWorkers: 4,
		GridResolution:  5,
		RandomTrials:    20,
	}
}

// Grid evaluates every combination of the parameters' grid values and
// returns the combination with the lowest score.
func (s *Searcher) Grid(ctx context.Context, params []Parameter, objective ObjectiveFunc) (*Result, error) {
	combos := s.gridCombinations(params)
	s.logger.Info("starting grid search", zap.Int("combinations", len(combos)))
	return s.evaluateParallel(ctx, combos, objective)
}

// Random draws RandomTrials uniformly-random points from the parameter
// space and returns the combination with the lowest score.
func (s *Searcher) Random(ctx context.Context, params []Parameter, objective ObjectiveFunc) (*Result, error) {
	combos := make([]ParamSet, s.RandomTrials)
	for i := range combos {
		p := make(ParamSet, len(params))
		for _, param := range params {
			p[param.Name] = param.Min + s.rng.Float64()*(param.Max-param.Min)
		}
		combos[i] = p
	}
	s.logger.Info("starting random search", zap.Int("trials", len(combos)))
	return s.evaluateParallel(ctx, combos, objective)
}

func (s *Searcher) gridCombinations(params []Parameter) []ParamSet {
	values := make([][]float64, len(params))
	for i, p := range params {
		step := p.Step
		if step <= 0 {
			res := s.GridResolution
			if res < 1 {
				res = 1
			}
			step = (p.Max - p.Min) / float64(res)
		}
		var v []float64
		for x := p.Min; x <= p.Max+1e-9; x += step {
			v = append(v, x)
		}
		if len(v) == 0 {
			v = []float64{p.Min}
		}
		values[i] = v
	}
	return cartesianProduct(params, values, 0, make(ParamSet))
}

func cartesianProduct(params []Parameter, values [][]float64, idx int, current ParamSet) []ParamSet {
	if idx == len(params) {
		copySet := make(ParamSet, len(current))
		for k, v := range current {
			copySet[k] = v
		}
		return []ParamSet{copySet}
	}
	var out []ParamSet
	for _, v := range values[idx] {
		current[params[idx].Name] = v
		out = append(out, cartesianProduct(params, values, idx+1, current)...)
	}
	return out
}

func (s *Searcher) evaluateParallel(ctx context.Context, combos []ParamSet, objective ObjectiveFunc) (*Result, error) {
	result := &Result{}
	results := make(chan EvaluationResult, len(combos))
	sem := make(chan struct{}, s.ParallelWorkers)
	var wg sync.WaitGroup

	for _, combo := range combos {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		wg.Add(1)
		go func(params ParamSet) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			score, err := objective(params)
			if err != nil {
				s.logger.Warn("objective evaluation failed", zap.Error(err))
				return
			}
			results <- EvaluationResult{Params: params, Score: score, Duration: time.Since(start)}
		}(combo)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	bestScore := math.Inf(1)
	for r := range results {
		result.AllResults = append(result.AllResults, r)
		if r.Score < bestScore {
			bestScore = r.Score
			result.BestParams = r.Params
			result.BestScore = r.Score
		}
		result.ConvergenceHist = append(result.ConvergenceHist, bestScore)
	}
	return result, nil
}
