// Package main provides the entry point for the OWL-QN trainer: a
// single-process or pool-sharded driver that evaluates a logistic
// regression objective over a training set and runs it to convergence
// under L1 regularization.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/owlqn-trainer/internal/api"
	"github.com/atlas-desktop/owlqn-trainer/internal/checkpoint"
	"github.com/atlas-desktop/owlqn-trainer/internal/config"
	"github.com/atlas-desktop/owlqn-trainer/internal/evaluator"
	"github.com/atlas-desktop/owlqn-trainer/internal/improvement"
	"github.com/atlas-desktop/owlqn-trainer/internal/owlqn"
	"github.com/atlas-desktop/owlqn-trainer/internal/report"
	"github.com/atlas-desktop/owlqn-trainer/internal/serializer"
	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/termination"
	"github.com/atlas-desktop/owlqn-trainer/internal/tuning"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
	"github.com/atlas-desktop/owlqn-trainer/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	resume := flag.Bool("resume", false, "Resume from the latest checkpoint in checkpoint_dir")
	serve := flag.Bool("serve", false, "Run the HTTP/WebSocket status server alongside training")
	tune := flag.Bool("tune", false, "Grid-search l1_weight before training and use the best value found")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "owlqn-trainer: ", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)

	if *tune {
		cfg.L1Weight = tuneL1Weight(cfg, logger)
	}
	defer logger.Sync()

	logger.Info("starting owlqn-trainer",
		zap.Int("shard_count", cfg.ShardCount),
		zap.String("checkpoint_dir", cfg.CheckpointDir),
		zap.Bool("resume", *resume),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		cancel()
	}()

	var statusServer *api.Server
	if *serve {
		statusServer = api.NewServer(logger, cfg.APIAddr, cfg.CheckpointDir, cfg.StatesFilebase, nil)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			statusServer.Stop(shutdownCtx)
		}()
	}

	instances := evaluator.ToyDataset()
	var eval evaluator.Evaluator
	var pool *workers.Pool
	if cfg.ShardCount > 1 {
		pool = workers.NewPool(logger, workers.DefaultPoolConfig("owlqn-evaluator"), nil)
		pool.Start()
		defer pool.Stop()
		eval = evaluator.NewSharded(pool, instances, cfg.ShardCount, cfg.L1Weight, evaluator.ToyDim)
	} else {
		eval = &evaluator.Logistic{Instances: instances, L1Weight: cfg.L1Weight, Dim: evaluator.ToyDim}
	}

	s, filter, err := loadOrInit(cfg, *resume, logger)
	if err != nil {
		logger.Fatal("failed to initialize state", zap.Error(err))
	}

	engine := owlqn.New(s, filter, logger)

	outcome := driveToOutcome(ctx, engine, eval, s, filter, cfg, statusServer, logger)

	if err := termination.Write(cfg.TerminationFlag, outcome.Reason, s); err != nil {
		logger.Error("failed to write termination flag", zap.Error(err))
	}
	if statusServer != nil {
		statusServer.ReportTermination(outcome.Reason)
	}

	summary := report.Build(outcome.Reason, s)
	fmt.Println(summary.String())
	logger.Info("training finished", zap.String("reason", outcome.Reason), zap.Int("iteration", s.Iteration))
}

// loadOrInit either restores state from the latest checkpoint (when
// resume is set and one exists) or constructs a fresh state seeded at the
// zero vector.
func loadOrInit(cfg config.Config, resume bool, logger *zap.Logger) (*state.State, *improvement.Filter, error) {
	if resume {
		path, seq, ok, err := checkpoint.Latest(cfg.CheckpointDir, cfg.StatesFilebase)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			f, err := os.Open(path)
			if err != nil {
				return nil, nil, err
			}
			defer f.Close()
			s, filter, err := serializer.Load(f)
			if err != nil {
				return nil, nil, fmt.Errorf("loading checkpoint %s: %w", path, err)
			}
			logger.Info("resumed from checkpoint", zap.String("path", path), zap.Int("sequence", seq))
			return s, filter, nil
		}
		logger.Info("no checkpoint found, starting fresh")
	}

	x0 := vector.NewDense(evaluator.ToyDim)
	return state.New(x0, cfg.HyperParameters()), improvement.New(), nil
}

// driveToOutcome runs the evaluate/advance loop until the engine reports
// a terminal Outcome or ctx is cancelled, checkpointing the state after
// every non-terminal engine call (each requested probe) and reporting
// progress after every accepted iteration.
func driveToOutcome(ctx context.Context, engine *owlqn.Engine, eval evaluator.Evaluator, s *state.State, filter *improvement.Filter, cfg config.Config, statusServer *api.Server, logger *zap.Logger) owlqn.Outcome {
	start := time.Now()

	value, grad := eval.Evaluate(s.NewX)
	engine.SetObjectiveAndGradient(value, grad)
	outcome := engine.Initialize()

	for !outcome.Done {
		if err := writeCheckpoint(cfg, s, filter); err != nil {
			logger.Error("failed to write checkpoint", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return owlqn.Outcome{Done: true, Reason: owlqn.ReasonMaxIterations}
		default:
		}

		value, grad = eval.Evaluate(s.NewX)
		engine.SetObjectiveAndGradient(value, grad)
		prevIteration := s.Iteration
		outcome = engine.GradientDescent()

		if s.Iteration > prevIteration {
			logger.Info("iteration accepted", zap.Int("iteration", s.Iteration), zap.Float64("value", s.Value))
			if statusServer != nil {
				statusServer.ReportIteration(api.IterationReport{
					Iteration:    s.Iteration,
					Value:        s.Value,
					GradientNorm: vector.Norm2(s.Grad),
					ElapsedMS:    time.Since(start).Milliseconds(),
				})
			}
		}
	}
	return outcome
}

// writeCheckpoint serializes s and filter to the next sequence-numbered
// checkpoint file, so only one worker is ever responsible for a given
// checkpoint: the caller holds the sole reference to the accepted state.
func writeCheckpoint(cfg config.Config, s *state.State, filter *improvement.Filter) error {
	if err := os.MkdirAll(cfg.CheckpointDir, 0o755); err != nil {
		return err
	}
	path, _, err := checkpoint.Next(cfg.CheckpointDir, cfg.StatesFilebase)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return serializer.Save(f, s, filter)
}

// tuneL1Weight grid-searches the regularization strength against the
// toy dataset and returns the value yielding the lowest converged
// objective, logging the full search result.
func tuneL1Weight(cfg config.Config, logger *zap.Logger) float64 {
	searcher := tuning.NewSearcher(logger, 1)
	searcher.GridResolution = 8

	result, err := searcher.Grid(context.Background(), []tuning.Parameter{{Name: "l1_weight", Min: 0.01, Max: 2.0}},
		func(p tuning.ParamSet) (float64, error) {
			l1 := p["l1_weight"]
			eval := &evaluator.Logistic{Instances: evaluator.ToyDataset(), L1Weight: l1, Dim: evaluator.ToyDim}
			s := state.New(vector.NewDense(evaluator.ToyDim), state.HyperParameters{
				MemorySize: cfg.MemorySize, L1Weight: l1, MaxLineSearchSteps: cfg.MaxLineSearchSteps,
				MaxIterations: cfg.MaxIterations, ConvergenceTolerance: cfg.ConvergenceTolerance,
			})
			engine := owlqn.New(s, improvement.New(), nil)
			value, grad := eval.Evaluate(s.NewX)
			engine.SetObjectiveAndGradient(value, grad)
			outcome := engine.Initialize()
			for !outcome.Done {
				value, grad = eval.Evaluate(s.NewX)
				engine.SetObjectiveAndGradient(value, grad)
				outcome = engine.GradientDescent()
			}
			return s.Value, nil
		})
	if err != nil {
		logger.Warn("l1_weight tuning failed, keeping configured value", zap.Error(err), zap.Float64("l1_weight", cfg.L1Weight))
		return cfg.L1Weight
	}

	best := result.BestParams["l1_weight"]
	logger.Info("l1_weight tuning complete", zap.Float64("best_l1_weight", best), zap.Float64("best_score", result.BestScore), zap.Int("evaluations", len(result.AllResults)))
	return best
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
