package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gclflow/gclflow/internal/app/dto"
	"github.com/gclflow/gclflow/internal/app/services"
	"github.com/gclflow/gclflow/internal/config"
	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/internal/core/optim"
)

// Reasons a checkpoint is written, as reported to MetricWriter.
const (
	ReasonMilestone = "milestone"
	ReasonBest      = "best"
)

// Executor trains one model on one full-batch graph and evaluates its
// milestone snapshots.
// PRINCIPLES:
// - SRP: drives the epoch loop; persistence and numerics are collaborators
// - KISS: single goroutine, every call blocks
type Executor struct {
	cfg         config.Config
	model       *model.Model
	opt         optim.Optimizer
	sched       optim.Scheduler
	checkpoints CheckpointStore
	metrics     MetricWriter
	logger      *slog.Logger
	now         func() time.Time
	probe       Probe
	split       SplitFunc
	hooks       []services.CheckpointHook

	startEpoch int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics sets the metric writer.
func WithMetrics(w MetricWriter) Option {
	return func(e *Executor) { e.metrics = w }
}

// WithClock replaces time.Now, which stamps evaluation reports.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithProbe replaces the probe used by Evaluate.
func WithProbe(p Probe) Option {
	return func(e *Executor) { e.probe = p }
}

// WithSplit replaces the node split used by Evaluate.
func WithSplit(f SplitFunc) Option {
	return func(e *Executor) { e.split = f }
}

// WithCheckpointStore replaces the store built from the saver, which is
// how tests observe saves.
func WithCheckpointStore(s CheckpointStore) Option {
	return func(e *Executor) { e.checkpoints = s }
}

// WithCheckpointHook observes saves and loads made through the store
// built from the saver. It has no effect with WithCheckpointStore.
func WithCheckpointHook(h services.CheckpointHook) Option {
	return func(e *Executor) { e.hooks = append(e.hooks, h) }
}

// NewExecutor builds the optimizer and scheduler for m, binds the
// checkpoint store and, when cfg.Training.Epoch > 0, resumes from that
// epoch's snapshot. Evaluate needs a probe and a split, set by options.
func NewExecutor(ctx context.Context, cfg config.Config, m *model.Model, saver checkpoint.Saver, opts ...Option) (*Executor, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", dto.ErrInvalidConfig, err)
	}
	e := &Executor{
		cfg:     cfg.Clone(),
		model:   m,
		metrics: NopMetricWriter{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.opt, e.sched = services.NewOptimizerBuilder(e.logger).Build(e.cfg.Optimizer, e.cfg.Scheduler, m.Parameters())
	if e.checkpoints == nil {
		if saver == nil {
			return nil, dto.ErrNoCheckpointStore
		}
		svc := services.NewCheckpointService(saver, m, e.opt, e.cfg.Dataset, e.logger)
		for _, h := range e.hooks {
			svc.AddHook(h)
		}
		e.checkpoints = svc
	}

	e.logParameters()

	if e.cfg.Training.Epoch > 0 {
		if err := e.checkpoints.Load(ctx, e.cfg.Training.Epoch); err != nil {
			return nil, err
		}
		e.startEpoch = e.cfg.Training.Epoch + 1
		if e.sched != nil {
			e.sched.Resume(e.startEpoch)
		}
	}
	return e, nil
}

func (e *Executor) logParameters() {
	for _, p := range e.model.Parameters() {
		e.logger.Info("parameter", "name", p.Name, "shape", p.Shape)
	}
	e.logger.Info("total parameters", "model", e.model.Name, "count", e.model.NumParameters())
}

// Optimizer exposes the optimizer built for the model.
func (e *Executor) Optimizer() optim.Optimizer { return e.opt }

// Scheduler exposes the scheduler, nil when none is configured.
func (e *Executor) Scheduler() optim.Scheduler { return e.sched }

// StartEpoch is the first epoch Train will run.
func (e *Executor) StartEpoch() int { return e.startEpoch }

// Train runs the epoch loop on g and returns the best loss seen, +Inf when
// no epoch ran.
func (e *Executor) Train(ctx context.Context, g *graph.Graph) (float64, error) {
	out, err := e.Run(ctx, g)
	return out.BestLoss, err
}

// Run is Train with the full outcome. Cancellation is checked between
// epochs only; the outcome then has status canceled and err is ctx.Err().
func (e *Executor) Run(ctx context.Context, g *graph.Graph) (dto.RunOutcome, error) {
	tc := e.cfg.Training
	state := dto.NewTrainingRunState(e.startEpoch)
	e.logger.Info("start training", "model", e.model.Name, "dataset", e.cfg.Dataset,
		"first_epoch", e.startEpoch, "max_epoch", tc.MaxEpoch)

	var runErr error
	for epoch := e.startEpoch; epoch < tc.MaxEpoch; epoch++ {
		if err := ctx.Err(); err != nil {
			state.Status = dto.RunStatusCanceled
			runErr = err
			break
		}
		stop, err := e.runEpoch(ctx, g, epoch, state)
		if err != nil {
			return state.Outcome(e.startEpoch), err
		}
		if stop {
			state.Status = dto.RunStatusEarlyStopped
			break
		}
	}
	if state.Status == dto.RunStatusRunning {
		state.Status = dto.RunStatusCompleted
	}

	out := state.Outcome(e.startEpoch)
	if out.EpochsRun > 0 {
		e.logger.Info("training finished",
			"epochs", out.EpochsRun,
			"avg_train_time", out.AvgTrainTime,
			"avg_eval_time", out.AvgEvalTime,
			"best_epoch", out.BestEpoch,
			"best_loss", out.BestLoss,
			"status", out.Status)
	}
	if runErr != nil {
		return out, runErr
	}

	if tc.LoadBestEpoch {
		if state.BestEpoch == dto.NoEpoch {
			e.logger.Warn("no best epoch recorded, keeping current parameters")
		} else if err := e.checkpoints.Load(ctx, state.BestEpoch); err != nil {
			return out, err
		}
	}
	return out, nil
}

// runEpoch executes one epoch and reports whether early stopping fired.
func (e *Executor) runEpoch(ctx context.Context, g *graph.Graph, epoch int, state *dto.TrainingRunState) (bool, error) {
	tc := e.cfg.Training
	start := time.Now()

	loss, gradNorm, err := e.trainEpoch(g)
	if err != nil {
		return false, fmt.Errorf("%w: epoch %d: %w", dto.ErrEpochFailed, epoch, err)
	}
	trainEnd := time.Now()
	state.TrainTimes = append(state.TrainTimes, trainEnd.Sub(start))
	e.metrics.AddScalar("training loss", loss, epoch)

	// the training loss doubles as the validation loss
	valLoss := loss
	end := time.Now()
	state.EvalTimes = append(state.EvalTimes, end.Sub(trainEnd))

	if e.sched != nil {
		if e.sched.NeedsMetric() {
			e.sched.Step(valLoss)
		} else {
			e.sched.Step(0)
		}
	}

	lr := e.opt.LR()
	e.metrics.ObserveEpoch(epoch, loss, lr, end.Sub(start))

	if slices.Contains(tc.CheckpointMilestones, epoch+1) {
		if _, err := e.checkpoints.Save(ctx, epoch); err != nil {
			return false, err
		}
		e.metrics.CheckpointSaved(ReasonMilestone)
	}

	previous := state.BestLoss
	if state.Observe(epoch, valLoss) {
		if tc.SavedModel {
			path, err := e.checkpoints.Save(ctx, epoch)
			if err != nil {
				return false, err
			}
			e.metrics.CheckpointSaved(ReasonBest)
			e.logger.Info("val loss decreased", "from", previous, "to", valLoss, "path", path)
		}
	} else if tc.UseEarlyStop && state.Wait == tc.Patience {
		// the stopping epoch is not logged
		e.logger.Warn("early stopping", "epoch", epoch, "best_epoch", state.BestEpoch)
		return true, nil
	}

	if epoch%tc.LogEvery == 0 {
		attrs := []any{"epoch", epoch, "max_epoch", tc.MaxEpoch, "train_loss", loss, "lr", lr}
		if tc.ClipGradNorm {
			attrs = append(attrs, "grad_norm", gradNorm)
		}
		e.logger.Info("epoch complete", append(attrs, "elapsed", end.Sub(start))...)
	}
	return false, nil
}

// trainEpoch is one full-batch step: forward, loss, backward, optional
// clipping, update. It returns the loss and the pre-clipping gradient norm
// (zero when clipping is off).
func (e *Executor) trainEpoch(g *graph.Graph) (float64, float64, error) {
	enc := e.model.Encoder
	enc.SetTraining(true)
	e.opt.ZeroGrad()

	views, err := enc.Forward(g)
	if err != nil {
		return 0, 0, fmt.Errorf("forward: %w", err)
	}
	loss, grads, err := e.model.Objective.Loss(views)
	if err != nil {
		return 0, 0, fmt.Errorf("loss: %w", err)
	}
	if err := enc.Backward(grads); err != nil {
		return 0, 0, fmt.Errorf("backward: %w", err)
	}

	var gradNorm float64
	if e.cfg.Training.ClipGradNorm {
		gradNorm = model.ClipGradNorm(e.model.Parameters(), e.cfg.Training.MaxGradNorm)
	}
	e.opt.Step()
	return loss, gradNorm, nil
}
