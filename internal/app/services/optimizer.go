package services

import (
	"log/slog"

	"github.com/gclflow/gclflow/internal/config"
	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/internal/core/optim"
)

// OptimizerBuilder turns configuration into an optimizer and an optional
// scheduler. Unknown names fall back with a warning instead of failing.
// PRINCIPLES:
// - OCP: one construction function per variant
// - KISS: no registry, a switch over tagged kinds
type OptimizerBuilder struct {
	logger *slog.Logger
}

// NewOptimizerBuilder returns a builder that logs fallbacks to logger.
func NewOptimizerBuilder(logger *slog.Logger) *OptimizerBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimizerBuilder{logger: logger}
}

// Build returns the optimizer over params and the scheduler driving it,
// which is nil when learning-rate decay is off or the schedule is unknown.
func (b *OptimizerBuilder) Build(oc config.OptimizerConfig, sc config.SchedulerConfig, params []*model.Parameter) (optim.Optimizer, optim.Scheduler) {
	opt := b.BuildOptimizer(oc, params)
	sched := b.BuildScheduler(sc, opt)

	schedName := "none"
	if sched != nil {
		schedName = sched.Kind().String()
	}
	b.logger.Info("optimizer ready", "optimizer", opt.Kind().String(), "scheduler", schedName,
		"learning_rate", opt.LR())
	return opt, sched
}

// BuildOptimizer picks the algorithm named by oc.Learner.
func (b *OptimizerBuilder) BuildOptimizer(oc config.OptimizerConfig, params []*model.Parameter) optim.Optimizer {
	kind, ok := optim.ParseKind(oc.Learner)
	if !ok {
		b.logger.Warn("received unrecognized optimizer, set default adam optimizer", "learner", oc.Learner)
	}
	h := hyperFrom(oc)

	switch kind {
	case optim.KindSGD:
		return buildSGD(params, h)
	case optim.KindAdagrad:
		return buildAdagrad(params, h)
	case optim.KindRMSprop:
		return buildRMSprop(params, h)
	case optim.KindSparseAdam:
		return buildSparseAdam(params, h)
	default:
		return buildAdam(params, h)
	}
}

// BuildScheduler picks the schedule named by sc.Name, or none.
func (b *OptimizerBuilder) BuildScheduler(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	if !sc.Decay {
		return nil
	}
	kind, ok := optim.ParseSchedulerKind(sc.Name)
	if !ok {
		b.logger.Warn("received unrecognized lr_scheduler, please check the parameter `lr_scheduler`",
			"lr_scheduler", sc.Name)
		return nil
	}

	switch kind {
	case optim.SchedulerMultiStep:
		return buildMultiStep(sc, opt)
	case optim.SchedulerStep:
		return buildStep(sc, opt)
	case optim.SchedulerExponential:
		return buildExponential(sc, opt)
	case optim.SchedulerCosine:
		return buildCosine(sc, opt)
	case optim.SchedulerLambda:
		return b.buildLambda(sc, opt)
	case optim.SchedulerPlateau:
		return buildPlateau(sc, opt)
	default:
		return nil
	}
}

func hyperFrom(oc config.OptimizerConfig) optim.Hyper {
	return optim.Hyper{
		LR:          oc.LearningRate,
		WeightDecay: oc.WeightDecay,
		Beta1:       oc.Beta1,
		Beta2:       oc.Beta2,
		Alpha:       oc.Alpha,
		Epsilon:     oc.Epsilon,
		Momentum:    oc.Momentum,
	}
}

func buildAdam(params []*model.Parameter, h optim.Hyper) optim.Optimizer {
	return optim.NewAdam(params, h)
}

func buildSGD(params []*model.Parameter, h optim.Hyper) optim.Optimizer {
	return optim.NewSGD(params, h)
}

func buildAdagrad(params []*model.Parameter, h optim.Hyper) optim.Optimizer {
	return optim.NewAdagrad(params, h)
}

func buildRMSprop(params []*model.Parameter, h optim.Hyper) optim.Optimizer {
	return optim.NewRMSprop(params, h)
}

// SparseAdam has no weight decay.
func buildSparseAdam(params []*model.Parameter, h optim.Hyper) optim.Optimizer {
	h.WeightDecay = 0
	return optim.NewSparseAdam(params, h)
}

func buildMultiStep(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	return optim.NewMultiStepLR(opt, sc.Steps, sc.DecayRatio)
}

func buildStep(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	return optim.NewStepLR(opt, sc.StepSize, sc.DecayRatio)
}

func buildExponential(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	return optim.NewExponentialLR(opt, sc.DecayRatio)
}

func buildCosine(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	return optim.NewCosineAnnealingLR(opt, sc.TMax, sc.EtaMin)
}

func (b *OptimizerBuilder) buildLambda(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	lambda, err := optim.CompileLambda(sc.Lambda)
	if err != nil {
		b.logger.Warn("invalid lr_lambda, learning rate will not be scheduled", "lr_lambda", sc.Lambda, "error", err)
		return nil
	}
	return optim.NewLambdaLR(opt, lambda)
}

func buildPlateau(sc config.SchedulerConfig, opt optim.Optimizer) optim.Scheduler {
	return optim.NewReduceLROnPlateau(opt, optim.PlateauConfig{
		Factor:    sc.DecayRatio,
		Patience:  sc.Patience,
		Threshold: sc.Threshold,
		Eps:       1e-8,
	})
}
