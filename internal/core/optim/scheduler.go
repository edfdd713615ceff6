package optim

import (
	"fmt"
	"math"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Scheduler adjusts an optimizer's learning rate once per epoch.
type Scheduler interface {
	Kind() SchedulerKind
	// NeedsMetric is true when Step must be given the epoch loss
	NeedsMetric() bool
	Step(metric float64)
	LastEpoch() int
	// Resume moves the epoch counter to lastEpoch without touching the
	// optimizer, whose rate was restored from a checkpoint.
	Resume(lastEpoch int)
}

// epochScheduler sets lr = lrAt(epoch) on every step.
type epochScheduler struct {
	kind      SchedulerKind
	opt       Optimizer
	lrAt      func(epoch int) float64
	lastEpoch int
}

func newEpochScheduler(kind SchedulerKind, opt Optimizer, lrAt func(int) float64) *epochScheduler {
	return &epochScheduler{kind: kind, opt: opt, lrAt: lrAt}
}

func (s *epochScheduler) Kind() SchedulerKind  { return s.kind }
func (s *epochScheduler) NeedsMetric() bool    { return false }
func (s *epochScheduler) LastEpoch() int       { return s.lastEpoch }
func (s *epochScheduler) Resume(lastEpoch int) { s.lastEpoch = lastEpoch }

// Step ignores metric and advances the epoch counter.
func (s *epochScheduler) Step(float64) {
	s.lastEpoch++
	s.opt.SetLR(s.lrAt(s.lastEpoch))
}

// NewMultiStepLR decays by gamma at each milestone epoch.
func NewMultiStepLR(opt Optimizer, milestones []int, gamma float64) Scheduler {
	base := opt.LR()
	ms := slices.Clone(milestones)
	slices.Sort(ms)
	return newEpochScheduler(SchedulerMultiStep, opt, func(epoch int) float64 {
		passed := 0
		for _, m := range ms {
			if m <= epoch {
				passed++
			}
		}
		return base * math.Pow(gamma, float64(passed))
	})
}

// NewStepLR decays by gamma every stepSize epochs.
func NewStepLR(opt Optimizer, stepSize int, gamma float64) Scheduler {
	base := opt.LR()
	if stepSize < 1 {
		stepSize = 1
	}
	return newEpochScheduler(SchedulerStep, opt, func(epoch int) float64 {
		return base * math.Pow(gamma, float64(epoch/stepSize))
	})
}

// NewExponentialLR decays by gamma every epoch.
func NewExponentialLR(opt Optimizer, gamma float64) Scheduler {
	base := opt.LR()
	return newEpochScheduler(SchedulerExponential, opt, func(epoch int) float64 {
		return base * math.Pow(gamma, float64(epoch))
	})
}

// NewCosineAnnealingLR anneals from the initial rate to etaMin over tMax epochs.
func NewCosineAnnealingLR(opt Optimizer, tMax int, etaMin float64) Scheduler {
	base := opt.LR()
	if tMax < 1 {
		tMax = 1
	}
	return newEpochScheduler(SchedulerCosine, opt, func(epoch int) float64 {
		return etaMin + (base-etaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(tMax)))/2
	})
}

// NewLambdaLR scales the initial rate by lambda(epoch). The factor for
// epoch 0 is applied immediately.
func NewLambdaLR(opt Optimizer, lambda func(epoch int) float64) Scheduler {
	base := opt.LR()
	lrAt := func(epoch int) float64 { return base * lambda(epoch) }
	opt.SetLR(lrAt(0))
	return newEpochScheduler(SchedulerLambda, opt, lrAt)
}

// CompileLambda compiles an expression over the float variable `epoch`
// into a multiplicative factor. Evaluation errors yield a factor of 1.
func CompileLambda(source string) (func(epoch int) float64, error) {
	program, err := expr.Compile(source, expr.Env(map[string]any{"epoch": 0.0}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLambda, source, err)
	}
	return lambdaFunc(program), nil
}

func lambdaFunc(program *vm.Program) func(int) float64 {
	return func(epoch int) float64 {
		out, err := expr.Run(program, map[string]any{"epoch": float64(epoch)})
		if err != nil {
			return 1
		}
		f, ok := out.(float64)
		if !ok {
			return 1
		}
		return f
	}
}

// PlateauConfig configures ReduceLROnPlateau in "min" mode with a relative threshold.
type PlateauConfig struct {
	Factor    float64
	Patience  int
	Threshold float64
	Cooldown  int
	MinLR     float64
	Eps       float64
}

// ReduceLROnPlateau multiplies the rate by Factor once the metric has not
// improved for more than Patience steps.
type ReduceLROnPlateau struct {
	opt       Optimizer
	cfg       PlateauConfig
	best      float64
	bad       int
	cooldown  int
	lastEpoch int
}

func NewReduceLROnPlateau(opt Optimizer, cfg PlateauConfig) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{opt: opt, cfg: cfg, best: math.Inf(1)}
}

func (s *ReduceLROnPlateau) Kind() SchedulerKind { return SchedulerPlateau }
func (s *ReduceLROnPlateau) NeedsMetric() bool   { return true }
func (s *ReduceLROnPlateau) LastEpoch() int      { return s.lastEpoch }

// Resume moves the epoch counter. The plateau history starts over.
func (s *ReduceLROnPlateau) Resume(lastEpoch int) { s.lastEpoch = lastEpoch }

func (s *ReduceLROnPlateau) Step(metric float64) {
	s.lastEpoch++
	if metric < s.best*(1-s.cfg.Threshold) {
		s.best = metric
		s.bad = 0
	} else {
		s.bad++
	}
	if s.cooldown > 0 {
		s.cooldown--
		s.bad = 0
	}
	if s.bad > s.cfg.Patience {
		old := s.opt.LR()
		lr := math.Max(old*s.cfg.Factor, s.cfg.MinLR)
		if old-lr > s.cfg.Eps {
			s.opt.SetLR(lr)
		}
		s.cooldown = s.cfg.Cooldown
		s.bad = 0
	}
}
