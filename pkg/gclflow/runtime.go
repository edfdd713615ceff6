package gclflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gclflow/gclflow/internal/adapters/probe"
	"github.com/gclflow/gclflow/internal/adapters/repository/dataset"
	"github.com/gclflow/gclflow/internal/app/dto"
	"github.com/gclflow/gclflow/internal/app/usecases"
	"github.com/gclflow/gclflow/internal/config"
	"github.com/gclflow/gclflow/internal/core/checkpoint"
	coregraph "github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/internal/infrastructure/metrics"
)

// Re-export the types callers need without importing internal packages.
type (
	Graph            = coregraph.Graph
	Config           = config.Config
	RunOutcome       = dto.RunOutcome
	EvaluationResult = dto.EvaluationResult
	CheckpointKey    = checkpoint.Key
)

// LoadConfig reads a configuration file, see config.Load.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	return config.Load(path, envFiles...)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return config.Default()
}

// Runtime owns everything one experiment needs.
// PRINCIPLES:
// - SRP: composition only, the executor does the work
// - DIP: the saver and graph can be injected for tests
type Runtime struct {
	cfg       Config
	graphs    *dataset.InMemoryRepository
	graphName string
	store     Store
	ownsStore bool
	recorder  *metrics.Recorder
	executor  *usecases.Executor
	logger    *slog.Logger
}

// RuntimeOption customises NewRuntime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	graph  *Graph
	store  Store
	logger *slog.Logger
}

// WithGraph trains on a copy of g, renamed to the configured dataset,
// instead of loading one.
func WithGraph(g *Graph) RuntimeOption {
	return func(o *runtimeOptions) { o.graph = g }
}

// WithStore uses s instead of opening the configured backend. The runtime
// does not close an injected store.
func WithStore(s Store) RuntimeOption {
	return func(o *runtimeOptions) { o.store = s }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(o *runtimeOptions) { o.logger = logger }
}

// NewRuntime loads the dataset, opens the checkpoint store, builds the
// model and resumes from cfg's epoch when it is set.
func NewRuntime(ctx context.Context, cfg Config, opts ...RuntimeOption) (*Runtime, error) {
	o := runtimeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := o.logger.With("exp_id", cfg.ExpID)
	logHost(logger)

	var g *Graph
	if o.graph != nil {
		named := *o.graph
		named.Name = cfg.Dataset
		g = &named
	} else {
		var err error
		if g, err = LoadGraph(cfg); err != nil {
			return nil, err
		}
	}
	graphs := dataset.NewInMemoryRepository()
	if err := graphs.Save(ctx, g); err != nil {
		return nil, err
	}
	logger.Info("dataset ready", "dataset", g.Name, "nodes", g.NumNodes(),
		"features", g.NumFeatures(), "edges", len(g.Edges), "classes", g.NumClasses())

	rt := &Runtime{
		cfg:       cfg.Clone(),
		graphs:    graphs,
		graphName: g.Name,
		store:     o.store,
		logger:    logger,
	}
	if rt.store == nil {
		s, err := OpenStore(ctx, cfg.Store, cfg.CacheDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		rt.store = s
		rt.ownsStore = true
	}

	m, err := BuildModel(cfg, g, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.recorder = metrics.NewRecorder(prometheus.Labels{"model": cfg.Model, "dataset": cfg.Dataset})
	ev := cfg.Evaluation
	rt.executor, err = usecases.NewExecutor(ctx, cfg, m, rt.store,
		usecases.WithLogger(logger),
		usecases.WithMetrics(rt.recorder),
		usecases.WithProbe(probe.NewLogisticRegression(probe.Config{
			Epochs:       ev.ProbeEpochs,
			LR:           ev.ProbeLR,
			WeightDecay:  ev.ProbeWeightDecay,
			TestInterval: ev.ProbeTestInterval,
			Seed:         cfg.Seed,
		})),
		usecases.WithSplit(func(n int) (dto.Split, error) {
			return probe.RandomSplit(n, ev.TrainRatio, ev.TestRatio, cfg.Seed)
		}),
		usecases.WithCheckpointHook(func(op string, key checkpoint.Key, path string) {
			logger.Debug("checkpoint "+op, "checkpoint", key.ID(), "path", path)
		}),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Config returns the effective configuration.
func (rt *Runtime) Config() Config { return rt.cfg.Clone() }

// Graph returns the dataset the runtime trains on.
func (rt *Runtime) Graph(ctx context.Context) (*Graph, error) {
	return rt.graphs.Get(ctx, rt.graphName)
}

// Train runs the epoch loop.
func (rt *Runtime) Train(ctx context.Context) (RunOutcome, error) {
	g, err := rt.Graph(ctx)
	if err != nil {
		return RunOutcome{}, err
	}
	return rt.executor.Run(ctx, g)
}

// Evaluate runs the milestone sweep. Results gathered before a failure are
// returned with the error.
func (rt *Runtime) Evaluate(ctx context.Context) ([]EvaluationResult, error) {
	g, err := rt.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return rt.executor.Evaluate(ctx, g)
}

// Checkpoints lists the stored snapshots of this model on this dataset.
func (rt *Runtime) Checkpoints(ctx context.Context) ([]CheckpointKey, error) {
	return rt.store.List(ctx, checkpoint.Filter{Model: rt.cfg.Model, Dataset: rt.cfg.Dataset})
}

// Metrics is the registry holding the training collectors.
func (rt *Runtime) Metrics() prometheus.Gatherer { return rt.recorder.Registry() }

// Close releases the checkpoint store when the runtime opened it.
func (rt *Runtime) Close() error {
	if !rt.ownsStore || rt.store == nil {
		return nil
	}
	err := rt.store.Close()
	rt.store = nil
	if err != nil {
		return fmt.Errorf("failed to close checkpoint store: %w", err)
	}
	return nil
}
