package gclflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gclflow/gclflow/internal/adapters/encoder"
	"github.com/gclflow/gclflow/internal/adapters/objective"
	"github.com/gclflow/gclflow/internal/adapters/repository/dataset"
	"github.com/gclflow/gclflow/internal/adapters/repository/file"
	"github.com/gclflow/gclflow/internal/adapters/repository/memory"
	"github.com/gclflow/gclflow/internal/adapters/repository/postgres"
	"github.com/gclflow/gclflow/internal/adapters/repository/sqlite"
	"github.com/gclflow/gclflow/internal/config"
	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/pkg/serialization"
)

// Store is a checkpoint saver that holds resources.
type Store interface {
	checkpoint.Saver
	Close() error
}

// LoadGraph reads cfg.DatasetPath, or generates the synthetic graph
// described by cfg.Synthetic when no path is set. The graph is named after
// cfg.Dataset.
func LoadGraph(cfg config.Config) (*graph.Graph, error) {
	var (
		g   *graph.Graph
		err error
	)
	if cfg.DatasetPath != "" {
		g, err = dataset.LoadFile(cfg.DatasetPath)
	} else {
		s := cfg.Synthetic
		g, err = dataset.Synthetic(dataset.SyntheticConfig{
			Name:      cfg.Dataset,
			Nodes:     s.Nodes,
			Features:  s.Features,
			Classes:   s.Classes,
			Degree:    s.Degree,
			Homophily: s.Homophily,
			Noise:     s.Noise,
			Seed:      cfg.Seed,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", cfg.Dataset, err)
	}
	g.Name = cfg.Dataset
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", cfg.Dataset, err)
	}
	return g, nil
}

// OpenStore opens the checkpoint backend named by sc. File and sqlite
// stores live under cacheDir unless a DSN says otherwise.
func OpenStore(ctx context.Context, sc config.StoreConfig, cacheDir string) (Store, error) {
	compression, err := serialization.ParseCompression(sc.Compression)
	if err != nil {
		return nil, err
	}
	ser := serialization.NewSerializer(serialization.SerializationConfig{
		Codec:       serialization.NewMsgPackCodec(),
		Compression: compression,
	})

	switch sc.Backend {
	case "", "file":
		dir := cacheDir
		if sc.DSN != "" {
			dir = sc.DSN
		}
		return file.NewCheckpointSaver(dir, ser), nil
	case "memory":
		return memory.NewInMemorySaver(memory.InMemoryConfig{
			MaxMemoryMB: int64(sc.MaxMemoryMB),
			Serializer:  ser,
		}), nil
	case "sqlite":
		dsn := sc.DSN
		if dsn == "" {
			if err := os.MkdirAll(cacheDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
			dsn = filepath.Join(cacheDir, "checkpoints.db")
		}
		return sqlite.Open(ctx, dsn, ser)
	case "postgres":
		return postgres.Connect(ctx, sc.DSN, ser)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", sc.Backend)
	}
}

// BuildModel assembles the two-view encoder and the objective named by
// cfg.TrainLoss. Unknown objective names fall back to alignment.
func BuildModel(cfg config.Config, g *graph.Graph, logger *slog.Logger) (*model.Model, error) {
	enc, err := encoder.NewTwoView(encoder.Config{
		InDim:     g.NumFeatures(),
		HiddenDim: cfg.Encoder.OutputDim,
		Alpha:     cfg.Encoder.PPRAlpha,
		Steps:     cfg.Encoder.PPRSteps,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.TrainLoss)) {
	case "", "none", "align", "alignment":
	default:
		logger.Warn("received unrecognized train_loss, using alignment", "train_loss", cfg.TrainLoss)
	}
	obj := &objective.Alignment{
		Lambda: cfg.Objective.Lambda,
		Gamma:  cfg.Objective.Gamma,
		Beta:   cfg.Objective.Beta,
	}

	m := &model.Model{Name: cfg.Model, Encoder: enc, Objective: obj}
	return m, m.Validate()
}
