// Package services binds core domain objects to the live training state.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/internal/core/optim"
)

// Checkpoint operations reported to hooks.
const (
	OpSaved  = "saved"
	OpLoaded = "loaded"
)

// CheckpointHook observes checkpoint operations. It runs synchronously
// after the operation succeeded.
type CheckpointHook func(op string, key checkpoint.Key, path string)

// CheckpointService snapshots and restores one model and its optimizer.
// PRINCIPLES:
// - SRP: translates between live parameters and checkpoint records
// - DIP: depends on checkpoint.Saver, not on a backend
type CheckpointService struct {
	saver   checkpoint.Saver
	model   *model.Model
	opt     optim.Optimizer
	dataset string
	hooks   []CheckpointHook
	logger  *slog.Logger
}

// NewCheckpointService binds saver to m and opt. Records are keyed by
// m.Name and dataset.
func NewCheckpointService(saver checkpoint.Saver, m *model.Model, opt optim.Optimizer, dataset string, logger *slog.Logger) *CheckpointService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointService{
		saver:   saver,
		model:   m,
		opt:     opt,
		dataset: dataset,
		logger:  logger,
	}
}

// AddHook registers a callback for checkpoint operations.
func (s *CheckpointService) AddHook(hook CheckpointHook) {
	s.hooks = append(s.hooks, hook)
}

// Key returns the key for epoch.
func (s *CheckpointService) Key(epoch int) checkpoint.Key {
	return checkpoint.Key{Model: s.model.Name, Dataset: s.dataset, Epoch: epoch}
}

// Save snapshots encoder parameters and optimizer state as epoch.
func (s *CheckpointService) Save(ctx context.Context, epoch int) (string, error) {
	key := s.Key(epoch)
	record := &checkpoint.Record{
		ModelState:     model.StateDict(s.model.Parameters()),
		OptimizerState: s.opt.State(),
		Epoch:          epoch,
	}
	path, err := s.saver.Save(ctx, key, record)
	if err != nil {
		return "", fmt.Errorf("failed to save checkpoint %s: %w", key.ID(), err)
	}
	s.logger.Info("saved model", "epoch", epoch, "path", path)
	s.notify(OpSaved, key, path)
	return path, nil
}

// Load restores the snapshot for epoch in place. A missing snapshot
// returns checkpoint.ErrCheckpointNotFound and leaves the live state
// untouched; so does a snapshot whose optimizer state does not fit.
func (s *CheckpointService) Load(ctx context.Context, epoch int) error {
	key := s.Key(epoch)
	record, err := s.saver.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint %s: %w", key.ID(), err)
	}

	params := s.model.Parameters()
	previous := model.StateDict(params)
	if err := model.LoadStateDict(params, record.ModelState); err != nil {
		return fmt.Errorf("failed to restore model from %s: %w", key.ID(), err)
	}
	if err := s.opt.LoadState(record.OptimizerState); err != nil {
		// shapes already matched once, so the rollback cannot fail
		_ = model.LoadStateDict(params, previous)
		return fmt.Errorf("failed to restore optimizer from %s: %w", key.ID(), err)
	}

	s.logger.Info("loaded model", "epoch", record.Epoch, "key", key.ID())
	s.notify(OpLoaded, key, "")
	return nil
}

// Epochs lists the stored epochs for this model and dataset, ascending.
func (s *CheckpointService) Epochs(ctx context.Context) ([]int, error) {
	keys, err := s.saver.List(ctx, checkpoint.Filter{Model: s.model.Name, Dataset: s.dataset})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	epochs := make([]int, 0, len(keys))
	for _, k := range keys {
		epochs = append(epochs, k.Epoch)
	}
	return epochs, nil
}

func (s *CheckpointService) notify(op string, key checkpoint.Key, path string) {
	for _, hook := range s.hooks {
		hook(op, key, path)
	}
}
