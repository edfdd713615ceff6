package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gclflow/gclflow/internal/app/dto"
	"github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/pkg/serialization"
)

// reportTimeLayout renders as YYYY_MM_DD_HH_MM_SS.
const reportTimeLayout = "2006_01_02_15_04_05"

// Evaluate runs the linear-probe sweep: for each evaluation milestone m it
// restores the epoch m-1 snapshot, embeds g in inference mode and writes
// the probe's scores to the evaluation directory. A missing snapshot stops
// the sweep; the results written so far are returned with the error.
func (e *Executor) Evaluate(ctx context.Context, g *graph.Graph) ([]dto.EvaluationResult, error) {
	if e.probe == nil || e.split == nil {
		return nil, fmt.Errorf("%w: evaluation needs a probe and a split", dto.ErrInvalidConfig)
	}
	if len(g.Labels) == 0 {
		return nil, dto.ErrMissingLabels
	}
	dir := e.cfg.EvaluateDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create evaluation directory: %w", err)
	}

	e.logger.Info("start evaluating", "milestones", e.cfg.Evaluation.EvalMilestones)
	var results []dto.EvaluationResult
	for _, milestone := range e.cfg.Evaluation.EvalMilestones {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.evaluateMilestone(ctx, g, dir, milestone)
		if err != nil {
			return results, fmt.Errorf("evaluation at milestone %d: %w", milestone, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Executor) evaluateMilestone(ctx context.Context, g *graph.Graph, dir string, milestone int) (dto.EvaluationResult, error) {
	epoch := milestone - 1
	if err := e.checkpoints.Load(ctx, epoch); err != nil {
		return dto.EvaluationResult{}, err
	}

	enc := e.model.Encoder
	enc.SetTraining(false)
	defer enc.SetTraining(true)

	views, err := enc.Forward(g)
	if err != nil {
		return dto.EvaluationResult{}, fmt.Errorf("forward: %w", err)
	}
	z := views.Combined()
	n, _ := z.Dims()
	if n != len(g.Labels) {
		return dto.EvaluationResult{}, fmt.Errorf("%w: %d rows, %d labels", dto.ErrEmbeddingMismatch, n, len(g.Labels))
	}

	split, err := e.split(n)
	if err != nil {
		return dto.EvaluationResult{}, err
	}
	scores, err := e.probe.Evaluate(ctx, z, g.Labels, split)
	if err != nil {
		return dto.EvaluationResult{}, fmt.Errorf("probe: %w", err)
	}

	now := e.now()
	res := dto.EvaluationResult{
		MicroF1:         scores.MicroF1,
		MacroF1:         scores.MacroF1,
		Model:           e.model.Name,
		Dataset:         e.cfg.Dataset,
		Milestone:       milestone,
		CheckpointEpoch: epoch,
		EvaluatedAt:     now,
	}
	e.logger.Info("evaluate result", "milestone", milestone,
		"micro_f1", res.MicroF1, "macro_f1", res.MacroF1)

	name := now.Format(reportTimeLayout) + "_" + e.model.Name + "_" + e.cfg.Dataset
	path, err := writeReport(dir, name, res)
	if err != nil {
		return dto.EvaluationResult{}, err
	}
	res.Path = path
	e.metrics.ObserveProbe(milestone, res.MicroF1, res.MacroF1)
	e.logger.Info("evaluate result saved", "path", path)
	return res, nil
}

// writeReport creates {dir}/{name}.json, or {name}_{k}.json when reports
// land in the same second, and never overwrites.
func writeReport(dir, name string, res dto.EvaluationResult) (string, error) {
	data, err := serialization.ReportSerializer().Serialize(res)
	if err != nil {
		return "", fmt.Errorf("failed to encode evaluation report: %w", err)
	}

	for k := 0; ; k++ {
		file := name
		if k > 0 {
			file += "_" + strconv.Itoa(k)
		}
		path := filepath.Join(dir, file+".json")
		err := createExclusive(path, bytes.NewReader(data))
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to write evaluation report: %w", err)
		}
		return path, nil
	}
}

// createExclusive copies r into a new file at path. A partly written file
// is removed.
func createExclusive(path string, r io.Reader) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	_, err = io.Copy(f, r)
	return err
}
