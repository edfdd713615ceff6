// Package dto holds the values passed between the executor, its services
// and callers.
package dto

import (
	"math"
	"time"
)

// RunStatus is the terminal (or current) state of a training run.
type RunStatus string

const (
	RunStatusRunning      RunStatus = "running"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusEarlyStopped RunStatus = "early_stopped"
	RunStatusCanceled     RunStatus = "canceled"
)

// NoEpoch marks "no best epoch recorded yet".
const NoEpoch = -1

// TrainingRunState is scoped to one Train call and threaded through the loop.
// PRINCIPLES:
// - KISS: plain fields, no hidden carry-over between runs
type TrainingRunState struct {
	Epoch      int
	BestLoss   float64
	BestEpoch  int
	Wait       int
	Status     RunStatus
	Losses     []float64
	TrainTimes []time.Duration
	EvalTimes  []time.Duration
}

// NewTrainingRunState returns a fresh state starting at startEpoch.
func NewTrainingRunState(startEpoch int) *TrainingRunState {
	return &TrainingRunState{
		Epoch:     startEpoch,
		BestLoss:  math.Inf(1),
		BestEpoch: NoEpoch,
		Status:    RunStatusRunning,
	}
}

// Observe records the loss for epoch and reports whether it is strictly
// lower than the best so far. A non-finite loss is compared like any
// other value, so NaN never improves.
func (s *TrainingRunState) Observe(epoch int, loss float64) bool {
	s.Epoch = epoch
	s.Losses = append(s.Losses, loss)
	if loss < s.BestLoss {
		s.BestLoss = loss
		s.BestEpoch = epoch
		s.Wait = 0
		return true
	}
	s.Wait++
	return false
}

// Outcome summarises the run.
func (s *TrainingRunState) Outcome(firstEpoch int) RunOutcome {
	out := RunOutcome{
		Status:       s.Status,
		BestLoss:     s.BestLoss,
		BestEpoch:    s.BestEpoch,
		FirstEpoch:   firstEpoch,
		EpochsRun:    len(s.Losses),
		Losses:       append([]float64(nil), s.Losses...),
		AvgTrainTime: average(s.TrainTimes),
		AvgEvalTime:  average(s.EvalTimes),
	}
	if out.EpochsRun > 0 {
		out.LastEpoch = s.Epoch
	} else {
		out.LastEpoch = NoEpoch
	}
	return out
}

func average(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

// RunOutcome is what Train reports besides the best loss.
type RunOutcome struct {
	Status       RunStatus     `json:"status"`
	BestLoss     float64       `json:"best_loss"`
	BestEpoch    int           `json:"best_epoch"`
	FirstEpoch   int           `json:"first_epoch"`
	LastEpoch    int           `json:"last_epoch"`
	EpochsRun    int           `json:"epochs_run"`
	Losses       []float64     `json:"losses"`
	AvgTrainTime time.Duration `json:"avg_train_time"`
	AvgEvalTime  time.Duration `json:"avg_eval_time"`
}

// EpochResult describes one completed epoch.
type EpochResult struct {
	Epoch    int           `json:"epoch"`
	Loss     float64       `json:"loss"`
	LR       float64       `json:"lr"`
	GradNorm float64       `json:"grad_norm"`
	Duration time.Duration `json:"duration"`
	Improved bool          `json:"improved"`
}
