// Package usecases holds the training loop and the evaluation sweep.
package usecases

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/app/dto"
)

// Probe scores embeddings with a downstream classifier.
// PRINCIPLES:
// - DIP: the sweep depends on this, not on a particular classifier
type Probe interface {
	Evaluate(ctx context.Context, x *mat.Dense, labels []int, split dto.Split) (dto.ProbeResult, error)
}

// SplitFunc partitions n nodes for the probe.
type SplitFunc func(n int) (dto.Split, error)

// CheckpointStore saves and restores the live model by epoch.
// services.CheckpointService is the implementation.
type CheckpointStore interface {
	Save(ctx context.Context, epoch int) (string, error)
	Load(ctx context.Context, epoch int) error
}

// MetricWriter receives run metrics. Calls are synchronous and must not
// block.
type MetricWriter interface {
	AddScalar(tag string, value float64, step int)
	ObserveEpoch(epoch int, loss, lr float64, d time.Duration)
	CheckpointSaved(reason string)
	ObserveProbe(milestone int, microF1, macroF1 float64)
}

// NopMetricWriter discards everything.
type NopMetricWriter struct{}

func (NopMetricWriter) AddScalar(string, float64, int)                  {}
func (NopMetricWriter) ObserveEpoch(int, float64, float64, time.Duration) {}
func (NopMetricWriter) CheckpointSaved(string)                          {}
func (NopMetricWriter) ObserveProbe(int, float64, float64)              {}
