package usecases

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/config"
	"github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/internal/core/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedEncoder has one parameter whose gradient is always one, so every
// optimizer step moves it.
type scriptedEncoder struct {
	w        *model.Parameter
	training bool
}

func newScriptedEncoder() *scriptedEncoder {
	w := model.NewParameter("encoder.weight", 2)
	copy(w.Data, []float64{1, -1})
	return &scriptedEncoder{w: w}
}

func (e *scriptedEncoder) Forward(*graph.Graph) (*model.Views, error) {
	return &model.Views{Local: mat.NewDense(1, 1, nil), Global: mat.NewDense(1, 1, nil)}, nil
}

func (e *scriptedEncoder) Backward(*model.ViewGrads) error {
	for i := range e.w.Grad {
		e.w.Grad[i] += 1
	}
	return nil
}

func (e *scriptedEncoder) Parameters() []*model.Parameter { return []*model.Parameter{e.w} }
func (e *scriptedEncoder) SetTraining(training bool)      { e.training = training }

// scriptedObjective returns losses in order, repeating the last one.
type scriptedObjective struct {
	losses []float64
	calls  int
}

func (o *scriptedObjective) Loss(*model.Views) (float64, *model.ViewGrads, error) {
	i := min(o.calls, len(o.losses)-1)
	o.calls++
	return o.losses[i], &model.ViewGrads{}, nil
}

func scriptedModel(losses ...float64) *model.Model {
	return &model.Model{
		Name:      "Scripted",
		Encoder:   newScriptedEncoder(),
		Objective: &scriptedObjective{losses: losses},
	}
}

// recordingStore remembers the epochs it was asked to save and load.
type recordingStore struct {
	saved  []int
	loaded []int
	err    error
}

func (s *recordingStore) Save(_ context.Context, epoch int) (string, error) {
	s.saved = append(s.saved, epoch)
	return "mem", s.err
}

func (s *recordingStore) Load(_ context.Context, epoch int) error {
	s.loaded = append(s.loaded, epoch)
	return s.err
}

type epochMetric struct {
	epoch int
	loss  float64
	lr    float64
}

// recordingMetrics captures what the executor reports.
type recordingMetrics struct {
	scalars     map[string][]float64
	epochs      []epochMetric
	checkpoints map[string]int
	probes      map[int][2]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		scalars:     map[string][]float64{},
		checkpoints: map[string]int{},
		probes:      map[int][2]float64{},
	}
}

func (m *recordingMetrics) AddScalar(tag string, value float64, _ int) {
	m.scalars[tag] = append(m.scalars[tag], value)
}

func (m *recordingMetrics) ObserveEpoch(epoch int, loss, lr float64, _ time.Duration) {
	m.epochs = append(m.epochs, epochMetric{epoch: epoch, loss: loss, lr: lr})
}

func (m *recordingMetrics) CheckpointSaved(reason string) { m.checkpoints[reason]++ }

func (m *recordingMetrics) ObserveProbe(milestone int, micro, macro float64) {
	m.probes[milestone] = [2]float64{micro, macro}
}

// testConfig disables scheduling and saving so each test opts in.
func testConfig(maxEpoch int) config.Config {
	cfg := config.Default()
	cfg.ExpID = "test"
	cfg.Model = "Scripted"
	cfg.Dataset = "toy"
	cfg.Training.MaxEpoch = maxEpoch
	cfg.Training.SavedModel = false
	cfg.Training.CheckpointMilestones = nil
	cfg.Scheduler.Decay = false
	return cfg
}
