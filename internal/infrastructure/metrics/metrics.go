package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gclflow"

// Recorder owns the collectors of one process. Methods are safe for
// concurrent use; the executor writes while the server goroutine reads.
type Recorder struct {
	registry *prometheus.Registry

	loss          prometheus.Gauge
	lr            prometheus.Gauge
	epoch         prometheus.Gauge
	epochs        prometheus.Counter
	epochDuration prometheus.Histogram
	checkpoints   *prometheus.CounterVec
	probeF1       *prometheus.GaugeVec
	scalars       *prometheus.GaugeVec
}

// NewRecorder registers the run collectors, plus Go runtime and process
// collectors, on a fresh registry. constLabels (typically model and
// dataset) are attached to every run series.
func NewRecorder(constLabels prometheus.Labels) *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.loss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "training_loss",
		Help: "Loss of the most recent training epoch.", ConstLabels: constLabels,
	})
	r.lr = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "learning_rate",
		Help: "Optimizer learning rate after the most recent scheduler step.", ConstLabels: constLabels,
	})
	r.epoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "epoch",
		Help: "Index of the most recent training epoch.", ConstLabels: constLabels,
	})
	r.epochs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "epochs_total",
		Help: "Training epochs completed by this process.", ConstLabels: constLabels,
	})
	r.epochDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "epoch_duration_seconds",
		Help:        "Wall time of one training epoch.",
		ConstLabels: constLabels,
		Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	r.checkpoints = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "checkpoints_saved_total",
		Help: "Checkpoints written, by reason.", ConstLabels: constLabels,
	}, []string{"reason"})
	r.probeF1 = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "probe_f1",
		Help: "Linear-probe test F1 per evaluation milestone.", ConstLabels: constLabels,
	}, []string{"average", "milestone"})
	r.scalars = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "scalar",
		Help: "Free-form scalars keyed by tag; the value of the latest step.", ConstLabels: constLabels,
	}, []string{"tag"})

	r.registry.MustRegister(
		r.loss, r.lr, r.epoch, r.epochs, r.epochDuration, r.checkpoints, r.probeF1, r.scalars,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for handlers and tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// AddScalar records value under tag. step is accepted for writer
// compatibility; only the latest value is kept.
func (r *Recorder) AddScalar(tag string, value float64, _ int) {
	r.scalars.WithLabelValues(tag).Set(value)
}

// ObserveEpoch records one finished epoch.
func (r *Recorder) ObserveEpoch(epoch int, loss, lr float64, d time.Duration) {
	r.epoch.Set(float64(epoch))
	r.loss.Set(loss)
	r.lr.Set(lr)
	r.epochs.Inc()
	r.epochDuration.Observe(d.Seconds())
}

// CheckpointSaved counts a checkpoint write.
func (r *Recorder) CheckpointSaved(reason string) {
	r.checkpoints.WithLabelValues(reason).Inc()
}

// ObserveProbe records the probe scores of one evaluation milestone.
func (r *Recorder) ObserveProbe(milestone int, microF1, macroF1 float64) {
	m := strconv.Itoa(milestone)
	r.probeF1.WithLabelValues("micro", m).Set(microF1)
	r.probeF1.WithLabelValues("macro", m).Set(macroF1)
}
