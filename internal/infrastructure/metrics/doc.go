// Package metrics exposes Prometheus collectors for training and evaluation
// runs (loss, learning rate, epoch timings, checkpoint writes and probe F1)
// and the optional HTTP server that publishes them at /metrics next to
// /healthz.
package metrics
