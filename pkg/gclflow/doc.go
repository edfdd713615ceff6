// Package gclflow is the public façade over the training executor. A
// Runtime wires a configuration to a dataset, a checkpoint backend, the
// reference two-view model and a metrics recorder, and exposes training,
// evaluation and checkpoint listing without importing internal packages.
package gclflow
