// Package checkpoint provides the checkpoint domain entities and the
// persistence interface, with no storage dependencies.
package checkpoint

import (
	"fmt"
	"regexp"

	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/internal/core/optim"
)

// FileExt is appended to Key.ID to build checkpoint file names.
const FileExt = ".tar"

// Model and dataset names exclude '_', which separates the parts of ID.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]*$`)

// Key identifies a checkpoint. It is a pure function of model name,
// dataset name and epoch, so snapshots can be located without training.
type Key struct {
	Model   string `json:"model"`
	Dataset string `json:"dataset"`
	Epoch   int    `json:"epoch"`
}

// ID returns "{model}_{dataset}_epoch{N}".
func (k Key) ID() string {
	return fmt.Sprintf("%s_%s_epoch%d", k.Model, k.Dataset, k.Epoch)
}

// FileName returns ID with the checkpoint extension.
func (k Key) FileName() string {
	return k.ID() + FileExt
}

// Validate ensures the key maps to a safe, unambiguous path.
func (k Key) Validate() error {
	if !namePattern.MatchString(k.Model) {
		return fmt.Errorf("%w: %q", ErrInvalidModel, k.Model)
	}
	if !namePattern.MatchString(k.Dataset) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, k.Dataset)
	}
	if k.Epoch < 0 {
		return ErrInvalidEpoch
	}
	return nil
}

// Record is the durable snapshot written for one epoch.
// PRINCIPLES:
// - KISS: plain data, field order fixed for byte-stable encoding
type Record struct {
	ModelState     []model.Tensor `json:"model_state_dict" msgpack:"model_state_dict"`
	OptimizerState optim.State    `json:"optimizer_state_dict" msgpack:"optimizer_state_dict"`
	Epoch          int            `json:"epoch" msgpack:"epoch"`
}

// Validate ensures the record carries parameters.
func (r *Record) Validate() error {
	if len(r.ModelState) == 0 {
		return ErrEmptyRecord
	}
	if r.Epoch < 0 {
		return ErrInvalidEpoch
	}
	return nil
}
