package dto

import "time"

// Split partitions node indices for the linear probe.
type Split struct {
	Train []int `json:"train"`
	Val   []int `json:"val"`
	Test  []int `json:"test"`
}

// Validate checks that train and test are populated and every index is
// below n.
func (s Split) Validate(n int) error {
	if len(s.Train) == 0 || len(s.Test) == 0 {
		return ErrEmptySplit
	}
	for _, set := range [][]int{s.Train, s.Val, s.Test} {
		for _, i := range set {
			if i < 0 || i >= n {
				return ErrInvalidSplitIndex
			}
		}
	}
	return nil
}

// ProbeResult is the linear probe's score on the test set.
type ProbeResult struct {
	MicroF1 float64 `json:"micro_f1"`
	MacroF1 float64 `json:"macro_f1"`
}

// EvaluationResult is the report written for one milestone.
type EvaluationResult struct {
	MicroF1         float64   `json:"micro_f1"`
	MacroF1         float64   `json:"macro_f1"`
	Model           string    `json:"model"`
	Dataset         string    `json:"dataset"`
	Milestone       int       `json:"milestone"`
	CheckpointEpoch int       `json:"checkpoint_epoch"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	Path            string    `json:"-"`
}
