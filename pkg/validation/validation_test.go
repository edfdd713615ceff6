package validation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeSection struct {
	Backend string `yaml:"backend" validate:"oneof=file memory sqlite postgres"`
}

type sample struct {
	Name       string       `yaml:"exp_id" validate:"identifier"`
	Dataset    string       `yaml:"dataset" validate:"segment"`
	Rate       float64      `yaml:"learning_rate" validate:"finite,gt=0"`
	Milestones []int        `yaml:"checkpoint_milestones" validate:"ascending,dive,gt=0"`
	Store      storeSection `yaml:"store"`
	Untagged   int          `validate:"gte=0"`
	Hidden     string       `yaml:"-"`
}

type selfChecked struct {
	Count int `yaml:"count" validate:"gte=0"`
	err   error
}

func (s selfChecked) Validate() error { return s.err }

func validSample() sample {
	return sample{
		Name:       "exp-1",
		Dataset:    "ogbn-arxiv",
		Rate:       0.01,
		Milestones: []int{50, 100, 500},
		Store:      storeSection{Backend: "file"},
	}
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sample)
		fields []string
	}{
		{name: "valid", mutate: func(*sample) {}},
		{name: "bad identifier", mutate: func(s *sample) { s.Name = "_hidden" }, fields: []string{"exp_id"}},
		{name: "path in identifier", mutate: func(s *sample) { s.Name = "a/b" }, fields: []string{"exp_id"}},
		{name: "underscore in identifier", mutate: func(s *sample) { s.Name = "run_1" }},
		{name: "underscore in segment", mutate: func(s *sample) { s.Dataset = "ogbn_arxiv" }, fields: []string{"dataset"}},
		{name: "empty segment", mutate: func(s *sample) { s.Dataset = "" }, fields: []string{"dataset"}},
		{name: "nan rate", mutate: func(s *sample) { s.Rate = math.NaN() }, fields: []string{"learning_rate"}},
		{name: "zero rate", mutate: func(s *sample) { s.Rate = 0 }, fields: []string{"learning_rate"}},
		{name: "unsorted milestones", mutate: func(s *sample) { s.Milestones = []int{100, 50} }, fields: []string{"checkpoint_milestones"}},
		{name: "duplicate milestones", mutate: func(s *sample) { s.Milestones = []int{50, 50} }, fields: []string{"checkpoint_milestones"}},
		{name: "nested field", mutate: func(s *sample) { s.Store.Backend = "redis" }, fields: []string{"store.backend"}},
		{name: "untagged field", mutate: func(s *sample) { s.Untagged = -1 }, fields: []string{"Untagged"}},
		{
			name: "several",
			mutate: func(s *sample) {
				s.Name = ""
				s.Store.Backend = ""
			},
			fields: []string{"exp_id", "store.backend"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSample()
			tt.mutate(&s)
			err := Struct(s)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Equal(t, tt.fields, verrs.Fields())
		})
	}
}

func TestCheck(t *testing.T) {
	boom := errors.New("boom")

	assert.NoError(t, Check(selfChecked{}))
	assert.ErrorIs(t, Check(selfChecked{err: boom}), boom)

	// tag errors win over the type's own check
	err := Check(selfChecked{Count: -1, err: boom})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"count"}, verrs.Fields())
}

func TestIdentifier(t *testing.T) {
	tests := map[string]bool{
		"MVGRL":    true,
		"cora":     true,
		"ogbn.arx": true,
		"a_b-c":    true,
		"":         false,
		"-lead":    false,
		"a b":      false,
		"../x":     false,
	}
	for in, want := range tests {
		assert.Equal(t, want, Identifier(in), in)
	}
}

func TestSegment(t *testing.T) {
	tests := map[string]bool{
		"MVGRL":      true,
		"ogbn-arxiv": true,
		"gcl.v2":     true,
		"a_b":        false,
		"_":          false,
		"":           false,
		"a/b":        false,
	}
	for in, want := range tests {
		assert.Equal(t, want, Segment(in), in)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())

	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: "x", Message: "worse"},
	}
	assert.Equal(t,
		"validation error on field 'a': bad (got: 1); validation error on field 'b': worse (got: x)",
		errs.Error())
}
