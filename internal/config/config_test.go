package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.ExpID = "exp"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Training.MaxEpoch)
	assert.Equal(t, 50, cfg.Training.Patience)
	assert.False(t, cfg.Training.UseEarlyStop)
	assert.True(t, cfg.Training.SavedModel)
	assert.Equal(t, []int{50, 100, 500, 1000, 10000}, cfg.Training.CheckpointMilestones)
	assert.Equal(t, "adam", cfg.Optimizer.Learner)
	assert.Equal(t, 0.01, cfg.Optimizer.LearningRate)
	assert.True(t, cfg.Scheduler.Decay)
	assert.Equal(t, "multisteplr", cfg.Scheduler.Name)
	assert.Equal(t, "epoch", cfg.Scheduler.Lambda)
	assert.Equal(t, 0.1, cfg.Evaluation.TrainRatio)
	assert.Equal(t, 0.8, cfg.Evaluation.TestRatio)
}

func TestParse_FlatKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
exp_id: run-7
model: MVGRL
dataset: Cora
max_epoch: 20
use_early_stop: true
patience: 3
learner: SGD
lr_momentum: 0.9
lr_scheduler: StepLR
lr_T_max: 12
steps: [5, 10]
eval_milestones: [10, 20]
output_dim: 16
store:
  backend: sqlite
  dsn: /tmp/ckpt.db
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "run-7", cfg.ExpID)
	assert.Equal(t, "MVGRL", cfg.Model)
	assert.Equal(t, "Cora", cfg.Dataset)
	assert.Equal(t, 20, cfg.Training.MaxEpoch)
	assert.True(t, cfg.Training.UseEarlyStop)
	assert.Equal(t, 3, cfg.Training.Patience)
	assert.Equal(t, "SGD", cfg.Optimizer.Learner)
	assert.Equal(t, 0.9, cfg.Optimizer.Momentum)
	assert.Equal(t, "StepLR", cfg.Scheduler.Name)
	assert.Equal(t, 12, cfg.Scheduler.TMax)
	assert.Equal(t, []int{5, 10}, cfg.Scheduler.Steps)
	assert.Equal(t, []int{10, 20}, cfg.Evaluation.EvalMilestones)
	assert.Equal(t, 16, cfg.Encoder.OutputDim)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/ckpt.db", cfg.Store.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched keys keep their defaults
	assert.Equal(t, 0.01, cfg.Optimizer.LearningRate)
	assert.Equal(t, []int{50, 100, 500, 1000, 10000}, cfg.Training.CheckpointMilestones)
	require.NoError(t, cfg.Validate())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("max_epochs: 3\n"))
	assert.ErrorIs(t, err, ErrParseConfig, "unknown keys are rejected")

	_, err = Parse([]byte("max_epoch: [1\n"))
	assert.ErrorIs(t, err, ErrParseConfig)

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad model", func(c *Config) { c.Model = "a/b" }},
		{"empty dataset", func(c *Config) { c.Dataset = "" }},
		{"underscore in dataset", func(c *Config) { c.Dataset = "ogbn_arxiv" }},
		{"underscore in model", func(c *Config) { c.Model = "my_model" }},
		{"negative epochs", func(c *Config) { c.Training.MaxEpoch = -1 }},
		{"zero patience", func(c *Config) { c.Training.Patience = 0 }},
		{"zero log_every", func(c *Config) { c.Training.LogEvery = 0 }},
		{"unsorted milestones", func(c *Config) { c.Training.CheckpointMilestones = []int{100, 50} }},
		{"zero lr", func(c *Config) { c.Optimizer.LearningRate = 0 }},
		{"beta out of range", func(c *Config) { c.Optimizer.Beta2 = 1 }},
		{"ratios overflow", func(c *Config) {
			c.Evaluation.TrainRatio = 0.5
			c.Evaluation.TestRatio = 0.6
		}},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }},
		{"unknown compression", func(c *Config) { c.Store.Compression = "lz4" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidate_AcceptsFallbackNames(t *testing.T) {
	// unknown optimizer and scheduler names fall back at build time
	cfg := Default()
	cfg.Optimizer.Learner = "lion"
	cfg.Scheduler.Name = "warmup"
	cfg.Metrics.Addr = ":9090"
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GCLFLOW_MAX_EPOCH":       "7",
		"GCLFLOW_USE_EARLY_STOP":  "true",
		"GCLFLOW_LEARNING_RATE":   "0.5",
		"GCLFLOW_LR_T_MAX":        "4",
		"GCLFLOW_EVAL_MILESTONES": "[1, 2, 3]",
		"GCLFLOW_STORE_BACKEND":   "memory",
		"GCLFLOW_LOG_FORMAT":      "json",
		"GCLFLOW_LR_LAMBDA":       "0.95 ** epoch",
		"GCLFLOW_SYNTHETIC_NODES": "40",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, lookup))

	assert.Equal(t, 7, cfg.Training.MaxEpoch)
	assert.True(t, cfg.Training.UseEarlyStop)
	assert.Equal(t, 0.5, cfg.Optimizer.LearningRate)
	assert.Equal(t, 4, cfg.Scheduler.TMax)
	assert.Equal(t, []int{1, 2, 3}, cfg.Evaluation.EvalMilestones)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "0.95 ** epoch", cfg.Scheduler.Lambda)
	assert.Equal(t, 40, cfg.Synthetic.Nodes)
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, func(k string) (string, bool) {
		if k == "GCLFLOW_MAX_EPOCH" {
			return "many", true
		}
		return "", false
	})
	assert.ErrorIs(t, err, ErrEnvOverride)
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys()
	assert.Contains(t, keys, "GCLFLOW_EXP_ID")
	assert.Contains(t, keys, "GCLFLOW_MAX_EPOCH")
	assert.Contains(t, keys, "GCLFLOW_LR_SCHEDULER")
	assert.Contains(t, keys, "GCLFLOW_STORE_DSN")
	assert.Contains(t, keys, "GCLFLOW_METRICS_ADDR")
	assert.NotContains(t, keys, "GCLFLOW_TRAINING_MAX_EPOCH")
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", "model: MVGRL\nmax_epoch: 5\nlog:\n  format: text\n")
	envFile := writeFile(t, "test.env", "GCLFLOW_PATIENCE=9\n")
	t.Setenv("GCLFLOW_MAX_EPOCH", "6")
	t.Setenv("GCLFLOW_CACHE_ROOT", t.TempDir())

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("GCLFLOW_PATIENCE") })

	assert.Equal(t, "MVGRL", cfg.Model)
	assert.Equal(t, 6, cfg.Training.MaxEpoch, "environment wins over the file")
	assert.Equal(t, 9, cfg.Training.Patience, ".env values are applied")
	assert.Equal(t, "text", cfg.Log.Format)

	_, err = uuid.Parse(cfg.ExpID)
	assert.NoError(t, err, "missing exp_id is generated")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrReadConfig)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, ErrReadConfig, "named env files must exist")

	bad := writeFile(t, "bad.yaml", "max_epoch: -4\n")
	_, err = Load(bad, writeFile(t, "empty.env", ""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Steps = []int{1, 2}
	clone := cfg.Clone()

	clone.Training.CheckpointMilestones[0] = 1
	clone.Scheduler.Steps[0] = 9
	clone.Evaluation.EvalMilestones[0] = 1

	assert.Equal(t, 50, cfg.Training.CheckpointMilestones[0])
	assert.Equal(t, 1, cfg.Scheduler.Steps[0])
	assert.Equal(t, 50, cfg.Evaluation.EvalMilestones[0])
}

func TestDirectories(t *testing.T) {
	cfg := Default()
	cfg.CacheRoot = "root"
	cfg.ExpID = "42"

	assert.Equal(t, filepath.Join("root", "42", "model_cache"), cfg.CacheDir())
	assert.Equal(t, filepath.Join("root", "42", "evaluate_cache"), cfg.EvaluateDir())
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.ExpID = "exp"
	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
