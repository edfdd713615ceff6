// Package config loads executor settings from a YAML file, an optional .env
// file and GCLFLOW_* environment variables, in that order of precedence
// (later wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gclflow/gclflow/pkg/validation"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GCLFLOW_"

// Config is the complete executor configuration. Keys mirror the flat
// dictionary the training scripts have always used, so the training,
// optimizer, scheduler, evaluation, encoder and objective groups are inlined.
type Config struct {
	ExpID       string `yaml:"exp_id" validate:"omitempty,identifier"`
	Model       string `yaml:"model" validate:"segment"`
	Dataset     string `yaml:"dataset" validate:"segment"`
	DatasetPath string `yaml:"dataset_path"`
	CacheRoot   string `yaml:"cache_root" validate:"required"`
	Seed        uint64 `yaml:"seed"`
	TrainLoss   string `yaml:"train_loss"`

	Training   TrainingConfig   `yaml:",inline"`
	Optimizer  OptimizerConfig  `yaml:",inline"`
	Scheduler  SchedulerConfig  `yaml:",inline"`
	Evaluation EvaluationConfig `yaml:",inline"`
	Encoder    EncoderConfig    `yaml:",inline"`
	Objective  ObjectiveConfig  `yaml:",inline"`

	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TrainingConfig drives the epoch loop.
type TrainingConfig struct {
	MaxEpoch             int     `yaml:"max_epoch" validate:"gte=0"`
	Epoch                int     `yaml:"epoch" validate:"gte=0"`
	Patience             int     `yaml:"patience" validate:"gte=1"`
	UseEarlyStop         bool    `yaml:"use_early_stop"`
	LogEvery             int     `yaml:"log_every" validate:"gte=1"`
	SavedModel           bool    `yaml:"saved_model"`
	LoadBestEpoch        bool    `yaml:"load_best_epoch"`
	ClipGradNorm         bool    `yaml:"clip_grad_norm"`
	MaxGradNorm          float64 `yaml:"max_grad_norm" validate:"finite,gt=0"`
	CheckpointMilestones []int   `yaml:"checkpoint_milestones" validate:"ascending,dive,gt=0"`
}

// OptimizerConfig selects and parameterises the optimizer. Unknown learner
// names fall back to adam when the optimizer is built.
type OptimizerConfig struct {
	Learner      string  `yaml:"learner"`
	LearningRate float64 `yaml:"learning_rate" validate:"finite,gt=0"`
	WeightDecay  float64 `yaml:"weight_decay" validate:"finite,gte=0"`
	Beta1        float64 `yaml:"lr_beta1" validate:"finite,gte=0,lt=1"`
	Beta2        float64 `yaml:"lr_beta2" validate:"finite,gte=0,lt=1"`
	Alpha        float64 `yaml:"lr_alpha" validate:"finite,gte=0,lt=1"`
	Epsilon      float64 `yaml:"lr_epsilon" validate:"finite,gt=0"`
	Momentum     float64 `yaml:"lr_momentum" validate:"finite,gte=0"`
}

// SchedulerConfig selects the learning-rate scheduler. It is ignored when
// Decay is false.
type SchedulerConfig struct {
	Decay      bool    `yaml:"lr_decay"`
	Name       string  `yaml:"lr_scheduler"`
	DecayRatio float64 `yaml:"lr_decay_ratio" validate:"finite,gt=0"`
	Steps      []int   `yaml:"steps" validate:"ascending,dive,gte=0"`
	StepSize   int     `yaml:"step_size" validate:"gte=1"`
	Lambda     string  `yaml:"lr_lambda"`
	TMax       int     `yaml:"lr_T_max" validate:"gte=1"`
	EtaMin     float64 `yaml:"lr_eta_min" validate:"finite,gte=0"`
	Patience   int     `yaml:"lr_patience" validate:"gte=0"`
	Threshold  float64 `yaml:"lr_threshold" validate:"finite,gte=0"`
}

// EvaluationConfig drives the linear-probe sweep.
type EvaluationConfig struct {
	EvalMilestones    []int   `yaml:"eval_milestones" validate:"ascending,dive,gt=0"`
	TrainRatio        float64 `yaml:"train_ratio" validate:"finite,gt=0,lt=1"`
	TestRatio         float64 `yaml:"test_ratio" validate:"finite,gt=0,lt=1"`
	ProbeEpochs       int     `yaml:"probe_epochs" validate:"gte=1"`
	ProbeLR           float64 `yaml:"probe_learning_rate" validate:"finite,gt=0"`
	ProbeWeightDecay  float64 `yaml:"probe_weight_decay" validate:"finite,gte=0"`
	ProbeTestInterval int     `yaml:"probe_test_interval" validate:"gte=1"`
}

// EncoderConfig sizes the reference two-view encoder.
type EncoderConfig struct {
	OutputDim int     `yaml:"output_dim" validate:"gte=1"`
	PPRAlpha  float64 `yaml:"ppr_alpha" validate:"finite,gt=0,lte=1"`
	PPRSteps  int     `yaml:"ppr_steps" validate:"gte=1"`
}

// ObjectiveConfig weights the alignment objective's terms.
type ObjectiveConfig struct {
	Lambda float64 `yaml:"align_lambda" validate:"finite,gte=0"`
	Gamma  float64 `yaml:"align_gamma" validate:"finite,gte=0"`
	Beta   float64 `yaml:"align_beta" validate:"finite,gte=0"`
}

// StoreConfig picks the checkpoint persistence backend.
type StoreConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=file memory sqlite postgres"`
	DSN         string `yaml:"dsn" validate:"required_if=Backend postgres"`
	Compression string `yaml:"compression" validate:"omitempty,oneof=none gzip zstd"`
	MaxMemoryMB int    `yaml:"max_memory_mb" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=pretty text json"`
}

// SyntheticConfig describes the generated graph used when no dataset_path
// is given.
type SyntheticConfig struct {
	Nodes     int     `yaml:"nodes" validate:"gte=2"`
	Features  int     `yaml:"features" validate:"gte=1"`
	Classes   int     `yaml:"classes" validate:"gte=1"`
	Degree    int     `yaml:"degree" validate:"gte=0"`
	Homophily float64 `yaml:"homophily" validate:"finite,gte=0,lte=1"`
	Noise     float64 `yaml:"noise" validate:"finite,gte=0"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() Config {
	return Config{
		Model:     "TwoView",
		Dataset:   "synthetic",
		CacheRoot: "cache",
		TrainLoss: "none",
		Training: TrainingConfig{
			MaxEpoch:             100,
			Patience:             50,
			LogEvery:             1,
			SavedModel:           true,
			MaxGradNorm:          1.0,
			CheckpointMilestones: []int{50, 100, 500, 1000, 10000},
		},
		Optimizer: OptimizerConfig{
			Learner:      "adam",
			LearningRate: 0.01,
			Beta1:        0.9,
			Beta2:        0.999,
			Alpha:        0.99,
			Epsilon:      1e-8,
		},
		Scheduler: SchedulerConfig{
			Decay:      true,
			Name:       "multisteplr",
			DecayRatio: 0.1,
			Steps:      []int{},
			StepSize:   10,
			Lambda:     "epoch",
			TMax:       30,
			Patience:   10,
			Threshold:  1e-4,
		},
		Evaluation: EvaluationConfig{
			EvalMilestones:    []int{50, 100, 500, 1000, 10000},
			TrainRatio:        0.1,
			TestRatio:         0.8,
			ProbeEpochs:       500,
			ProbeLR:           0.01,
			ProbeTestInterval: 20,
		},
		Encoder: EncoderConfig{
			OutputDim: 64,
			PPRAlpha:  0.2,
			PPRSteps:  10,
		},
		Objective: ObjectiveConfig{Lambda: 1, Gamma: 1, Beta: 1},
		Store: StoreConfig{
			Backend:     "file",
			Compression: "zstd",
			MaxMemoryMB: 1024,
		},
		Log: LogConfig{Level: "info", Format: "pretty"},
		Synthetic: SyntheticConfig{
			Nodes:     300,
			Features:  32,
			Classes:   3,
			Degree:    5,
			Homophily: 0.8,
			Noise:     1.0,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the given .env files (".env" when none are named; a
// missing default file is not an error) and GCLFLOW_* variables. A missing
// exp_id is filled with a fresh UUID.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrReadConfig, err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, err
		}
	}

	if err := loadDotEnv(envFiles); err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if cfg.ExpID == "" {
		cfg.ExpID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrParseConfig, err)
	}
	return nil
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: .env: %w", ErrReadConfig, err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return nil
}

// Validate checks field constraints and the cross-field rules tags cannot
// express.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Evaluation.TrainRatio+c.Evaluation.TestRatio > 1 {
		return fmt.Errorf("%w: train_ratio + test_ratio = %v exceeds 1",
			ErrInvalidConfig, c.Evaluation.TrainRatio+c.Evaluation.TestRatio)
	}
	return nil
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	out := c
	out.Training.CheckpointMilestones = slices.Clone(c.Training.CheckpointMilestones)
	out.Scheduler.Steps = slices.Clone(c.Scheduler.Steps)
	out.Evaluation.EvalMilestones = slices.Clone(c.Evaluation.EvalMilestones)
	return out
}

// ExperimentDir is {cache_root}/{exp_id}.
func (c Config) ExperimentDir() string {
	return filepath.Join(c.CacheRoot, c.ExpID)
}

// CacheDir holds checkpoints.
func (c Config) CacheDir() string {
	return filepath.Join(c.ExperimentDir(), "model_cache")
}

// EvaluateDir holds evaluation reports.
func (c Config) EvaluateDir() string {
	return filepath.Join(c.ExperimentDir(), "evaluate_cache")
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
