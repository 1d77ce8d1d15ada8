// Package config defines the training configuration and binds it to
// command-line flags.
package config

import (
	"flag"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/model"
)

// Non-finite step policies.
const (
	OnNonFiniteAbort = "abort"
	OnNonFiniteSkip  = "skip"
)

// Config is the full training configuration.
type Config struct {
	Model model.Options

	DataDir       string
	ExperimentDir string

	Epochs    int
	BatchSize int
	// Schedule halves the learning rate every Schedule epochs; 0 disables it.
	Schedule int
	MinLR    float64

	SampleSteps     int
	CheckpointSteps int
	LogSteps        int

	Resume      bool
	OnNonFinite string
	Workers     int
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Model:           model.DefaultOptions(),
		DataDir:         "data",
		ExperimentDir:   "experiment",
		Epochs:          100,
		BatchSize:       16,
		Schedule:        20,
		MinLR:           0.0002,
		SampleSteps:     50,
		CheckpointSteps: 500,
		LogSteps:        10,
		OnNonFinite:     OnNonFiniteAbort,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	switch {
	case c.Model.ImageSize < 16 || c.Model.ImageSize&(c.Model.ImageSize-1) != 0:
		return errors.Errorf("config: image_size %d must be a power of two >= 16", c.Model.ImageSize)
	case c.Model.EmbeddingDim < 1 || c.Model.NGF < 1 || c.Model.NDF < 1:
		return errors.New("config: embedding_dim, ngf and ndf must be positive")
	case c.DataDir == "":
		return errors.New("config: data_dir is required")
	case c.ExperimentDir == "":
		return errors.New("config: experiment_dir is required")
	case c.Epochs < 1:
		return errors.Errorf("config: epochs %d < 1", c.Epochs)
	case c.BatchSize < 1:
		return errors.Errorf("config: batch_size %d < 1", c.BatchSize)
	case c.Schedule < 0 || c.SampleSteps < 0 || c.CheckpointSteps < 0 || c.LogSteps < 0:
		return errors.New("config: step intervals must be non-negative")
	case c.MinLR < 0:
		return errors.Errorf("config: min_lr %v < 0", c.MinLR)
	case c.OnNonFinite != OnNonFiniteAbort && c.OnNonFinite != OnNonFiniteSkip:
		return errors.Errorf("config: on_non_finite %q is not %q or %q", c.OnNonFinite, OnNonFiniteAbort, OnNonFiniteSkip)
	}
	return nil
}

// CheckpointDir is where checkpoints are written.
func (c Config) CheckpointDir() string { return filepath.Join(c.ExperimentDir, "checkpoint") }

// SampleDir is where sample grids are written.
func (c Config) SampleDir() string { return filepath.Join(c.ExperimentDir, "sample") }

// LogFile is the CSV step log.
func (c Config) LogFile() string { return filepath.Join(c.ExperimentDir, "log.csv") }

// RegisterFlags binds every field to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	m := &c.Model
	fs.IntVar(&m.InputNC, "input_nc", m.InputNC, "number of image channels (1 gray, 3 RGB)")
	fs.IntVar(&m.EmbeddingNum, "embedding_num", m.EmbeddingNum, "number of style categories")
	fs.IntVar(&m.EmbeddingDim, "embedding_dim", m.EmbeddingDim, "dimension of the style embedding")
	fs.IntVar(&m.NGF, "ngf", m.NGF, "generator base width")
	fs.IntVar(&m.NDF, "ndf", m.NDF, "discriminator base width")
	fs.IntVar(&m.ImageSize, "image_size", m.ImageSize, "square image size")
	fs.Float64Var(&m.LconstPenalty, "Lconst_penalty", m.LconstPenalty, "weight of the constancy loss")
	fs.Float64Var(&m.LcategoryPenalty, "Lcategory_penalty", m.LcategoryPenalty, "weight of the category loss")
	fs.Float64Var(&m.L1Penalty, "L1_penalty", m.L1Penalty, "weight of the L1 loss")
	fs.Float64Var(&m.LR, "lr", m.LR, "initial learning rate")
	fs.Int64Var(&m.Seed, "seed", m.Seed, "random seed for initialisation and shuffling")

	fs.StringVar(&c.DataDir, "data_dir", c.DataDir, "directory of paired glyph PNGs")
	fs.StringVar(&c.ExperimentDir, "experiment_dir", c.ExperimentDir, "directory for checkpoints, samples and logs")
	fs.IntVar(&c.Epochs, "epoch", c.Epochs, "number of epochs")
	fs.IntVar(&c.BatchSize, "batch_size", c.BatchSize, "number of examples per batch")
	fs.IntVar(&c.Schedule, "schedule", c.Schedule, "halve the learning rate every N epochs (0 disables)")
	fs.Float64Var(&c.MinLR, "min_lr", c.MinLR, "learning rate floor for the schedule")
	fs.IntVar(&c.SampleSteps, "sample_steps", c.SampleSteps, "write a sample every N steps (0 disables)")
	fs.IntVar(&c.CheckpointSteps, "checkpoint_steps", c.CheckpointSteps, "save a checkpoint every N steps (0 disables)")
	fs.IntVar(&c.LogSteps, "log_steps", c.LogSteps, "log losses every N steps (0 disables)")
	fs.BoolVar(&c.Resume, "resume", c.Resume, "resume from the latest checkpoint")
	fs.StringVar(&c.OnNonFinite, "on_non_finite", c.OnNonFinite, "policy for NaN/Inf steps: abort or skip")
	fs.IntVar(&c.Workers, "workers", c.Workers, "kernel worker goroutines (0 uses every logical core)")
}
