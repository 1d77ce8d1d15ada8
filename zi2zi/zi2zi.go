// Package zi2zi re-exports the entry points needed to train and run a
// font style transfer model without importing internal packages.
package zi2zi

import (
	"context"
	"log/slog"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/checkpoint"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/config"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/dataset"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/font2img"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/layer"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/model"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/opt"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/train"
)

// Re-export common types for easier access
type (
	Model        = model.Model
	Options      = model.Options
	Report       = model.Report
	Config       = config.Config
	Dataset      = dataset.Dataset
	Batch        = dataset.Batch
	Callback     = train.Callback
	BaseCallback = train.BaseCallback
	State        = train.State
)

// Errors returned by Model.
var (
	ErrDimensionMismatch = model.ErrDimensionMismatch
	ErrNoInput           = model.ErrNoInput
	ErrNonFinite         = model.ErrNonFinite
	ErrComputation       = model.ErrComputation
)

// SetLogger enables structured logging for every package. Pass nil to
// silence it again.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// DefaultConfig returns the reference training configuration.
func DefaultConfig() Config {
	return config.Default()
}

// NewModel builds a model with the reference networks.
func NewModel(opts Options) (*Model, error) {
	return model.New(opts)
}

// LoadModel builds a model from opts and restores the checkpoint at path.
func LoadModel(opts Options, path string) (*Model, error) {
	m, err := model.New(opts)
	if err != nil {
		return nil, err
	}
	c, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	if err := m.Restore(c); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveModel writes a checkpoint of m.
func SaveModel(m *Model, path string, epoch int64) error {
	return checkpoint.Save(path, m.Checkpoint(epoch))
}

// OpenDataset opens a directory of paired glyph PNGs.
func OpenDataset(dir string, imageSize, channels int) (*Dataset, error) {
	return dataset.Open(dir, imageSize, channels)
}

// Train runs the full training loop described by cfg, with the standard
// logging, CSV, checkpoint, sampling and learning-rate callbacks plus any
// extra ones. It resumes from the latest checkpoint when cfg.Resume is set.
func Train(ctx context.Context, cfg Config, extra ...Callback) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	device := layer.NewCPUDevice(cfg.Workers)
	logging.Logger().Info("device", "name", device.Name(), "workers", device.Workers())

	data, err := dataset.Open(cfg.DataDir, cfg.Model.ImageSize, cfg.Model.InputNC)
	if err != nil {
		return nil, err
	}
	if err := train.CheckLabels(data, cfg.Model.EmbeddingNum); err != nil {
		return nil, err
	}
	m, err := model.New(cfg.Model)
	if err != nil {
		return nil, err
	}

	var start int64
	if cfg.Resume {
		if start, err = train.Resume(m, cfg.CheckpointDir()); err != nil {
			return nil, err
		}
	}

	callbacks := []Callback{
		train.Logger{Interval: cfg.LogSteps},
		train.NewCSVLogger(cfg.LogFile(), cfg.Resume),
		train.NewModelCheckpoint(cfg.CheckpointDir(), cfg.CheckpointSteps),
		train.Sampler{Dir: cfg.SampleDir(), Interval: cfg.SampleSteps},
		train.NewSchedulerCallback(opt.NewStepLR(m, cfg.Schedule, 0.5, cfg.MinLR)),
	}
	t := train.New(cfg, m, data, append(callbacks, extra...)...)
	t.StartEpoch(start)
	return m, t.Run(ctx)
}

// FontOptions controls glyph rendering.
type FontOptions = font2img.Options

// DefaultFontOptions returns the usual canvas settings.
func DefaultFontOptions() FontOptions {
	return font2img.DefaultOptions()
}

// RenderFonts renders charset with the fonts at srcPath and dstPath and
// writes labelled samples to dir. It returns the number written.
func RenderFonts(srcPath, dstPath, dir string, label int, charset string, opts FontOptions) (int, error) {
	src, err := font2img.LoadFont(srcPath)
	if err != nil {
		return 0, err
	}
	dst, err := font2img.LoadFont(dstPath)
	if err != nil {
		return 0, err
	}
	r, err := font2img.NewRenderer(src, dst, opts)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.WriteAll(dir, label, font2img.Charset(charset))
}
