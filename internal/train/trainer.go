// Package train drives a model over a dataset for a number of epochs and
// dispatches progress to callbacks.
package train

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/checkpoint"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/config"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/dataset"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/model"
)

// State is the progress shared with callbacks. Callbacks must not modify it.
type State struct {
	Model *model.Model

	// Epoch is zero-based and equals the epoch count once training has
	// finished. Step counts completed optimisation steps over the whole run.
	Epoch   int64
	Step    int64
	Batch   int
	Batches int

	Input  *dataset.Batch
	Report model.Report

	// Epoch means, set before OnEpochEnd.
	EpochDLoss float64
	EpochGLoss float64
	Skipped    int
}

// Trainer runs the epoch/step loop.
type Trainer struct {
	cfg       config.Config
	model     *model.Model
	data      *dataset.Dataset
	callbacks []Callback

	startEpoch int64
}

// New creates a trainer. Callbacks run in the order given.
func New(cfg config.Config, m *model.Model, data *dataset.Dataset, callbacks ...Callback) *Trainer {
	return &Trainer{cfg: cfg, model: m, data: data, callbacks: callbacks}
}

// CheckLabels reports whether every label in data fits a model with
// embeddingNum style categories.
func CheckLabels(data *dataset.Dataset, embeddingNum int) error {
	if l := data.MaxLabel(); l >= embeddingNum {
		return errors.Wrapf(model.ErrDimensionMismatch, "dataset label %d outside [0, %d)", l, embeddingNum)
	}
	return nil
}

// StartEpoch sets the first epoch to run, for resumed training.
func (t *Trainer) StartEpoch(epoch int64) { t.startEpoch = epoch }

// Run trains until every epoch is done, ctx is cancelled or a step fails.
// Cancellation is checked between steps, so a step is never interrupted.
func (t *Trainer) Run(ctx context.Context) error {
	if err := CheckLabels(t.data, t.model.Options().EmbeddingNum); err != nil {
		return err
	}
	s := &State{Model: t.model, Epoch: t.startEpoch, Step: t.model.Steps()}
	for _, cb := range t.callbacks {
		cb.OnTrainBegin(s)
	}
	defer func() {
		for _, cb := range t.callbacks {
			cb.OnTrainEnd(s)
		}
	}()

	for epoch := t.startEpoch; epoch < int64(t.cfg.Epochs); epoch++ {
		s.Epoch = epoch
		s.Skipped = 0
		for _, cb := range t.callbacks {
			cb.OnEpochBegin(s)
		}

		// Shuffling depends only on the seed and the epoch, so a resumed
		// run sees the same order.
		rng := rand.New(rand.NewSource(t.cfg.Model.Seed + epoch))
		groups := t.data.Batches(rng, t.cfg.BatchSize)
		s.Batches = len(groups)

		var dLosses, gLosses []float64
		for i, indices := range groups {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Batch = i
			ok, err := t.step(s, indices)
			if err != nil {
				return err
			}
			if !ok {
				s.Skipped++
				continue
			}
			dLosses = append(dLosses, s.Report.DLoss)
			gLosses = append(gLosses, s.Report.GLoss)
			for _, cb := range t.callbacks {
				cb.OnStepEnd(s)
			}
		}

		s.EpochDLoss, s.EpochGLoss = 0, 0
		if len(dLosses) > 0 {
			s.EpochDLoss = stat.Mean(dLosses, nil)
			s.EpochGLoss = stat.Mean(gLosses, nil)
		}
		for _, cb := range t.callbacks {
			cb.OnEpochEnd(s)
		}
	}
	s.Epoch = int64(t.cfg.Epochs)
	return nil
}

// step runs one batch. It reports false when the step was skipped under
// the skip policy.
func (t *Trainer) step(s *State, indices []int) (bool, error) {
	b, err := t.data.Batch(indices)
	if err != nil {
		return false, err
	}
	if err := t.model.SetInput(b.Labels, b.RealA, b.RealB); err != nil {
		return false, errors.Wrapf(err, "epoch %d batch %d", s.Epoch, s.Batch)
	}
	err = t.model.OptimizeParameters()
	if errors.Is(err, model.ErrNonFinite) && t.cfg.OnNonFinite == config.OnNonFiniteSkip {
		logging.Logger().Warn("skipping step", "epoch", s.Epoch, "batch", s.Batch, "err", err)
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "epoch %d batch %d", s.Epoch, s.Batch)
	}
	s.Step = t.model.Steps()
	s.Input = b
	s.Report = t.model.Report()
	return true, nil
}

// CheckpointName is the file name used for the checkpoint at step.
func CheckpointName(step int64) string {
	return fmt.Sprintf("ckpt-%08d.pb", step)
}

// LatestCheckpoint returns the checkpoint with the highest step in dir.
func LatestCheckpoint(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "ckpt-*.pb"))
	if err != nil {
		return "", errors.Wrap(err, "train: list checkpoints")
	}
	if len(matches) == 0 {
		return "", errors.Wrapf(os.ErrNotExist, "train: no checkpoint in %s", dir)
	}
	// Zero-padded step numbers sort lexically.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// Resume restores m from the latest checkpoint in dir and returns the epoch
// to continue from.
func Resume(m *model.Model, dir string) (int64, error) {
	path, err := LatestCheckpoint(dir)
	if err != nil {
		return 0, err
	}
	c, err := checkpoint.Load(path)
	if err != nil {
		return 0, err
	}
	if err := m.Restore(c); err != nil {
		return 0, errors.Wrapf(err, "train: restore %s", strings.TrimPrefix(path, dir+string(filepath.Separator)))
	}
	logging.Logger().Info("resumed", "path", path, "step", c.Step, "epoch", c.Epoch)
	return c.Epoch, nil
}
