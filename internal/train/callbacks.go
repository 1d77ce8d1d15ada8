package train

import (
	"fmt"
	"path/filepath"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/checkpoint"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/dataset"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(s *State)
	OnTrainEnd(s *State)
	OnEpochBegin(s *State)
	OnEpochEnd(s *State)
	OnStepEnd(s *State)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(s *State) {}
func (c BaseCallback) OnTrainEnd(s *State)   {}
func (c BaseCallback) OnEpochBegin(s *State) {}
func (c BaseCallback) OnEpochEnd(s *State)   {}
func (c BaseCallback) OnStepEnd(s *State)    {}

// SchedulerCallback advances a learning rate scheduler after every epoch.
type SchedulerCallback struct {
	BaseCallback
	scheduler *opt.StepLR
}

func NewSchedulerCallback(scheduler *opt.StepLR) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnTrainBegin(s *State) {
	c.scheduler.SetLastEpoch(int(s.Epoch))
}

func (c *SchedulerCallback) OnEpochEnd(s *State) {
	before := c.scheduler.GetLR()
	c.scheduler.Step()
	if after := c.scheduler.GetLR(); after != before {
		logging.Logger().Info("learning rate decayed", "epoch", s.Epoch, "from", before, "to", after)
	}
}

// Logger logs step and epoch losses.
type Logger struct {
	BaseCallback
	Interval int
}

func (c Logger) OnStepEnd(s *State) {
	if c.Interval <= 0 || s.Step%int64(c.Interval) != 0 {
		return
	}
	r := s.Report
	logging.Logger().Info("step",
		"epoch", s.Epoch,
		"batch", fmt.Sprintf("%d/%d", s.Batch+1, s.Batches),
		"step", s.Step,
		"d_loss", r.DLoss,
		"g_loss", r.GLoss,
		"category_loss", r.CategoryLoss,
		"cheat_loss", r.CheatLoss,
		"const_loss", r.ConstLoss,
		"l1_loss", r.L1Loss)
}

func (c Logger) OnEpochEnd(s *State) {
	logging.Logger().Info("epoch finished",
		"epoch", s.Epoch,
		"d_loss", s.EpochDLoss,
		"g_loss", s.EpochGLoss,
		"skipped", s.Skipped)
}

// ModelCheckpoint saves the model every Interval steps and when training
// ends.
type ModelCheckpoint struct {
	BaseCallback
	Dir      string
	Interval int

	lastSaved int64
}

func NewModelCheckpoint(dir string, interval int) *ModelCheckpoint {
	return &ModelCheckpoint{Dir: dir, Interval: interval, lastSaved: -1}
}

func (c *ModelCheckpoint) save(s *State) {
	if s.Step == c.lastSaved {
		return
	}
	path := filepath.Join(c.Dir, CheckpointName(s.Step))
	if err := checkpoint.Save(path, s.Model.Checkpoint(s.Epoch)); err != nil {
		logging.Logger().Warn("checkpoint failed", "path", path, "err", err)
		return
	}
	c.lastSaved = s.Step
	logging.Logger().Info("checkpoint saved", "path", path, "step", s.Step)
}

func (c *ModelCheckpoint) OnStepEnd(s *State) {
	if c.Interval > 0 && s.Step%int64(c.Interval) == 0 {
		c.save(s)
	}
}

func (c *ModelCheckpoint) OnTrainEnd(s *State) {
	if s.Step > 0 {
		c.save(s)
	}
}

// Sampler writes a source | generated | target grid every Interval steps.
type Sampler struct {
	BaseCallback
	Dir      string
	Interval int
}

func (c Sampler) OnStepEnd(s *State) {
	if c.Interval <= 0 || s.Step%int64(c.Interval) != 0 || s.Input == nil || s.Report.FakeB == nil {
		return
	}
	path := filepath.Join(c.Dir, fmt.Sprintf("sample_%02d_%08d.png", s.Epoch, s.Step))
	if err := dataset.SaveGrid(path, s.Input.RealA, s.Report.FakeB, s.Input.RealB); err != nil {
		logging.Logger().Warn("sample failed", "path", path, "err", err)
		return
	}
	logging.Logger().Info("sample saved", "path", path)
}
