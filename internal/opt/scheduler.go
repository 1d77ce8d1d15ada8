package opt

import "math"

// LRController is anything whose learning rate can be read and replaced,
// such as a single Optimizer or a model owning several of them.
type LRController interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// Scheduler defines the interface for learning rate schedulers.
type Scheduler interface {
	// Step is called once per finished epoch.
	Step()
	GetLR() float64
}

// StepLR decays the learning rate by gamma every stepSize epochs, never
// going below minLR.
type StepLR struct {
	target    LRController
	stepSize  int
	gamma     float64
	minLR     float64
	lastEpoch int
}

func NewStepLR(target LRController, stepSize int, gamma, minLR float64) *StepLR {
	return &StepLR{
		target:   target,
		stepSize: stepSize,
		gamma:    gamma,
		minLR:    minLR,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.stepSize <= 0 || s.lastEpoch%s.stepSize != 0 {
		return
	}
	s.target.SetLearningRate(math.Max(s.target.LearningRate()*s.gamma, s.minLR))
}

func (s *StepLR) GetLR() float64 {
	return s.target.LearningRate()
}

// LastEpoch returns the number of epochs seen so far.
func (s *StepLR) LastEpoch() int { return s.lastEpoch }

// SetLastEpoch positions the scheduler when training resumes.
func (s *StepLR) SetLastEpoch(epoch int) { s.lastEpoch = epoch }
