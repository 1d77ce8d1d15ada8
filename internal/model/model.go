// Package model implements the zi2zi training orchestrator: it binds a
// batch, runs the generator and discriminator, and alternates their
// updates while keeping each network's gradients out of the other's step.
package model

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/loss"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/net"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/opt"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Generator translates source glyphs into a target style.
type Generator interface {
	net.Network
	// Generate returns the generated images and the flattened encoding of
	// source, shape (N, -1).
	Generate(labels []int, source *autograd.Var) (generated, encoding *autograd.Var)
	// Encode returns the flattened encoding of images, shape (N, -1).
	Encode(images *autograd.Var) *autograd.Var
}

// Discriminator judges channel-concatenated (source, target) pairs.
type Discriminator interface {
	net.Network
	// Score returns realism logits (N, 1) and category logits
	// (N, embedding_num).
	Score(pairs *autograd.Var) (logit, categoryLogits *autograd.Var)
}

// Adam betas used for both networks.
const (
	beta1 = 0.5
	beta2 = 0.999
)

type batch struct {
	labels       []int
	realA, realB *tensor.Tensor
}

// pass holds the transient tensors of one optimisation step.
type pass struct {
	labels       []int
	realA, realB *autograd.Var
	fakeB        *autograd.Var
	encodedRealA *autograd.Var
	encodedFakeB *autograd.Var
}

// Model owns a generator, a discriminator and one Adam optimizer for each.
// It is not safe for concurrent use.
type Model struct {
	opts Options
	g    Generator
	d    Discriminator
	optG *opt.Adam
	optD *opt.Adam

	input  *batch
	report Report
	steps  int64
}

// New builds a model around the reference U-Net generator and
// discriminator, initialised from opts.Seed.
func New(opts Options) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	g, err := net.NewUNetGenerator(rng, net.GeneratorConfig{
		InputNC:      opts.InputNC,
		EmbeddingNum: opts.EmbeddingNum,
		EmbeddingDim: opts.EmbeddingDim,
		NGF:          opts.NGF,
		ImageSize:    opts.ImageSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "model: generator")
	}
	d, err := net.NewDiscriminator(rng, net.DiscriminatorConfig{
		InputNC:      opts.InputNC,
		EmbeddingNum: opts.EmbeddingNum,
		NDF:          opts.NDF,
		ImageSize:    opts.ImageSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "model: discriminator")
	}
	return NewFromNetworks(opts, g, d)
}

// NewFromNetworks builds a model around caller-supplied networks.
func NewFromNetworks(opts Options, g Generator, d Discriminator) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if g == nil || d == nil {
		return nil, errors.New("model: generator and discriminator are required")
	}
	m := &Model{
		opts: opts,
		g:    g,
		d:    d,
		optG: opt.NewAdam(g.Parameters(), opts.LR),
		optD: opt.NewAdam(d.Parameters(), opts.LR),
	}
	for _, o := range []*opt.Adam{m.optG, m.optD} {
		o.Beta1, o.Beta2 = beta1, beta2
	}
	logging.Logger().Debug("model created",
		"generator_params", net.CountParams(g),
		"discriminator_params", net.CountParams(d))
	return m, nil
}

// Options returns the hyper-parameters the model was built with.
func (m *Model) Options() Options { return m.opts }

// Generator returns the generator.
func (m *Model) Generator() Generator { return m.g }

// Discriminator returns the discriminator.
func (m *Model) Discriminator() Discriminator { return m.d }

// Steps returns the number of completed optimisation steps.
func (m *Model) Steps() int64 { return m.steps }

// Report returns the diagnostics of the last completed step.
func (m *Model) Report() Report { return m.report }

// LearningRate returns the generator's learning rate; both optimizers are
// kept in step by SetLearningRate.
func (m *Model) LearningRate() float64 { return m.optG.LearningRate() }

// SetLearningRate sets the learning rate of both optimizers. A rate that
// is not positive and finite is ignored.
func (m *Model) SetLearningRate(lr float64) {
	if !validLR(lr) {
		logging.Logger().Warn("ignoring invalid learning rate", "lr", lr, "current", m.LearningRate())
		return
	}
	m.optG.SetLearningRate(lr)
	m.optD.SetLearningRate(lr)
}

// validate checks a batch without touching any network.
func (m *Model) validate(labels []int, realA, realB *tensor.Tensor) error {
	if realA == nil || realB == nil {
		return errors.Wrap(ErrDimensionMismatch, "nil image batch")
	}
	if len(labels) == 0 {
		return errors.Wrap(ErrDimensionMismatch, "empty batch")
	}
	for _, x := range []*tensor.Tensor{realA, realB} {
		if x.Rank() != 4 {
			return errors.Wrapf(ErrDimensionMismatch, "image batch %v is not NCHW", x.Shape())
		}
		if x.Dim(0) != len(labels) {
			return errors.Wrapf(ErrDimensionMismatch, "%d labels for image batch of %d", len(labels), x.Dim(0))
		}
	}
	if !tensor.SameShape(realA, realB) {
		return errors.Wrapf(ErrDimensionMismatch, "source %v and target %v differ", realA.Shape(), realB.Shape())
	}
	if c := realA.Dim(1); c != m.opts.InputNC {
		return errors.Wrapf(ErrDimensionMismatch, "images have %d channels, model expects %d", c, m.opts.InputNC)
	}
	if h, w := realA.Dim(2), realA.Dim(3); h != m.opts.ImageSize || w != m.opts.ImageSize {
		return errors.Wrapf(ErrDimensionMismatch, "images are %dx%d, model expects %d", h, w, m.opts.ImageSize)
	}
	for i, l := range labels {
		if l < 0 || l >= m.opts.EmbeddingNum {
			return errors.Wrapf(ErrDimensionMismatch, "label %d at %d outside [0, %d)", l, i, m.opts.EmbeddingNum)
		}
	}
	return nil
}

// SetInput validates and binds a batch for the next OptimizeParameters.
// A rejected batch leaves any previously bound batch in place.
func (m *Model) SetInput(labels []int, realA, realB *tensor.Tensor) error {
	if err := m.validate(labels, realA, realB); err != nil {
		return err
	}
	m.input = &batch{
		labels: append([]int(nil), labels...),
		realA:  realA.Clone(),
		realB:  realB.Clone(),
	}
	return nil
}

// HasInput reports whether a batch is bound.
func (m *Model) HasInput() bool { return m.input != nil }

// OptimizeParameters runs one training step on the bound batch: a forward
// pass, a discriminator update, then a generator update with the
// discriminator frozen. The batch is consumed whether or not the step
// succeeds.
//
// The step is atomic: a non-finite loss or gradient is detected before the
// optimizer runs and reported as ErrNonFinite, and a failure in the
// generator phase rolls the discriminator back to its state before the
// step.
func (m *Model) OptimizeParameters() (err error) {
	if m.input == nil {
		return ErrNoInput
	}
	b := m.input
	m.input = nil

	phase := "forward"
	var saved *netState
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrComputation, "%s: %v", phase, r)
		}
		if err != nil {
			m.optG.ZeroGrad()
			m.optD.ZeroGrad()
			if saved != nil {
				saved.restore()
			}
		}
	}()

	start := time.Now()
	p := m.forward(b)

	phase = "discriminator"
	saved = saveNet(m.d, m.optD)
	rep, err := m.backwardD(p)
	if err != nil {
		return err
	}

	phase = "generator"
	if err := m.backwardG(p, &rep); err != nil {
		return err
	}

	m.optG.ZeroGrad()
	m.optD.ZeroGrad()
	m.steps++
	rep.Step = m.steps
	rep.FakeB = p.fakeB.Value.Clone()
	m.report = rep

	logging.Logger().Debug("step",
		"step", m.steps,
		"d_loss", rep.DLoss,
		"g_loss", rep.GLoss,
		"elapsed", time.Since(start))
	return nil
}

// forward runs the generator on the batch and records the encodings the
// generator loss needs.
func (m *Model) forward(b *batch) *pass {
	p := &pass{
		labels: b.labels,
		realA:  autograd.Constant(b.realA),
		realB:  autograd.Constant(b.realB),
	}
	p.fakeB, p.encodedRealA = m.g.Generate(p.labels, p.realA)
	if !tensor.SameShape(p.fakeB.Value, b.realB) {
		panic(fmt.Sprintf("generator produced %v for target %v", p.fakeB.Shape(), b.realB.Shape()))
	}
	p.encodedFakeB = autograd.Flatten(m.g.Encode(p.fakeB))
	return p
}

// backwardD computes d_loss on the real pair and the detached fake pair and
// applies the discriminator update.
func (m *Model) backwardD(p *pass) (Report, error) {
	// The previous step left the discriminator frozen.
	net.SetTrainable(true, m.d)
	m.optD.ZeroGrad()

	realAB := autograd.Concat(1, p.realA, p.realB)
	fakeAB := autograd.Concat(1, p.realA, autograd.Detach(p.fakeB))

	realLogit, realCat := m.d.Score(realAB)
	fakeLogit, fakeCat := m.d.Score(fakeAB)

	realBinary := loss.RealBinary(realLogit)
	fakeBinary := loss.FakeBinary(fakeLogit)
	realCategory := loss.Category(realCat, p.labels)
	fakeCategory := loss.Category(fakeCat, p.labels)

	categoryLoss := autograd.Scale(autograd.Add(realCategory, fakeCategory), m.opts.LcategoryPenalty/2)
	dLoss := autograd.Add(realBinary, fakeBinary, categoryLoss)

	rep := Report{
		DLoss:             dLoss.Value.Item(),
		DRealBinaryLoss:   realBinary.Value.Item(),
		DFakeBinaryLoss:   fakeBinary.Value.Item(),
		DRealCategoryLoss: realCategory.Value.Item(),
		DFakeCategoryLoss: fakeCategory.Value.Item(),
		RealD:             sigmoid(realLogit.Value.Data()),
		FakeD:             sigmoid(fakeLogit.Value.Data()),
	}
	return rep, m.update(m.optD, dLoss, "discriminator")
}

// backwardG freezes the discriminator, re-scores the fake pair with its
// updated weights and applies the generator update.
func (m *Model) backwardG(p *pass, rep *Report) error {
	net.SetTrainable(false, m.d)
	m.optG.ZeroGrad()

	fakeLogit, fakeCat := m.d.Score(autograd.Concat(1, p.realA, p.fakeB))

	cheat := loss.RealBinary(fakeLogit)
	l1 := loss.L1(p.fakeB, p.realB)
	category := loss.Category(fakeCat, p.labels)
	constLoss := loss.MSE(p.encodedRealA, p.encodedFakeB)

	gLoss := autograd.Add(
		cheat,
		autograd.Scale(l1, m.opts.L1Penalty),
		autograd.Scale(category, m.opts.LcategoryPenalty),
		constLoss,
	)

	rep.GLoss = gLoss.Value.Item()
	rep.CheatLoss = cheat.Value.Item()
	rep.L1Loss = l1.Value.Item()
	rep.CategoryLoss = category.Value.Item()
	rep.ConstLoss = constLoss.Value.Item()
	return m.update(m.optG, gLoss, "generator")
}

// update back-propagates l into o's parameters and steps o, unless the loss
// or any resulting gradient is non-finite.
func (m *Model) update(o *opt.Adam, l *autograd.Var, phase string) error {
	v := l.Value.Item()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrNonFinite, "%s loss = %v", phase, v)
	}
	autograd.Backward(l)
	for i, p := range o.Params() {
		if p.Grad != nil && !p.Grad.IsFinite() {
			return errors.Wrapf(ErrNonFinite, "%s gradient of parameter %d", phase, i)
		}
	}
	o.Step()
	return nil
}

// Generate runs the generator for inference. The generator's trainable
// state is restored afterwards.
func (m *Model) Generate(labels []int, source *tensor.Tensor) (out *tensor.Tensor, err error) {
	if err := m.validate(labels, source, source); err != nil {
		return nil, err
	}
	prev := net.IsTrainable(m.g)
	net.SetTrainable(false, m.g)
	defer net.SetTrainable(prev, m.g)
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrComputation, "generate: %v", r)
		}
	}()

	fake, _ := m.g.Generate(labels, autograd.Constant(source))
	return fake.Value, nil
}

func sigmoid(logits []float64) []float64 {
	out := make([]float64, len(logits))
	for i, x := range logits {
		out[i] = activations.Sigmoid{}.Activate(x)
	}
	return out
}

// netState is a copy of a network's parameter values and its optimizer.
type netState struct {
	params []*autograd.Var
	values [][]float64
	o      *opt.Adam
	adam   opt.AdamState
}

func saveNet(n net.Network, o *opt.Adam) *netState {
	s := &netState{params: n.Parameters(), o: o, adam: o.State()}
	for _, p := range s.params {
		s.values = append(s.values, append([]float64(nil), p.Value.Data()...))
	}
	return s
}

func (s *netState) restore() {
	for i, p := range s.params {
		copy(p.Value.Data(), s.values[i])
	}
	// The state was taken from o itself, so shapes always match.
	_ = s.o.SetState(s.adam)
}
