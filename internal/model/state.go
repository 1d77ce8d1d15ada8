package model

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/checkpoint"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/opt"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Checkpoint captures parameters, optimizer moments and hyper-parameters.
func (m *Model) Checkpoint(epoch int64) *checkpoint.Checkpoint {
	c := &checkpoint.Checkpoint{Version: checkpoint.Version, Step: m.steps, Epoch: epoch}
	saveNetwork(c, "G", m.optG)
	saveNetwork(c, "D", m.optD)
	c.AddScalar("Lconst_penalty", m.opts.LconstPenalty)
	c.AddScalar("Lcategory_penalty", m.opts.LcategoryPenalty)
	c.AddScalar("L1_penalty", m.opts.L1Penalty)
	return c
}

func saveNetwork(c *checkpoint.Checkpoint, prefix string, o *opt.Adam) {
	state := o.State()
	for i, p := range o.Params() {
		shape := p.Value.Shape()
		c.AddTensor(key(prefix, "param", i), shape, append([]float64(nil), p.Value.Data()...))
		c.AddTensor(key(prefix, "adam/m", i), shape, state.M[i])
		c.AddTensor(key(prefix, "adam/v", i), shape, state.V[i])
		c.AddScalar(key(prefix, "adam/step", i), float64(state.Steps[i]))
	}
	c.AddScalar(prefix+"/lr", state.LearningRate)
}

// Restore loads a checkpoint produced by a model of the same architecture.
// Nothing is modified unless every tensor matches.
func (m *Model) Restore(c *checkpoint.Checkpoint) error {
	gParams, gState, err := loadNetwork(c, "G", m.optG.Params())
	if err != nil {
		return err
	}
	dParams, dState, err := loadNetwork(c, "D", m.optD.Params())
	if err != nil {
		return err
	}

	for i, p := range m.optG.Params() {
		copy(p.Value.Data(), gParams[i])
	}
	for i, p := range m.optD.Params() {
		copy(p.Value.Data(), dParams[i])
	}
	if err := m.optG.SetState(gState); err != nil {
		return err
	}
	if err := m.optD.SetState(dState); err != nil {
		return err
	}
	m.steps = c.Step
	m.input = nil
	return nil
}

func loadNetwork(c *checkpoint.Checkpoint, prefix string, params []*autograd.Var) ([][]float64, opt.AdamState, error) {
	values := make([][]float64, len(params))
	state := opt.AdamState{
		Steps: make([]int64, len(params)),
		M:     make([][]float64, len(params)),
		V:     make([][]float64, len(params)),
	}
	lr, ok := c.Scalar(prefix + "/lr")
	if !ok {
		return nil, state, errors.Errorf("model: checkpoint has no %s/lr", prefix)
	}
	state.LearningRate = lr

	for i, p := range params {
		var err error
		if values[i], err = lookup(c, key(prefix, "param", i), p.Value); err != nil {
			return nil, state, err
		}
		if state.M[i], err = lookup(c, key(prefix, "adam/m", i), p.Value); err != nil {
			return nil, state, err
		}
		if state.V[i], err = lookup(c, key(prefix, "adam/v", i), p.Value); err != nil {
			return nil, state, err
		}
		step, ok := c.Scalar(key(prefix, "adam/step", i))
		if !ok {
			return nil, state, errors.Errorf("model: checkpoint has no %s", key(prefix, "adam/step", i))
		}
		state.Steps[i] = int64(step)
	}
	if extra, ok := c.Tensor(key(prefix, "param", len(params))); ok {
		return nil, state, errors.Wrapf(ErrDimensionMismatch, "checkpoint has extra parameter %s", extra.Name)
	}
	return values, state, nil
}

func lookup(c *checkpoint.Checkpoint, name string, like *tensor.Tensor) ([]float64, error) {
	t, ok := c.Tensor(name)
	if !ok {
		return nil, errors.Errorf("model: checkpoint has no %s", name)
	}
	if !tensor.EqualShapes(t.Shape, like.Shape()) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%s is %v, model has %v", name, t.Shape, like.Shape())
	}
	return t.Data, nil
}

func key(prefix, kind string, i int) string {
	return fmt.Sprintf("%s/%s/%03d", prefix, kind, i)
}
