package tensor

import "github.com/pkg/errors"

// Concat joins tensors along axis. All inputs must agree on every other axis.
func Concat(axis int, ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, errors.Wrap(ErrShape, "concat of zero tensors")
	}
	rank := ts[0].Rank()
	if axis < 0 || axis >= rank {
		return nil, errors.Wrapf(ErrShape, "concat axis %d out of range for rank %d", axis, rank)
	}
	shape := ts[0].Shape()
	shape[axis] = 0
	for _, t := range ts {
		if t.Rank() != rank {
			return nil, errors.Wrapf(ErrShape, "concat %v with %v", ts[0].shape, t.shape)
		}
		for i := 0; i < rank; i++ {
			if i != axis && t.shape[i] != ts[0].shape[i] {
				return nil, errors.Wrapf(ErrShape, "concat %v with %v along axis %d", ts[0].shape, t.shape, axis)
			}
		}
		shape[axis] += t.shape[axis]
	}

	out := New(shape...)
	outer := numElements(shape[:axis])
	rowOut := numElements(shape[axis:])
	offset := 0
	for _, t := range ts {
		row := numElements(t.shape[axis:])
		for o := 0; o < outer; o++ {
			copy(out.data[o*rowOut+offset:o*rowOut+offset+row], t.data[o*row:(o+1)*row])
		}
		offset += row
	}
	return out, nil
}

// Split is the inverse of Concat: it cuts t along axis into pieces of the
// given sizes. The pieces are freshly allocated.
func Split(t *Tensor, axis int, sizes ...int) ([]*Tensor, error) {
	if axis < 0 || axis >= t.Rank() {
		return nil, errors.Wrapf(ErrShape, "split axis %d out of range for rank %d", axis, t.Rank())
	}
	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != t.shape[axis] {
		return nil, errors.Wrapf(ErrShape, "split sizes %v do not cover axis %d of %v", sizes, axis, t.shape)
	}

	outer := numElements(t.shape[:axis])
	rowIn := numElements(t.shape[axis:])
	pieces := make([]*Tensor, len(sizes))
	offset := 0
	for i, s := range sizes {
		shape := t.Shape()
		shape[axis] = s
		p := New(shape...)
		row := numElements(shape[axis:])
		for o := 0; o < outer; o++ {
			copy(p.data[o*row:(o+1)*row], t.data[o*rowIn+offset:o*rowIn+offset+row])
		}
		pieces[i] = p
		offset += row
	}
	return pieces, nil
}
