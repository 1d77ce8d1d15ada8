// Package checkpoint persists training state in protobuf wire format.
//
// The layout is equivalent to the following schema:
//
//	message Checkpoint {
//	  uint32 version = 1;
//	  int64 step = 2;
//	  int64 epoch = 3;
//	  repeated Tensor tensors = 4;
//	  repeated Scalar scalars = 5;
//	}
//	message Tensor {
//	  string name = 1;
//	  repeated int64 shape = 2 [packed = true];
//	  repeated double data = 3 [packed = true];
//	}
//	message Scalar {
//	  string name = 1;
//	  double value = 2;
//	}
package checkpoint

import (
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Version is written into every checkpoint.
const Version = 1

// ErrFormat reports a checkpoint that cannot be decoded.
var ErrFormat = errors.New("checkpoint: malformed data")

// Tensor is a named dense array.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// Scalar is a named number.
type Scalar struct {
	Name  string
	Value float64
}

// Checkpoint is a snapshot of training state.
type Checkpoint struct {
	Version uint32
	Step    int64
	Epoch   int64
	Tensors []Tensor
	Scalars []Scalar
}

// Tensor returns the tensor called name.
func (c *Checkpoint) Tensor(name string) (Tensor, bool) {
	for _, t := range c.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return Tensor{}, false
}

// Scalar returns the scalar called name.
func (c *Checkpoint) Scalar(name string) (float64, bool) {
	for _, s := range c.Scalars {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

// AddTensor appends a tensor.
func (c *Checkpoint) AddTensor(name string, shape []int, data []float64) {
	c.Tensors = append(c.Tensors, Tensor{Name: name, Shape: shape, Data: data})
}

// AddScalar appends a scalar.
func (c *Checkpoint) AddScalar(name string, v float64) {
	c.Scalars = append(c.Scalars, Scalar{Name: name, Value: v})
}

const (
	fieldVersion = 1
	fieldStep    = 2
	fieldEpoch   = 3
	fieldTensor  = 4
	fieldScalar  = 5

	fieldName  = 1
	fieldShape = 2
	fieldData  = 3
	fieldValue = 2
)

// Marshal encodes c.
func Marshal(c *Checkpoint) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Version))
	b = protowire.AppendTag(b, fieldStep, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Step))
	b = protowire.AppendTag(b, fieldEpoch, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Epoch))
	for _, t := range c.Tensors {
		b = protowire.AppendTag(b, fieldTensor, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTensor(t))
	}
	for _, s := range c.Scalars {
		b = protowire.AppendTag(b, fieldScalar, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalScalar(s))
	}
	return b
}

func marshalTensor(t Tensor) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, t.Name)

	var shape []byte
	for _, d := range t.Shape {
		shape = protowire.AppendVarint(shape, uint64(d))
	}
	b = protowire.AppendTag(b, fieldShape, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)

	data := make([]byte, 0, 8*len(t.Data))
	for _, v := range t.Data {
		data = protowire.AppendFixed64(data, math.Float64bits(v))
	}
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	return protowire.AppendBytes(b, data)
}

func marshalScalar(s Scalar) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, s.Name)
	b = protowire.AppendTag(b, fieldValue, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(s.Value))
}

// fields walks the top-level fields of b. Unknown fields are skipped.
func fields(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(ErrFormat, protowire.ParseError(n).Error())
		}
		b = b[n:]
		m, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return errors.Wrapf(ErrFormat, "field %d: %v", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

// Unmarshal decodes b.
func Unmarshal(b []byte) (*Checkpoint, error) {
	c := &Checkpoint{}
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Version = uint32(v)
			return n, nil
		case num == fieldStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Step = int64(v)
			return n, nil
		case num == fieldEpoch && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Epoch = int64(v)
			return n, nil
		case num == fieldTensor && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			t, err := unmarshalTensor(v)
			if err != nil {
				return 0, err
			}
			c.Tensors = append(c.Tensors, t)
			return n, nil
		case num == fieldScalar && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			s, err := unmarshalScalar(v)
			if err != nil {
				return 0, err
			}
			c.Scalars = append(c.Scalars, s)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if c.Version == 0 || c.Version > Version {
		return nil, errors.Wrapf(ErrFormat, "unsupported version %d", c.Version)
	}
	return c, nil
}

func unmarshalTensor(b []byte) (Tensor, error) {
	var t Tensor
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			t.Name = v
			return n, nil
		case num == fieldShape && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return m, nil
				}
				t.Shape = append(t.Shape, int(v))
				packed = packed[m:]
			}
			return n, nil
		case num == fieldShape && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			t.Shape = append(t.Shape, int(v))
			return n, nil
		case num == fieldData && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n >= 0 && len(packed)%8 != 0 {
				return 0, errors.Wrapf(ErrFormat, "tensor %q: packed data of %d bytes", t.Name, len(packed))
			}
			t.Data = slices.Grow(t.Data, len(packed)/8)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeFixed64(packed)
				t.Data = append(t.Data, math.Float64frombits(v))
				packed = packed[m:]
			}
			return n, nil
		case num == fieldData && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			t.Data = append(t.Data, math.Float64frombits(v))
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return Tensor{}, err
	}
	size := 1
	for _, d := range t.Shape {
		size *= d
	}
	if size != len(t.Data) {
		return Tensor{}, errors.Wrapf(ErrFormat, "tensor %q: shape %v holds %d values, got %d", t.Name, t.Shape, size, len(t.Data))
	}
	return t, nil
}

func unmarshalScalar(b []byte) (Scalar, error) {
	var s Scalar
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.Name = v
			return n, nil
		case num == fieldValue && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			s.Value = math.Float64frombits(v)
			return n, nil
		}
		return 0, nil
	})
	return s, err
}

// Save writes c to path, replacing any existing file only once the new
// content is fully on disk.
func Save(path string, c *Checkpoint) error {
	if c.Version == 0 {
		c.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "checkpoint: create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "checkpoint: create file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(Marshal(c)); err != nil {
		tmp.Close()
		return errors.Wrap(err, "checkpoint: write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "checkpoint: close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "checkpoint: rename")
}

// Load reads the checkpoint stored at path.
func Load(path string) (*Checkpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: read")
	}
	c, err := Unmarshal(b)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: %s", path)
	}
	return c, nil
}
