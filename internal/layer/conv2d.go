package layer

import (
	"math/rand"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
)

// Conv2D implements a 2D convolutional layer over NCHW input.
// Weights: [outChannels, inChannels, kernelSize, kernelSize]
type Conv2D struct {
	W, B *autograd.Var

	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
}

// NewConv2D creates a new 2D convolutional layer.
// inChannels: number of input channels
// outChannels: number of output feature maps
// kernelSize: size of convolutional kernel (square)
// stride: stride for convolution
// padding: zero padding size
func NewConv2D(rng *rand.Rand, inChannels, outChannels, kernelSize, stride, padding int) *Conv2D {
	return &Conv2D{
		W:           normalParam(rng, outChannels, inChannels, kernelSize, kernelSize),
		B:           zeroParam(outChannels),
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
	}
}

// Forward convolves x.
func (c *Conv2D) Forward(x *autograd.Var) *autograd.Var {
	return autograd.Conv2D(x, c.W, c.B, c.stride, c.padding)
}

// Params returns weights then biases.
func (c *Conv2D) Params() []*autograd.Var {
	return []*autograd.Var{c.W, c.B}
}

// OutputSize returns the spatial output size for a square input of side in.
func (c *Conv2D) OutputSize(in int) int {
	return (in+2*c.padding-c.kernelSize)/c.stride + 1
}

// OutChannels returns the number of output feature maps.
func (c *Conv2D) OutChannels() int {
	return c.outChannels
}

// ConvTranspose2D is the learnable upsampling counterpart of Conv2D.
// Weights: [inChannels, outChannels, kernelSize, kernelSize]
type ConvTranspose2D struct {
	W, B *autograd.Var

	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
}

// NewConvTranspose2D creates a transposed convolution layer.
func NewConvTranspose2D(rng *rand.Rand, inChannels, outChannels, kernelSize, stride, padding int) *ConvTranspose2D {
	return &ConvTranspose2D{
		W:           normalParam(rng, inChannels, outChannels, kernelSize, kernelSize),
		B:           zeroParam(outChannels),
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
	}
}

// Forward upsamples x.
func (c *ConvTranspose2D) Forward(x *autograd.Var) *autograd.Var {
	return autograd.ConvTranspose2D(x, c.W, c.B, c.stride, c.padding)
}

// Params returns weights then biases.
func (c *ConvTranspose2D) Params() []*autograd.Var {
	return []*autograd.Var{c.W, c.B}
}

// OutputSize returns the spatial output size for a square input of side in.
func (c *ConvTranspose2D) OutputSize(in int) int {
	return (in-1)*c.stride - 2*c.padding + c.kernelSize
}
