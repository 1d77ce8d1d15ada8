package autograd

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/parallel"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// convGeom describes one square-kernel convolution over NCHW data.
// For Conv2D "in" is the convolved input; for ConvTranspose2D "in" is the
// low-resolution input and "out" the upsampled output. In both cases the
// kernel tap (ky, kx) links in-pixel (iy, ix) with out-pixel (oy, ox) by
//
//	conv:      iy = oy*stride - pad + ky
//	transpose: oy = iy*stride - pad + ky
type convGeom struct {
	n, inC, inH, inW    int
	outC, outH, outW    int
	kernel, stride, pad int
}

// Conv2D computes a 2-D cross-correlation.
// x is (N, C, H, W), w is (O, C, K, K), b is (O) or nil.
// The result is (N, O, (H+2*pad-K)/stride+1, (W+2*pad-K)/stride+1).
func Conv2D(x, w, b *Var, stride, pad int) *Var {
	g := conv2DGeom(x.Value, w.Value, stride, pad)
	out := tensor.New(g.n, g.outC, g.outH, g.outW)
	xd, wd, od := x.Value.Data(), w.Value.Data(), out.Data()
	inSize, outSize := g.inC*g.inH*g.inW, g.outC*g.outH*g.outW
	kk := g.kernel * g.kernel

	parallel.Each(g.n, func(n int) {
		xs := xd[n*inSize : (n+1)*inSize]
		os := od[n*outSize : (n+1)*outSize]
		for o := 0; o < g.outC; o++ {
			plane := os[o*g.outH*g.outW : (o+1)*g.outH*g.outW]
			if b != nil {
				bv := b.Value.Data()[o]
				for i := range plane {
					plane[i] = bv
				}
			}
			for c := 0; c < g.inC; c++ {
				xc := xs[c*g.inH*g.inW : (c+1)*g.inH*g.inW]
				wk := wd[(o*g.inC+c)*kk : (o*g.inC+c+1)*kk]
				for ky := 0; ky < g.kernel; ky++ {
					for kx := 0; kx < g.kernel; kx++ {
						wv := wk[ky*g.kernel+kx]
						for oy := 0; oy < g.outH; oy++ {
							iy := oy*g.stride - g.pad + ky
							if iy < 0 || iy >= g.inH {
								continue
							}
							row := xc[iy*g.inW : (iy+1)*g.inW]
							orow := plane[oy*g.outW : (oy+1)*g.outW]
							for ox := range orow {
								ix := ox*g.stride - g.pad + kx
								if ix < 0 || ix >= g.inW {
									continue
								}
								orow[ox] += wv * row[ix]
							}
						}
					}
				}
			}
		}
	})

	parents := []*Var{x, w}
	if b != nil {
		parents = append(parents, b)
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		gd := grad.Data()
		grads := make([]*tensor.Tensor, len(parents))

		if x.RequiresGrad() {
			gx := tensor.New(x.Value.Shape()...)
			gxd := gx.Data()
			parallel.Each(g.n, func(n int) {
				gxs := gxd[n*inSize : (n+1)*inSize]
				gs := gd[n*outSize : (n+1)*outSize]
				for o := 0; o < g.outC; o++ {
					plane := gs[o*g.outH*g.outW : (o+1)*g.outH*g.outW]
					for c := 0; c < g.inC; c++ {
						gxc := gxs[c*g.inH*g.inW : (c+1)*g.inH*g.inW]
						wk := wd[(o*g.inC+c)*kk : (o*g.inC+c+1)*kk]
						for ky := 0; ky < g.kernel; ky++ {
							for kx := 0; kx < g.kernel; kx++ {
								wv := wk[ky*g.kernel+kx]
								for oy := 0; oy < g.outH; oy++ {
									iy := oy*g.stride - g.pad + ky
									if iy < 0 || iy >= g.inH {
										continue
									}
									row := gxc[iy*g.inW : (iy+1)*g.inW]
									grow := plane[oy*g.outW : (oy+1)*g.outW]
									for ox, gv := range grow {
										ix := ox*g.stride - g.pad + kx
										if ix < 0 || ix >= g.inW {
											continue
										}
										row[ix] += wv * gv
									}
								}
							}
						}
					}
				}
			})
			grads[0] = gx
		}

		if w.RequiresGrad() {
			gw := tensor.New(w.Value.Shape()...)
			gwd := gw.Data()
			parallel.Each(g.outC, func(o int) {
				for n := 0; n < g.n; n++ {
					xs := xd[n*inSize : (n+1)*inSize]
					plane := gd[n*outSize+o*g.outH*g.outW : n*outSize+(o+1)*g.outH*g.outW]
					for c := 0; c < g.inC; c++ {
						xc := xs[c*g.inH*g.inW : (c+1)*g.inH*g.inW]
						gk := gwd[(o*g.inC+c)*kk : (o*g.inC+c+1)*kk]
						for ky := 0; ky < g.kernel; ky++ {
							for kx := 0; kx < g.kernel; kx++ {
								s := 0.0
								for oy := 0; oy < g.outH; oy++ {
									iy := oy*g.stride - g.pad + ky
									if iy < 0 || iy >= g.inH {
										continue
									}
									row := xc[iy*g.inW : (iy+1)*g.inW]
									grow := plane[oy*g.outW : (oy+1)*g.outW]
									for ox, gv := range grow {
										ix := ox*g.stride - g.pad + kx
										if ix < 0 || ix >= g.inW {
											continue
										}
										s += gv * row[ix]
									}
								}
								gk[ky*g.kernel+kx] += s
							}
						}
					}
				}
			})
			grads[1] = gw
		}

		if b != nil && b.RequiresGrad() {
			grads[2] = channelSums(gd, g.n, g.outC, g.outH*g.outW)
		}
		return grads
	}, parents...)
}

// ConvTranspose2D computes the adjoint of a strided convolution (a
// "deconvolution"). x is (N, C, H, W), w is (C, O, K, K), b is (O) or nil.
// The result is (N, O, (H-1)*stride-2*pad+K, (W-1)*stride-2*pad+K).
func ConvTranspose2D(x, w, b *Var, stride, pad int) *Var {
	g := convTranspose2DGeom(x.Value, w.Value, stride, pad)
	out := tensor.New(g.n, g.outC, g.outH, g.outW)
	xd, wd, od := x.Value.Data(), w.Value.Data(), out.Data()
	inSize, outSize := g.inC*g.inH*g.inW, g.outC*g.outH*g.outW
	kk := g.kernel * g.kernel

	parallel.Each(g.n, func(n int) {
		xs := xd[n*inSize : (n+1)*inSize]
		os := od[n*outSize : (n+1)*outSize]
		if b != nil {
			bd := b.Value.Data()
			for o := 0; o < g.outC; o++ {
				plane := os[o*g.outH*g.outW : (o+1)*g.outH*g.outW]
				for i := range plane {
					plane[i] = bd[o]
				}
			}
		}
		for c := 0; c < g.inC; c++ {
			xc := xs[c*g.inH*g.inW : (c+1)*g.inH*g.inW]
			for o := 0; o < g.outC; o++ {
				plane := os[o*g.outH*g.outW : (o+1)*g.outH*g.outW]
				wk := wd[(c*g.outC+o)*kk : (c*g.outC+o+1)*kk]
				for ky := 0; ky < g.kernel; ky++ {
					for kx := 0; kx < g.kernel; kx++ {
						wv := wk[ky*g.kernel+kx]
						for iy := 0; iy < g.inH; iy++ {
							oy := iy*g.stride - g.pad + ky
							if oy < 0 || oy >= g.outH {
								continue
							}
							row := xc[iy*g.inW : (iy+1)*g.inW]
							orow := plane[oy*g.outW : (oy+1)*g.outW]
							for ix, xv := range row {
								ox := ix*g.stride - g.pad + kx
								if ox < 0 || ox >= g.outW {
									continue
								}
								orow[ox] += wv * xv
							}
						}
					}
				}
			}
		}
	})

	parents := []*Var{x, w}
	if b != nil {
		parents = append(parents, b)
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		gd := grad.Data()
		grads := make([]*tensor.Tensor, len(parents))

		if x.RequiresGrad() {
			gx := tensor.New(x.Value.Shape()...)
			gxd := gx.Data()
			parallel.Each(g.n, func(n int) {
				gxs := gxd[n*inSize : (n+1)*inSize]
				gs := gd[n*outSize : (n+1)*outSize]
				for c := 0; c < g.inC; c++ {
					gxc := gxs[c*g.inH*g.inW : (c+1)*g.inH*g.inW]
					for o := 0; o < g.outC; o++ {
						plane := gs[o*g.outH*g.outW : (o+1)*g.outH*g.outW]
						wk := wd[(c*g.outC+o)*kk : (c*g.outC+o+1)*kk]
						for ky := 0; ky < g.kernel; ky++ {
							for kx := 0; kx < g.kernel; kx++ {
								wv := wk[ky*g.kernel+kx]
								for iy := 0; iy < g.inH; iy++ {
									oy := iy*g.stride - g.pad + ky
									if oy < 0 || oy >= g.outH {
										continue
									}
									row := gxc[iy*g.inW : (iy+1)*g.inW]
									grow := plane[oy*g.outW : (oy+1)*g.outW]
									for ix := range row {
										ox := ix*g.stride - g.pad + kx
										if ox < 0 || ox >= g.outW {
											continue
										}
										row[ix] += wv * grow[ox]
									}
								}
							}
						}
					}
				}
			})
			grads[0] = gx
		}

		if w.RequiresGrad() {
			gw := tensor.New(w.Value.Shape()...)
			gwd := gw.Data()
			parallel.Each(g.inC, func(c int) {
				for n := 0; n < g.n; n++ {
					xc := xd[n*inSize+c*g.inH*g.inW : n*inSize+(c+1)*g.inH*g.inW]
					gs := gd[n*outSize : (n+1)*outSize]
					for o := 0; o < g.outC; o++ {
						plane := gs[o*g.outH*g.outW : (o+1)*g.outH*g.outW]
						gk := gwd[(c*g.outC+o)*kk : (c*g.outC+o+1)*kk]
						for ky := 0; ky < g.kernel; ky++ {
							for kx := 0; kx < g.kernel; kx++ {
								s := 0.0
								for iy := 0; iy < g.inH; iy++ {
									oy := iy*g.stride - g.pad + ky
									if oy < 0 || oy >= g.outH {
										continue
									}
									row := xc[iy*g.inW : (iy+1)*g.inW]
									grow := plane[oy*g.outW : (oy+1)*g.outW]
									for ix, xv := range row {
										ox := ix*g.stride - g.pad + kx
										if ox < 0 || ox >= g.outW {
											continue
										}
										s += xv * grow[ox]
									}
								}
								gk[ky*g.kernel+kx] += s
							}
						}
					}
				}
			})
			grads[1] = gw
		}

		if b != nil && b.RequiresGrad() {
			grads[2] = channelSums(gd, g.n, g.outC, g.outH*g.outW)
		}
		return grads
	}, parents...)
}

// channelSums reduces an (N, C, HW) gradient to (C).
func channelSums(gd []float64, n, c, hw int) *tensor.Tensor {
	gb := tensor.New(c)
	gbd := gb.Data()
	parallel.Each(c, func(o int) {
		s := 0.0
		for i := 0; i < n; i++ {
			for _, v := range gd[(i*c+o)*hw : (i*c+o+1)*hw] {
				s += v
			}
		}
		gbd[o] = s
	})
	return gb
}

func conv2DGeom(x, w *tensor.Tensor, stride, pad int) convGeom {
	if x.Rank() != 4 || w.Rank() != 4 || w.Dim(2) != w.Dim(3) {
		panic(fmt.Sprintf("autograd: Conv2D input %v, weight %v", x, w))
	}
	if x.Dim(1) != w.Dim(1) {
		panic(fmt.Sprintf("autograd: Conv2D input channels %d, weight expects %d", x.Dim(1), w.Dim(1)))
	}
	k := w.Dim(2)
	g := convGeom{
		n: x.Dim(0), inC: x.Dim(1), inH: x.Dim(2), inW: x.Dim(3),
		outC:   w.Dim(0),
		outH:   (x.Dim(2)+2*pad-k)/stride + 1,
		outW:   (x.Dim(3)+2*pad-k)/stride + 1,
		kernel: k, stride: stride, pad: pad,
	}
	if g.outH <= 0 || g.outW <= 0 {
		panic(fmt.Sprintf("autograd: Conv2D output for input %v is empty", x))
	}
	return g
}

func convTranspose2DGeom(x, w *tensor.Tensor, stride, pad int) convGeom {
	if x.Rank() != 4 || w.Rank() != 4 || w.Dim(2) != w.Dim(3) {
		panic(fmt.Sprintf("autograd: ConvTranspose2D input %v, weight %v", x, w))
	}
	if x.Dim(1) != w.Dim(0) {
		panic(fmt.Sprintf("autograd: ConvTranspose2D input channels %d, weight expects %d", x.Dim(1), w.Dim(0)))
	}
	k := w.Dim(2)
	g := convGeom{
		n: x.Dim(0), inC: x.Dim(1), inH: x.Dim(2), inW: x.Dim(3),
		outC:   w.Dim(1),
		outH:   (x.Dim(2)-1)*stride - 2*pad + k,
		outW:   (x.Dim(3)-1)*stride - 2*pad + k,
		kernel: k, stride: stride, pad: pad,
	}
	if g.outH <= 0 || g.outW <= 0 {
		panic(fmt.Sprintf("autograd: ConvTranspose2D output for input %v is empty", x))
	}
	return g
}
