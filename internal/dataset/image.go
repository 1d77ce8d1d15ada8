package dataset

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Grid lays out image batches as columns: row i shows sample i of every
// batch side by side. All batches must share one NCHW shape.
func Grid(columns ...*tensor.Tensor) (*image.RGBA, error) {
	if len(columns) == 0 {
		return nil, errors.New("dataset: empty grid")
	}
	shape := columns[0].Shape()
	if len(shape) != 4 || (shape[1] != 1 && shape[1] != 3) {
		return nil, errors.Errorf("dataset: cannot render %v", shape)
	}
	for _, c := range columns[1:] {
		if !tensor.EqualShapes(c.Shape(), shape) {
			return nil, errors.Errorf("dataset: grid column %v, want %v", c.Shape(), shape)
		}
	}
	n, ch, h, w := shape[0], shape[1], shape[2], shape[3]
	plane := h * w
	img := image.NewRGBA(image.Rect(0, 0, w*len(columns), h*n))
	for col, t := range columns {
		data := t.Data()
		for s := 0; s < n; s++ {
			base := s * ch * plane
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					i := base + y*w + x
					var px color.RGBA
					if ch == 1 {
						v := denormalise(data[i])
						px = color.RGBA{v, v, v, 255}
					} else {
						px = color.RGBA{denormalise(data[i]), denormalise(data[i+plane]), denormalise(data[i+2*plane]), 255}
					}
					img.SetRGBA(col*w+x, s*h+y, px)
				}
			}
		}
	}
	return img, nil
}

// SaveGrid renders columns with Grid and writes the result as a PNG.
func SaveGrid(path string, columns ...*tensor.Tensor) error {
	img, err := Grid(columns...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "dataset: create directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "dataset: create image")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "dataset: encode image")
	}
	return errors.Wrap(f.Close(), "dataset: close image")
}

func denormalise(v float64) uint8 {
	v = (v + 1) * 127.5
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
