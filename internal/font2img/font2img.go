// Package font2img renders paired glyph samples from a source and a target
// font, in the layout read by package dataset.
package font2img

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
)

// Options controls glyph placement.
type Options struct {
	CanvasSize int
	CharSize   float64
	XOffset    int
	YOffset    int
}

// DefaultOptions matches the usual zi2zi canvas.
func DefaultOptions() Options {
	return Options{CanvasSize: 256, CharSize: 220}
}

// LoadFont parses an OpenType or TrueType font file.
func LoadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "font2img: read font")
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "font2img: parse %s", path)
	}
	return f, nil
}

type glyphFace struct {
	font *opentype.Font
	face font.Face
	buf  sfnt.Buffer
}

func newGlyphFace(f *opentype.Font, size float64) (*glyphFace, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrap(err, "font2img: create face")
	}
	return &glyphFace{font: f, face: face}, nil
}

func (g *glyphFace) has(ch rune) bool {
	idx, err := g.font.GlyphIndex(&g.buf, ch)
	return err == nil && idx != 0
}

// Renderer draws the same characters in two fonts.
type Renderer struct {
	src, dst *glyphFace
	opts     Options
}

// NewRenderer prepares faces for src and dst at opts.CharSize.
func NewRenderer(src, dst *opentype.Font, opts Options) (*Renderer, error) {
	if opts.CanvasSize < 1 || opts.CharSize <= 0 {
		return nil, errors.Errorf("font2img: invalid options %+v", opts)
	}
	s, err := newGlyphFace(src, opts.CharSize)
	if err != nil {
		return nil, err
	}
	d, err := newGlyphFace(dst, opts.CharSize)
	if err != nil {
		s.face.Close()
		return nil, err
	}
	return &Renderer{src: s, dst: d, opts: opts}, nil
}

// Close releases both faces.
func (r *Renderer) Close() error {
	err := r.src.face.Close()
	if derr := r.dst.face.Close(); err == nil {
		err = derr
	}
	return err
}

// drawChar renders ch black on a white square canvas, centred.
func (r *Renderer) drawChar(g *glyphFace, ch rune) *image.Gray {
	s := r.opts.CanvasSize
	img := image.NewGray(image.Rect(0, 0, s, s))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	m := g.face.Metrics()
	d := &font.Drawer{Dst: img, Src: image.Black, Face: g.face}
	advance := d.MeasureString(string(ch))
	x := (fixed.I(s)-advance)/2 + fixed.I(r.opts.XOffset)
	y := (fixed.I(s)-m.Ascent-m.Descent)/2 + m.Ascent + fixed.I(r.opts.YOffset)
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(string(ch))
	return img
}

func blank(img *image.Gray) bool {
	for _, v := range img.Pix {
		if v != 255 {
			return false
		}
	}
	return true
}

// Render returns the 2S×S sample for ch with the target glyph on the left
// and the source glyph on the right. It reports false when either font
// lacks ch or either rendering is blank.
func (r *Renderer) Render(ch rune) (*image.Gray, bool) {
	if !r.src.has(ch) || !r.dst.has(ch) {
		return nil, false
	}
	dst := r.drawChar(r.dst, ch)
	src := r.drawChar(r.src, ch)
	if blank(dst) || blank(src) {
		return nil, false
	}
	s := r.opts.CanvasSize
	out := image.NewGray(image.Rect(0, 0, 2*s, s))
	draw.Draw(out, image.Rect(0, 0, s, s), dst, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(s, 0, 2*s, s), src, image.Point{}, draw.Src)
	return out, true
}

// WriteAll renders every rune of charset and writes the kept samples to dir
// as "<label>_<index>.png". It returns the number of files written.
func (r *Renderer) WriteAll(dir string, label int, charset []rune) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Wrap(err, "font2img: create directory")
	}
	written := 0
	for _, ch := range charset {
		img, ok := r.Render(ch)
		if !ok {
			logging.Logger().Debug("font2img: skipping character", "char", string(ch))
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%d_%04d.png", label, written))
		if err := writePNG(path, img); err != nil {
			return written, err
		}
		written++
	}
	logging.Logger().Info("font2img: samples written", "label", label, "count", written, "skipped", len(charset)-written)
	return written, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "font2img: create sample")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "font2img: encode sample")
	}
	return errors.Wrap(f.Close(), "font2img: close sample")
}

// Charset returns the distinct runes of s in order, ignoring whitespace and
// control characters.
func Charset(s string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, ch := range s {
		if ch <= ' ' || ch == 0x7f || seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}
