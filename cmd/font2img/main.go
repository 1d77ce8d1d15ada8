// Command font2img renders paired training samples from a source and a
// target font.
//
//	font2img -src_font src.ttf -dst_font dst.otf -charset_file chars.txt -label 3 -sample_dir data
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/FlavioCFOliveira/GoZi2Zi/zi2zi"
)

func main() {
	opts := zi2zi.DefaultFontOptions()
	srcFont := flag.String("src_font", "", "path of the source font")
	dstFont := flag.String("dst_font", "", "path of the target font")
	charset := flag.String("charset", "", "characters to render")
	charsetFile := flag.String("charset_file", "", "file whose characters are rendered (overrides -charset)")
	sampleDir := flag.String("sample_dir", "data", "directory for the generated samples")
	label := flag.Int("label", 0, "style label of the target font")
	flag.IntVar(&opts.CanvasSize, "canvas_size", opts.CanvasSize, "side of each glyph canvas in pixels")
	flag.Float64Var(&opts.CharSize, "char_size", opts.CharSize, "font size in pixels")
	flag.IntVar(&opts.XOffset, "x_offset", opts.XOffset, "horizontal glyph offset")
	flag.IntVar(&opts.YOffset, "y_offset", opts.YOffset, "vertical glyph offset")
	flag.Parse()

	zi2zi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *srcFont == "" || *dstFont == "" {
		fmt.Fprintln(os.Stderr, "font2img: -src_font and -dst_font are required")
		flag.Usage()
		os.Exit(2)
	}
	chars := *charset
	if *charsetFile != "" {
		b, err := os.ReadFile(*charsetFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "font2img: %v\n", err)
			os.Exit(1)
		}
		chars = string(b)
	}

	n, err := zi2zi.RenderFonts(*srcFont, *dstFont, *sampleDir, *label, chars, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "font2img: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d samples to %s\n", n, *sampleDir)
}
