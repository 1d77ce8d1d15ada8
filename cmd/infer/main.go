// Command infer runs a trained generator over a directory of paired glyph
// images and writes source | generated | target grids.
//
//	infer -checkpoint experiment/checkpoint/ckpt-00001000.pb -data_dir val -label 7
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/dataset"
	"github.com/FlavioCFOliveira/GoZi2Zi/zi2zi"
)

func main() {
	cfg := zi2zi.DefaultConfig()
	cfg.RegisterFlags(flag.CommandLine)
	ckpt := flag.String("checkpoint", "", "checkpoint file to load")
	saveDir := flag.String("save_dir", "infer", "directory for generated grids")
	label := flag.Int("label", -1, "style label for every sample (-1 keeps each sample's own)")
	flag.Parse()

	zi2zi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	n, err := run(cfg, *ckpt, *saveDir, *label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "infer: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d grids to %s\n", n, *saveDir)
}

func run(cfg zi2zi.Config, ckpt, saveDir string, label int) (int, error) {
	if ckpt == "" {
		return 0, errors.New("-checkpoint is required")
	}
	if label >= cfg.Model.EmbeddingNum {
		return 0, errors.Errorf("label %d out of range [0, %d)", label, cfg.Model.EmbeddingNum)
	}
	m, err := zi2zi.LoadModel(cfg.Model, ckpt)
	if err != nil {
		return 0, err
	}
	data, err := zi2zi.OpenDataset(cfg.DataDir, cfg.Model.ImageSize, cfg.Model.InputNC)
	if err != nil {
		return 0, err
	}

	indices := make([]int, data.Len())
	for i := range indices {
		indices[i] = i
	}
	n := 0
	for start := 0; start < len(indices); start += cfg.BatchSize {
		b, err := data.Batch(indices[start:min(start+cfg.BatchSize, len(indices))])
		if err != nil {
			return n, err
		}
		if label >= 0 {
			for i := range b.Labels {
				b.Labels[i] = label
			}
		}
		fake, err := m.Generate(b.Labels, b.RealA)
		if err != nil {
			return n, err
		}
		path := filepath.Join(saveDir, fmt.Sprintf("inferred_%04d.png", n))
		if err := dataset.SaveGrid(path, b.RealA, fake, b.RealB); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
