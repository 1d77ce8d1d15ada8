// Command train trains a zi2zi model on a directory of paired glyph images.
//
//	train -data_dir data -experiment_dir experiment -embedding_num 40 -epoch 30
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FlavioCFOliveira/GoZi2Zi/zi2zi"
)

func main() {
	cfg := zi2zi.DefaultConfig()
	cfg.RegisterFlags(flag.CommandLine)
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	zi2zi.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := zi2zi.Train(ctx, cfg)
	if err != nil {
		if m != nil && m.Steps() > 0 {
			fmt.Fprintf(os.Stderr, "train: stopped after %d steps\n", m.Steps())
		}
		fmt.Fprintf(os.Stderr, "train: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Training finished after %d steps (lr %.6f)\n", m.Steps(), m.LearningRate())
}
