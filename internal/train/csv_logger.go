package train

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
)

// CSVLogger logs every step to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

var csvHeader = []string{
	"step", "epoch", "d_loss", "g_loss", "cheat_loss", "l1_loss",
	"const_loss", "category_loss", "real_d", "fake_d", "lr", "time_seconds",
}

func (c *CSVLogger) OnTrainBegin(s *State) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	if err := os.MkdirAll(filepath.Dir(c.Filename), 0755); err != nil {
		logging.Logger().Warn("CSVLogger: failed to create directory", "file", c.Filename, "err", err)
		return
	}
	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		logging.Logger().Warn("CSVLogger: failed to open file", "file", c.Filename, "err", err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write(csvHeader)
		c.writer.Flush()
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func (c *CSVLogger) OnStepEnd(s *State) {
	if c.writer == nil {
		return
	}

	r := s.Report
	record := []string{
		strconv.FormatInt(s.Step, 10),
		strconv.FormatInt(s.Epoch, 10),
		formatFloat(r.DLoss),
		formatFloat(r.GLoss),
		formatFloat(r.CheatLoss),
		formatFloat(r.L1Loss),
		formatFloat(r.ConstLoss),
		formatFloat(r.CategoryLoss),
		formatFloat(r.MeanRealD()),
		formatFloat(r.MeanFakeD()),
		strconv.FormatFloat(s.Model.LearningRate(), 'g', -1, 64),
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 2, 64),
	}

	if err := c.writer.Write(record); err != nil {
		logging.Logger().Warn("CSVLogger: failed to write record", "err", err)
	}
	c.writer.Flush()
}

func (c *CSVLogger) OnTrainEnd(s *State) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
