package layer

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/parallel"
)

// DeviceType represents the hardware device used for computation.
type DeviceType int

const (
	CPU DeviceType = iota
)

func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// Device manages the hardware resources for neural network operations.
type Device interface {
	Type() DeviceType
	IsAvailable() bool
	Name() string
	Workers() int
}

// CPUDevice handles computations on the host CPU.
type CPUDevice struct {
	workers int
}

func (d *CPUDevice) Type() DeviceType  { return CPU }
func (d *CPUDevice) IsAvailable() bool { return true }

// Name describes the processor, e.g. "AMD EPYC 7B13 [AVX2 FMA3]".
func (d *CPUDevice) Name() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	var feats []string
	for _, f := range []cpuid.FeatureID{cpuid.AVX512F, cpuid.AVX2, cpuid.FMA3, cpuid.ASIMD} {
		if cpuid.CPU.Supports(f) {
			feats = append(feats, f.String())
		}
	}
	if len(feats) == 0 {
		return brand
	}
	return fmt.Sprintf("%s %v", brand, feats)
}

// Workers returns the kernel fan-out width used on this device.
func (d *CPUDevice) Workers() int {
	if d.workers > 0 {
		return d.workers
	}
	return parallel.DefaultLimit()
}

// NewCPUDevice returns a CPU device. workers <= 0 keeps the detected
// logical core count; a positive value also becomes the kernel default.
func NewCPUDevice(workers int) *CPUDevice {
	if workers > 0 {
		parallel.SetDefaultLimit(workers)
	}
	return &CPUDevice{workers: workers}
}

// GetDefaultDevice returns the best available device for the current platform.
func GetDefaultDevice() Device {
	return NewCPUDevice(0)
}
