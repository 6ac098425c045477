// services/hal/workers_api.go
package hal

import (
	"context"

	"tegracode-go/irqline"
)

// MeasurementWorker is the narrow contract the service relies on.
type MeasurementWorker interface {
	Start(ctx context.Context)
	Submit(MeasureReq) bool
	Results() <-chan Result
}

// NewMeasurementWorker adapts the concrete constructor to the interface.
func NewMeasurementWorker(cfg WorkerConfig) MeasurementWorker {
	return NewWorker(cfg)
}

// LineWatcher is the narrow contract for the interrupt fan-out worker.
type LineWatcher interface {
	Start(ctx context.Context)
	Events() <-chan LineEvent
	Watch(dev string, line *irqline.Line, level func() bool, invert bool) (func(), error)
	Drops() uint32
}

// NewLineWatcher returns a watcher with the given queue depths; zero
// selects the defaults.
func NewLineWatcher(isrBuf, outBuf int) LineWatcher {
	return newLineWatcher(isrBuf, outBuf)
}
