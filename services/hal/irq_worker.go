// services/hal/irq_worker.go
package hal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tegracode-go/irqline"
)

// lineWatcher moves pin interrupts out of dispatch context. The handler
// attached to a line does one level read and one non-blocking channel
// send; inversion and fan-out happen on the watcher goroutine.
type lineWatcher struct {
	// Fed from dispatch context; the send MUST NOT block:
	isrQ chan isrEvent

	// Consumed by the HAL service:
	outQ chan LineEvent

	mu      sync.RWMutex
	watches map[string]*watch // device id -> watch

	drops atomic.Uint32
}

type isrEvent struct {
	dev   string
	level bool // raw level captured at dispatch
}

type watch struct {
	dev       string
	line      *irqline.Line
	level     func() bool
	invert    bool
	lastLevel bool // inversion applied
}

func newLineWatcher(isrBuf, outBuf int) *lineWatcher {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	if outBuf <= 0 {
		outBuf = 64
	}
	return &lineWatcher{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan LineEvent, outBuf),
		watches: map[string]*watch{},
	}
}

func (w *lineWatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.fanOut(ev)
			}
		}
	}()
}

func (w *lineWatcher) Events() <-chan LineEvent { return w.outQ }

// Watch attaches dev's handler to a line. level samples the pin and
// must be safe to call from dispatch context. The returned cancel
// detaches the handler and forgets the watch.
func (w *lineWatcher) Watch(dev string, line *irqline.Line, level func() bool, invert bool) (func(), error) {
	wh := &watch{
		dev:       dev,
		line:      line,
		level:     level,
		invert:    invert,
		lastLevel: level() != invert,
	}

	handler := func(int) {
		select {
		case w.isrQ <- isrEvent{dev: dev, level: level()}:
		default:
			w.drops.Add(1) // protect the dispatch path
		}
	}
	if err := line.Request(handler); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.watches[dev] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.watches[dev]; ok && cur == wh {
			delete(w.watches, dev)
		}
		w.mu.Unlock()
		line.Free()
	}, nil
}

func (w *lineWatcher) fanOut(ev isrEvent) {
	w.mu.RLock()
	wh := w.watches[ev.dev]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	cur := ev.level != wh.invert
	prev := wh.lastLevel
	wh.lastLevel = cur

	select {
	case w.outQ <- LineEvent{Dev: ev.dev, Level: cur, Prev: prev, TS: time.Now()}:
	default:
		// drop if the consumer lags
	}
}

func (w *lineWatcher) Drops() uint32 { return w.drops.Load() }
