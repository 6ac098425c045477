// Package irqline maps hardware interrupt numbers onto dispatchable line
// objects. A controller driver creates one mapping per hardware line at
// init, consumers attach handlers at runtime, and the controller's
// demultiplexer calls Dispatch from interrupt context.
package irqline

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Chip is the controller-side surface a line needs to run its dispatch
// flow. Implementations must tolerate calls for lines that became
// inaccessible; such calls are silent no-ops.
type Chip interface {
	Ack(hw int)
	Mask(hw int)
	Unmask(hw int)
}

// Handler services one line. It runs synchronously inside Dispatch and
// must not block.
type Handler func(hw int)

// Discipline selects the dispatch flow of a line.
type Discipline uint32

const (
	// None marks a line whose trigger has not been configured. Dispatch
	// silences it.
	None Discipline = iota
	// Edge acknowledges the transition up front; one dispatch per event.
	Edge
	// Level masks the line across the handler so a still-asserted source
	// cannot storm, and unmasks after the handler returns.
	Level
)

var (
	ErrMapped    = errors.New("irqline: hw line already mapped")
	ErrNotMapped = errors.New("irqline: hw line not mapped")
	ErrRequested = errors.New("irqline: handler already requested")
)

// Line is one mapped hardware interrupt. All runtime state is atomic;
// Dispatch never takes a lock.
type Line struct {
	hw    int
	chip  Chip
	owner any

	discipline atomic.Uint32
	handler    atomic.Pointer[Handler]
	dispatched atomic.Uint32
	spurious   atomic.Uint32
}

func (l *Line) HW() int    { return l.hw }
func (l *Line) Owner() any { return l.owner }

// SetDiscipline switches the dispatch flow. Called by the owning
// controller when a trigger type is programmed.
func (l *Line) SetDiscipline(d Discipline) { l.discipline.Store(uint32(d)) }

func (l *Line) Discipline() Discipline { return Discipline(l.discipline.Load()) }

// Request attaches a handler. One handler per line.
func (l *Line) Request(h Handler) error {
	if h == nil {
		return errors.New("irqline: nil handler")
	}
	if !l.handler.CompareAndSwap(nil, &h) {
		return ErrRequested
	}
	return nil
}

// Free detaches the handler. Pending dispatches already past the handler
// load still run it once.
func (l *Line) Free() { l.handler.Store(nil) }

// Dispatched and Spurious are diagnostic counters.
func (l *Line) Dispatched() uint32 { return l.dispatched.Load() }
func (l *Line) Spurious() uint32   { return l.spurious.Load() }

// Dispatch runs the line's flow for one hardware event.
func (l *Line) Dispatch() {
	switch Discipline(l.discipline.Load()) {
	case Edge:
		l.chip.Ack(l.hw)
		h := l.handler.Load()
		if h == nil {
			// Nothing to service the source; mask so an edge storm
			// cannot wedge the bank.
			l.spurious.Add(1)
			l.chip.Mask(l.hw)
			return
		}
		l.dispatched.Add(1)
		(*h)(l.hw)
	case Level:
		l.chip.Mask(l.hw)
		l.chip.Ack(l.hw)
		h := l.handler.Load()
		if h == nil {
			// Leave masked: a level source stays asserted until it is
			// serviced.
			l.spurious.Add(1)
			return
		}
		l.dispatched.Add(1)
		(*h)(l.hw)
		l.chip.Unmask(l.hw)
	default:
		l.spurious.Add(1)
		l.chip.Mask(l.hw)
		l.chip.Ack(l.hw)
	}
}

// Registry owns the hw → line mappings for one process.
type Registry struct {
	mu    sync.Mutex
	lines map[int]*Line
}

func NewRegistry() *Registry {
	return &Registry{lines: make(map[int]*Line)}
}

// CreateMapping binds hw to a new line. owner is kept as an opaque
// back-reference for the controller's own use.
func (r *Registry) CreateMapping(hw int, chip Chip, owner any) (*Line, error) {
	if chip == nil {
		return nil, errors.New("irqline: nil chip")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[hw]; ok {
		return nil, ErrMapped
	}
	l := &Line{hw: hw, chip: chip, owner: owner}
	r.lines[hw] = l
	return l, nil
}

// FindMapping returns the line for hw, or nil.
func (r *Registry) FindMapping(hw int) *Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[hw]
}

// DisposeMapping drops the mapping for hw. Used to unwind a partially
// initialised controller.
func (r *Registry) DisposeMapping(hw int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[hw]; !ok {
		return ErrNotMapped
	}
	delete(r.lines, hw)
	return nil
}

// Len reports how many lines are mapped.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
