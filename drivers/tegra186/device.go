package tegra186

import (
	"fmt"

	"tegracode-go/irqline"
)

// Pinmux grants and revokes pad ownership. Implementations are the pad
// controller driver or a stub on boards that boot with pads preassigned.
type Pinmux interface {
	Request(pin int) error
	Free(pin int) error
	SetDirection(pin int, output bool) error
}

// WakeRegistry programs the wake controller slot routed to a pin.
type WakeRegistry interface {
	SetWakeType(slot int, t Trigger) error
	SetWakeEnabled(slot int, on bool) error
}

// BankIRQ is one chained parent interrupt. Install registers the
// handler the interrupt source invokes; Enter and Exit bracket each
// invocation so the parent chip can flow-control the chain.
type BankIRQ interface {
	Install(handler func())
	Enter()
	Exit()
}

// Config carries the collaborators a Device needs. Windows and BankIRQs
// are indexed by window and controller number. Pinmux and Wake may be
// nil when the board has no pad controller or wake path.
type Config struct {
	Windows  []Window
	BankIRQs []BankIRQ
	Lines    *irqline.Registry
	Pinmux   Pinmux
	Wake     WakeRegistry
}

func validateWindows(windows []Window) error {
	if len(windows) != NumWindows {
		return fmt.Errorf("gpio: need %d register windows, have %d", NumWindows, len(windows))
	}
	need := RequiredWindowSizes()
	for i, w := range windows {
		if w == nil {
			return fmt.Errorf("gpio: window %d is nil", i)
		}
		if w.Size() < need[i] {
			return fmt.Errorf("gpio: window %d is %#x bytes, need %#x", i, w.Size(), need[i])
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.Lines == nil {
		return fmt.Errorf("gpio: no interrupt line registry")
	}
	if err := validateWindows(c.Windows); err != nil {
		return err
	}
	if len(c.BankIRQs) != NumControllers {
		return fmt.Errorf("gpio: need %d bank interrupts, have %d", NumControllers, len(c.BankIRQs))
	}
	for i, b := range c.BankIRQs {
		if b == nil {
			return fmt.Errorf("gpio: bank interrupt %d is nil", i)
		}
	}
	return nil
}

type bank struct {
	index int
	irq   BankIRQ
}

// Device drives the pin controller complex behind two register windows.
// Methods are not safe for concurrent use; callers serialise
// configuration. Demultiplexing runs on the bank interrupt source and
// only acks configured lines or masks unconfigured ones.
type Device struct {
	windows [NumWindows]Window
	banks   [NumControllers]bank
	lines   [TotalPins]*irqline.Line
	lineReg *irqline.Registry
	pinmux  Pinmux
	wake    WakeRegistry
}

// New validates cfg, maps the full pin number space into the line
// registry, quiesces every accessible line and hooks the bank
// interrupts. Any mapping failure unwinds the mappings already made and
// is returned; a Device is only handed out fully initialised.
func New(cfg Config) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		lineReg: cfg.Lines,
		pinmux:  cfg.Pinmux,
		wake:    cfg.Wake,
	}
	copy(d.windows[:], cfg.Windows)
	for i, irq := range cfg.BankIRQs {
		d.banks[i] = bank{index: i, irq: irq}
	}

	chip := &lineChip{dev: d}
	for id := 0; id < TotalPins; id++ {
		line, err := cfg.Lines.CreateMapping(id, chip, d)
		if err != nil {
			for undo := 0; undo < id; undo++ {
				cfg.Lines.DisposeMapping(undo)
			}
			return nil, fmt.Errorf("gpio: mapping pin %s: %w", PinName(id), err)
		}
		d.lines[id] = line
	}

	// Lines can come up with stale interrupt enables; silence anything
	// we are allowed to touch before accepting bank interrupts.
	for id := 0; id < TotalPins; id++ {
		if d.Accessible(id) {
			d.updateConfig(id, 0, cfgIntFunc)
		}
	}

	for i := range d.banks {
		b := &d.banks[i]
		b.irq.Install(func() { d.demux(b) })
	}
	return d, nil
}

// Close disposes the device's pin mappings and detaches the bank
// handlers. The register windows are left to their owner.
func (d *Device) Close() error {
	for i := range d.banks {
		d.banks[i].irq.Install(nil)
	}
	for id := 0; id < TotalPins; id++ {
		if d.lines[id] != nil {
			d.lineReg.DisposeMapping(id)
			d.lines[id] = nil
		}
	}
	return nil
}

// Line exposes the interrupt line mapped to a pin, for callers that
// attach handlers directly rather than through the registry.
func (d *Device) Line(id int) *irqline.Line {
	if id < 0 || id >= TotalPins {
		return nil
	}
	return d.lines[id]
}

func (d *Device) readReg(id int, reg uint32) uint32 {
	w, addr := translate(id, reg)
	return d.windows[w].Read32(addr)
}

func (d *Device) writeReg(id int, reg uint32, val uint32) {
	w, addr := translate(id, reg)
	d.windows[w].Write32(addr, val)
}

// updateConfig read-modify-writes the pin's config register.
func (d *Device) updateConfig(id int, set, clear ConfigBits) {
	cur := ConfigBits(d.readReg(id, regEnbConfig))
	d.writeReg(id, regEnbConfig, uint32((cur|set)&^clear))
}
