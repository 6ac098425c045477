package tegra186

import (
	"errors"

	"tegracode-go/x/mathx"
)

var (
	ErrPinRange        = errors.New("gpio: pin out of range")
	ErrPinInaccessible = errors.New("gpio: pin not accessible")
	ErrInvalidTrigger  = errors.New("gpio: invalid trigger type")
	ErrNoWakeSlot      = errors.New("gpio: pin has no wake slot")
)

type Direction int

const (
	DirInput Direction = iota
	DirOutput
)

func (d Direction) String() string {
	if d == DirOutput {
		return "output"
	}
	return "input"
}

// Accessible reports whether firmware left this pin usable: the pin
// exists, is wired on this chip, and its capability register grants the
// full read/write set. The capability register is read fresh on every
// call; firmware can retighten it at runtime.
func (d *Device) Accessible(id int) bool {
	if id < 0 || id >= TotalPins {
		return false
	}
	port, pin := splitPin(id)
	p := &ports[port]
	if !p.present || pin >= p.pins {
		return false
	}
	w, addr := translateSecurity(id)
	return SecurityBits(d.windows[w].Read32(addr)).Has(SecFullAccess)
}

// guard is the common mutator precondition: argument checks, then the
// capability gate, before any register is touched.
func (d *Device) guard(id int) error {
	if id < 0 || id >= TotalPins {
		return ErrPinRange
	}
	if !d.Accessible(id) {
		return ErrPinInaccessible
	}
	return nil
}

// Request claims the pin's pad from the pad controller.
func (d *Device) Request(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	if d.pinmux != nil {
		return d.pinmux.Request(id)
	}
	return nil
}

// Free releases the pin's pad.
func (d *Device) Free(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	if d.pinmux != nil {
		return d.pinmux.Free(id)
	}
	return nil
}

// Direction reports the pin's configured direction. Inaccessible pins
// read as input.
func (d *Device) Direction(id int) Direction {
	if id < 0 || id >= TotalPins || !d.Accessible(id) {
		return DirInput
	}
	if ConfigBits(d.readReg(id, regEnbConfig)).Has(cfgDirOut) {
		return DirOutput
	}
	return DirInput
}

// DirectionInput turns the line around. The direction bit alone parks
// the driver; the output-control register is left untouched.
func (d *Device) DirectionInput(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.updateConfig(id, cfgEnable, cfgDirOut)
	if d.pinmux != nil {
		return d.pinmux.SetDirection(id, false)
	}
	return nil
}

// DirectionOutput drives the pin. The output value is committed before
// the driver leaves tri-state so the pad never glitches through the old
// level.
func (d *Device) DirectionOutput(id int, level bool) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.setLevel(id, level)
	d.updateOutControl(id, 0, outTristate)
	d.updateConfig(id, cfgEnable|cfgDirOut, 0)
	if d.pinmux != nil {
		return d.pinmux.SetDirection(id, true)
	}
	return nil
}

// Get samples the line. Outputs read back their driven value,
// inaccessible pins read low.
func (d *Device) Get(id int) bool {
	if id < 0 || id >= TotalPins || !d.Accessible(id) {
		return false
	}
	reg := uint32(regInput)
	if ConfigBits(d.readReg(id, regEnbConfig)).Has(cfgDirOut) {
		reg = regOutValue
	}
	return d.readReg(id, reg)&levelBit != 0
}

// Set commits the output value and takes the driver out of tri-state,
// value first so the pad never glitches through the old level.
func (d *Device) Set(id int, level bool) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.setLevel(id, level)
	d.updateOutControl(id, 0, outTristate)
	return nil
}

func (d *Device) setLevel(id int, level bool) {
	val := d.readReg(id, regOutValue)
	if level {
		val |= levelBit
	} else {
		val &^= levelBit
	}
	d.writeReg(id, regOutValue, val)
}

// Enable connects the pin to the controller.
func (d *Device) Enable(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.updateConfig(id, cfgEnable, 0)
	return nil
}

// Disable parks the pin.
func (d *Device) Disable(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.updateConfig(id, 0, cfgEnable)
	return nil
}

// SetDebounce filters the input through the pin's debounce timer. The
// threshold register counts milliseconds, so usec is rounded up to the
// next millisecond; values beyond the 8-bit threshold width wrap the
// way the hardware would. Zero turns the timer's threshold off but
// leaves the filter function selected.
func (d *Device) SetDebounce(id int, usec uint32) error {
	if err := d.guard(id); err != nil {
		return err
	}
	// 64-bit ceil so usec near the top of its range cannot wrap before
	// the register-width truncation.
	ms := mathx.CeilDiv(uint64(usec), 1000)
	d.writeReg(id, regDebounce, debounceThreshold(uint32(ms)))
	d.updateConfig(id, cfgEnable|cfgDebounceFunc, 0)
	return nil
}

func (d *Device) updateOutControl(id int, set, clear OutControlBits) {
	cur := OutControlBits(d.readReg(id, regOutControl))
	d.writeReg(id, regOutControl, uint32((cur|set)&^clear))
}
