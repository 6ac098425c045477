package tca9539

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Address is the default I2C address (A1=A0=0).
const Address = 0x74

// Pins is the number of expander lines.
const Pins = 16

var ErrPinRange = errors.New("tca9539: pin out of range")

// Config controls optional behaviour.
type Config struct {
	// Address defaults to 0x74 if zero.
	Address uint16
}

// Device wraps an I2C connection to a TCA9539. Output, direction and
// polarity are shadowed after Configure so updates cost one write
// instead of a read-modify-write on the bus. Not safe for concurrent
// use; the HAL serialises access.
type Device struct {
	bus  drivers.I2C
	addr uint16

	buf      [3]byte // reuse buffer to avoid allocations
	output   uint16
	config   uint16
	polarity uint16
}

// New creates the device object without touching the bus.
func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = Address
	}
	return &Device{bus: bus, addr: addr}
}

// Configure loads the shadow registers from the chip. Call once before
// the pin operations; it doubles as a probe for the chip's presence.
func (d *Device) Configure() error {
	out, err := d.readPair(regOutput0)
	if err != nil {
		return err
	}
	cfg, err := d.readPair(regConfig0)
	if err != nil {
		return err
	}
	pol, err := d.readPair(regPolarity0)
	if err != nil {
		return err
	}
	d.output, d.config, d.polarity = out, cfg, pol
	return nil
}

// DirectionInput releases the pin's driver.
func (d *Device) DirectionInput(pin int) error {
	if pin < 0 || pin >= Pins {
		return ErrPinRange
	}
	d.config |= 1 << pin
	return d.writePair(regConfig0, d.config)
}

// DirectionOutput drives the pin. The output latch is committed before
// the direction flips so the pin never glitches through a stale level.
func (d *Device) DirectionOutput(pin int, level bool) error {
	if pin < 0 || pin >= Pins {
		return ErrPinRange
	}
	if err := d.Set(pin, level); err != nil {
		return err
	}
	d.config &^= 1 << pin
	return d.writePair(regConfig0, d.config)
}

// Set latches the pin's output value.
func (d *Device) Set(pin int, level bool) error {
	if pin < 0 || pin >= Pins {
		return ErrPinRange
	}
	if level {
		d.output |= 1 << pin
	} else {
		d.output &^= 1 << pin
	}
	return d.writePair(regOutput0, d.output)
}

// Get samples the pin. The input register reflects the true pin state
// for outputs as well.
func (d *Device) Get(pin int) (bool, error) {
	if pin < 0 || pin >= Pins {
		return false, ErrPinRange
	}
	in, err := d.readPair(regInput0)
	if err != nil {
		return false, err
	}
	return in&(1<<pin) != 0, nil
}

// SetPolarity inverts the pin's input sense.
func (d *Device) SetPolarity(pin int, invert bool) error {
	if pin < 0 || pin >= Pins {
		return ErrPinRange
	}
	if invert {
		d.polarity |= 1 << pin
	} else {
		d.polarity &^= 1 << pin
	}
	return d.writePair(regPolarity0, d.polarity)
}

// ReadInputs snapshots all 16 pins in one transfer. Reading the inputs
// also releases the chip's INT line, so the interrupt service path
// calls this and diffs against its previous snapshot.
func (d *Device) ReadInputs() (uint16, error) {
	return d.readPair(regInput0)
}

func (d *Device) writePair(reg uint8, val uint16) error {
	d.buf[0] = reg
	d.buf[1] = byte(val)
	d.buf[2] = byte(val >> 8)
	return d.bus.Tx(d.addr, d.buf[:3], nil)
}

func (d *Device) readPair(reg uint8) (uint16, error) {
	d.buf[0] = reg
	if err := d.bus.Tx(d.addr, d.buf[:1], d.buf[1:3]); err != nil {
		return 0, err
	}
	return uint16(d.buf[1]) | uint16(d.buf[2])<<8, nil
}
