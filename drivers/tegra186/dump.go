package tegra186

import (
	"fmt"
	"io"
)

// Inspect returns a register view over already-mapped windows without
// constructing the device: no lines are mapped, nothing is quiesced and
// no bank handlers are hooked, so the controller is never written to.
// Only Dump, Accessible and the level getters are usable on the result;
// interrupt operations have no lines to work with.
func Inspect(windows []Window) (*Device, error) {
	if err := validateWindows(windows); err != nil {
		return nil, err
	}
	d := &Device{}
	copy(d.windows[:], windows)
	return d, nil
}

// Dump writes a per-pin register snapshot, one block per port. Pins the
// capability gate rules out are listed but their registers are not
// touched.
func (d *Device) Dump(w io.Writer) error {
	var err error
	pr := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	for p := range ports {
		desc := &ports[p]
		if !desc.present {
			pr("port %s: absent\n", desc.name)
			continue
		}
		pr("port %s (controller %d slot %d, %d pins)\n",
			desc.name, desc.controller, desc.index, desc.pins)
		for pin := 0; pin < desc.pins; pin++ {
			id := PinID(p, pin)
			if !d.Accessible(id) {
				pr("  %-5s locked\n", PinName(id))
				continue
			}
			pr("  %-5s cfg=%08x dbc=%02x in=%d tri=%d out=%d clr=%d\n",
				PinName(id),
				d.readReg(id, regEnbConfig),
				d.readReg(id, regDebounce)&dbcMask,
				d.readReg(id, regInput)&levelBit,
				d.readReg(id, regOutControl)&uint32(outTristate),
				d.readReg(id, regOutValue)&levelBit,
				d.readReg(id, regIntClear)&intClearPending)
		}
	}
	return err
}
