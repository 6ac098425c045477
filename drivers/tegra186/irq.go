package tegra186

import "tegracode-go/irqline"

// Trigger selects what edge or level latches a pin's interrupt.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerRising
	TriggerFalling
	TriggerBoth
	TriggerHigh
	TriggerLow
)

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerRising:
		return "rising"
	case TriggerFalling:
		return "falling"
	case TriggerBoth:
		return "both"
	case TriggerHigh:
		return "level-high"
	case TriggerLow:
		return "level-low"
	}
	return "invalid"
}

// ParseTrigger maps the String form back to a Trigger.
func ParseTrigger(s string) (Trigger, error) {
	switch s {
	case "none":
		return TriggerNone, nil
	case "rising":
		return TriggerRising, nil
	case "falling":
		return TriggerFalling, nil
	case "both":
		return TriggerBoth, nil
	case "level-high":
		return TriggerHigh, nil
	case "level-low":
		return TriggerLow, nil
	}
	return TriggerNone, ErrInvalidTrigger
}

// SetTriggerType programs the pin's trigger kind and polarity, switches
// the line to the matching flow discipline, and forwards the trigger to
// the wake controller when the pin has a wake slot. TriggerNone and
// unknown values are rejected before any register is written; a line is
// silenced with Mask, not by reprogramming its trigger.
func (d *Device) SetTriggerType(id int, t Trigger) error {
	if err := d.guard(id); err != nil {
		return err
	}

	var set ConfigBits
	var disc irqline.Discipline
	switch t {
	case TriggerRising:
		set = triggerKindBits(kindSingleEdge) | cfgTriggerLevel
		disc = irqline.Edge
	case TriggerFalling:
		set = triggerKindBits(kindSingleEdge)
		disc = irqline.Edge
	case TriggerBoth:
		set = triggerKindBits(kindBothEdges)
		disc = irqline.Edge
	case TriggerHigh:
		set = triggerKindBits(kindLevel) | cfgTriggerLevel
		disc = irqline.Level
	case TriggerLow:
		set = triggerKindBits(kindLevel)
		disc = irqline.Level
	default:
		return ErrInvalidTrigger
	}

	cur := ConfigBits(d.readReg(id, regEnbConfig))
	cur &^= cfgTriggerKindMask | cfgTriggerLevel
	d.writeReg(id, regEnbConfig, uint32(cur|set|cfgEnable))
	d.lines[id].SetDiscipline(disc)

	if slot, ok := wakeSlotForPin(id); ok && d.wake != nil {
		return d.wake.SetWakeType(slot, t)
	}
	return nil
}

// Mask stops the pin from raising its bank interrupt. Masking an
// already masked pin is harmless.
func (d *Device) Mask(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.maskLine(id)
	return nil
}

// Unmask lets the pin interrupt again. The trigger configuration is
// untouched.
func (d *Device) Unmask(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.unmaskLine(id)
	return nil
}

// Ack retires the pin's latched interrupt.
func (d *Device) Ack(id int) error {
	if err := d.guard(id); err != nil {
		return err
	}
	d.ackLine(id)
	return nil
}

// SetWake arms or disarms the pin's wake slot.
func (d *Device) SetWake(id int, on bool) error {
	if err := d.guard(id); err != nil {
		return err
	}
	slot, ok := wakeSlotForPin(id)
	if !ok || d.wake == nil {
		return ErrNoWakeSlot
	}
	return d.wake.SetWakeEnabled(slot, on)
}

// The unexported line operations are the ones the dispatch path uses.
// They run with interrupts in flight, so instead of returning errors
// they fall silent on pins the capability gate rules out.

func (d *Device) maskLine(id int) {
	if !d.Accessible(id) {
		return
	}
	d.updateConfig(id, 0, cfgIntFunc)
}

func (d *Device) unmaskLine(id int) {
	if !d.Accessible(id) {
		return
	}
	d.updateConfig(id, cfgIntFunc, 0)
}

func (d *Device) ackLine(id int) {
	if !d.Accessible(id) {
		return
	}
	d.writeReg(id, regIntClear, intClearPending)
}

// lineChip adapts the Device to the line registry's chip operations.
type lineChip struct {
	dev *Device
}

func (c *lineChip) Ack(hw int)    { c.dev.ackLine(hw) }
func (c *lineChip) Mask(hw int)   { c.dev.maskLine(hw) }
func (c *lineChip) Unmask(hw int) { c.dev.unmaskLine(hw) }

// demux drains one bank. The bank decodes up to eight port slots; the
// slot map is rebuilt from the topology on every invocation rather than
// cached, so a stale map can never route a pin to the wrong line. Ports
// are walked in slot order and pins in bit order, and the parent
// interrupt is bracketed for the duration.
func (d *Device) demux(b *bank) {
	b.irq.Enter()
	defer b.irq.Exit()

	var slots [portsPerController]int
	for i := range slots {
		slots[i] = -1
	}
	for p := range ports {
		if ports[p].present && ports[p].controller == b.index {
			slots[ports[p].index] = p
		}
	}

	for _, p := range slots {
		if p < 0 {
			continue
		}
		w, addr := portStatusAddr(p)
		pending := d.windows[w].Read32(addr)
		for bit := 0; bit < PinsPerPort; bit++ {
			if pending&(1<<bit) != 0 {
				d.lines[PinID(p, bit)].Dispatch()
			}
		}
	}
}
