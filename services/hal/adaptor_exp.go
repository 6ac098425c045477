// services/hal/adaptor_exp.go
package hal

import (
	"context"
	"fmt"
	"time"

	"tegracode-go/drivers/tca9539"
	"tegracode-go/drivers/tegra186"
	"tegracode-go/errcode"
	"tegracode-go/x/timex"
)

// expanderChip is the shared state behind every exp_gpio capability on
// one TCA9539. The chip's INT line is wired to a SoC pad; when that
// watch fires, the service calls Resample on its own goroutine, where
// the I2C bus is safe to use.
type expanderChip struct {
	id     string
	dev    *tca9539.Device
	inputs map[int]string // pin -> exp_gpio device id
	last   uint16         // input snapshot from the previous read
}

func newExpanderChip(id string, dev *tca9539.Device) *expanderChip {
	return &expanderChip{id: id, dev: dev, inputs: map[int]string{}}
}

// Prime seeds the change detector with the current input state. Doubles
// as the first INT release after the chip powers up.
func (c *expanderChip) Prime() error {
	cur, err := c.dev.ReadInputs()
	if err != nil {
		return err
	}
	c.last = cur
	return nil
}

// PinChange is one watched-input transition found by Resample.
type PinChange struct {
	Dev   string
	Pin   int
	Level bool // physical level
}

// Resample reads both input ports, releasing INT, and diffs against the
// previous snapshot. Unwatched pins change silently.
func (c *expanderChip) Resample() ([]PinChange, error) {
	cur, err := c.dev.ReadInputs()
	if err != nil {
		return nil, err
	}
	changed := cur ^ c.last
	c.last = cur
	var out []PinChange
	for pin := 0; pin < tca9539.Pins; pin++ {
		if changed&(1<<pin) == 0 {
			continue
		}
		dev, ok := c.inputs[pin]
		if !ok {
			continue
		}
		out = append(out, PinChange{Dev: dev, Pin: pin, Level: cur&(1<<pin) != 0})
	}
	return out, nil
}

func (c *expanderChip) watchInput(pin int, dev string) { c.inputs[pin] = dev }
func (c *expanderChip) forgetInput(pin int)            { delete(c.inputs, pin) }

// expPinAdaptor binds one pin of an expander chip.
type expPinAdaptor struct {
	id     string
	chip   *expanderChip
	pin    int
	params ExpPinParams
}

func NewExpPinAdaptor(id string, chip *expanderChip, p ExpPinParams) Adaptor {
	return &expPinAdaptor{id: id, chip: chip, pin: p.Pin, params: p}
}

func (a *expPinAdaptor) ID() string { return a.id }

func (a *expPinAdaptor) Capabilities() []CapInfo {
	mode := a.params.Mode
	if mode != "output" {
		mode = "input"
	}
	return []CapInfo{{Kind: "exp_gpio", Info: map[string]any{
		"expander":       a.chip.id,
		"pin":            a.pin,
		"mode":           mode,
		"invert":         a.params.Invert,
		"driver":         "tca9539",
		"schema_version": 1,
	}}}
}

func (a *expPinAdaptor) Trigger(context.Context) (time.Duration, error) { return 0, nil }

func (a *expPinAdaptor) Collect(context.Context) (Sample, error) {
	lvl, err := a.chip.dev.Get(a.pin)
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	return Sample{{Kind: "exp_gpio", Payload: map[string]any{"level": boolToInt(lvl != a.params.Invert), "ts_ms": ts}, TsMs: ts}}, nil
}

func (a *expPinAdaptor) Control(kind, method string, payload any) (any, error) {
	if kind != "exp_gpio" {
		return nil, ErrUnsupported
	}
	switch method {
	case "configure_input":
		if err := a.chip.dev.DirectionInput(a.pin); err != nil {
			return nil, err
		}
		a.params.Mode = "input"
		return map[string]any{"mode": "input"}, nil

	case "configure_output":
		init := wantBool(payload, "initial") != a.params.Invert
		if err := a.chip.dev.DirectionOutput(a.pin, init); err != nil {
			return nil, err
		}
		a.params.Mode = "output"
		return map[string]any{"mode": "output"}, nil

	case "set":
		lvl := wantBool(payload, "level")
		if err := a.chip.dev.Set(a.pin, lvl != a.params.Invert); err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(lvl)}, nil

	case "get":
		lvl, err := a.chip.dev.Get(a.pin)
		if err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(lvl != a.params.Invert)}, nil

	case "toggle":
		cur, err := a.chip.dev.Get(a.pin)
		if err != nil {
			return nil, err
		}
		if err := a.chip.dev.Set(a.pin, !cur); err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(!cur != a.params.Invert)}, nil

	case "set_polarity":
		inv := wantBool(payload, "invert")
		if err := a.chip.dev.SetPolarity(a.pin, inv); err != nil {
			return nil, err
		}
		return map[string]any{"polarity_inverted": inv}, nil

	default:
		return nil, ErrUnsupported
	}
}

// buildExpander probes one TCA9539 and hooks its INT pad when wired.
func buildExpander(s *service, ctx context.Context, d *DevCfg) error {
	var p ExpanderParams
	if err := decodeJSON(d.Params, &p); err != nil {
		return err
	}
	if d.BusRef.Type != "i2c" || d.BusRef.ID == "" {
		return fmt.Errorf("hal: expander %s: missing i2c bus_ref", d.ID)
	}
	if _, ok := s.knownBuses[d.BusRef.ID]; !ok {
		return &errcode.E{C: errcode.UnknownBus, Op: "hal.expander", Msg: d.BusRef.ID}
	}
	i2c, ok := s.buses.ByID(d.BusRef.ID)
	if !ok {
		return &errcode.E{C: errcode.UnknownBus, Op: "hal.expander", Msg: d.BusRef.ID}
	}

	dev := tca9539.New(i2c, tca9539.Config{Address: p.Addr})
	if err := dev.Configure(); err != nil {
		return err
	}
	chip := newExpanderChip(d.ID, dev)
	if err := chip.Prime(); err != nil {
		return err
	}

	ent := &devEntry{cfg: *d, chip: chip}

	if p.IntPin != "" {
		pin, err := tegra186.ParsePinName(p.IntPin)
		if err != nil {
			return err
		}
		if err := s.soc.Request(pin); err != nil {
			return err
		}
		fail := func(err error) error {
			_ = s.soc.Free(pin)
			return err
		}
		if err := s.soc.DirectionInput(pin); err != nil {
			return fail(err)
		}
		// INT releases when the inputs are read, so each assertion is a
		// fresh falling edge.
		if err := s.soc.SetTriggerType(pin, tegra186.TriggerFalling); err != nil {
			return fail(err)
		}
		cancelWatch, err := s.watcher.Watch(d.ID, s.soc.Line(pin),
			func() bool { return s.soc.Get(pin) }, false)
		if err != nil {
			return fail(err)
		}
		ent.cancel = func() {
			cancelWatch()
			_ = s.soc.Mask(pin)
			_ = s.soc.Free(pin)
		}
		if err := s.soc.Unmask(pin); err != nil {
			ent.cancel()
			return err
		}
	}

	s.install(d.ID, ent)
	return nil
}

// buildExpPin wires one pin on an already-built expander entry.
func buildExpPin(s *service, ctx context.Context, d *DevCfg) error {
	var p ExpPinParams
	if err := decodeJSON(d.Params, &p); err != nil {
		return err
	}
	ent, ok := s.devices[p.Expander]
	if !ok || ent.chip == nil {
		return fmt.Errorf("hal: exp_gpio %s: unknown expander %q", d.ID, p.Expander)
	}
	chip := ent.chip
	if p.Pin < 0 || p.Pin >= tca9539.Pins {
		return tca9539.ErrPinRange
	}

	if p.Mode == "output" {
		init := p.Invert
		if p.Initial != nil {
			init = *p.Initial != p.Invert
		}
		if err := chip.dev.DirectionOutput(p.Pin, init); err != nil {
			return err
		}
	} else {
		if err := chip.dev.DirectionInput(p.Pin); err != nil {
			return err
		}
		chip.watchInput(p.Pin, d.ID)
	}

	pe := &devEntry{cfg: *d, adaptor: NewExpPinAdaptor(d.ID, chip, p)}
	if p.Mode != "output" {
		pin := p.Pin
		pe.cancel = func() { chip.forgetInput(pin) }
	}
	s.install(d.ID, pe)
	if p.PollMS > 0 {
		s.schedule(d.ID, p.PollMS)
	}
	return nil
}
