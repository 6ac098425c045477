// services/hal/adaptor_soc.go
package hal

import (
	"context"
	"time"

	"tegracode-go/drivers/tegra186"
	"tegracode-go/x/timex"
)

// socGPIOAdaptor binds one pin of the SoC pin controller. Invert flips
// the logical view on the bus; the registers and the trigger always see
// the physical line.
type socGPIOAdaptor struct {
	id     string
	dev    *tegra186.Device
	pin    int
	params SoCPinParams
}

func NewSoCGPIOAdaptor(id string, dev *tegra186.Device, pin int, p SoCPinParams) Adaptor {
	return &socGPIOAdaptor{id: id, dev: dev, pin: pin, params: p}
}

func (a *socGPIOAdaptor) ID() string { return a.id }

func (a *socGPIOAdaptor) Capabilities() []CapInfo {
	mode := a.params.Mode
	if mode != "input" {
		mode = "output"
	}
	info := map[string]any{
		"pin":            tegra186.PinName(a.pin),
		"mode":           mode,
		"invert":         a.params.Invert,
		"driver":         "tegra186",
		"schema_version": 1,
	}
	if a.params.Trigger != "" {
		info["trigger"] = a.params.Trigger
	}
	if a.params.Wake {
		info["wake"] = true
	}
	return []CapInfo{{Kind: "gpio", Info: info}}
}

// Sampling a pin is a single register read, so Trigger has nothing to
// start and Collect never needs a retry.
func (a *socGPIOAdaptor) Trigger(context.Context) (time.Duration, error) { return 0, nil }

func (a *socGPIOAdaptor) Collect(context.Context) (Sample, error) {
	lvl := a.dev.Get(a.pin) != a.params.Invert
	ts := timex.NowMs()
	return Sample{{Kind: "gpio", Payload: map[string]any{"level": boolToInt(lvl), "ts_ms": ts}, TsMs: ts}}, nil
}

func (a *socGPIOAdaptor) Control(kind, method string, payload any) (any, error) {
	if kind != "gpio" {
		return nil, ErrUnsupported
	}
	switch method {
	case "configure_input":
		if err := a.dev.DirectionInput(a.pin); err != nil {
			return nil, err
		}
		a.params.Mode = "input"
		return map[string]any{"mode": "input"}, nil

	case "configure_output":
		init := wantBool(payload, "initial") != a.params.Invert
		if err := a.dev.DirectionOutput(a.pin, init); err != nil {
			return nil, err
		}
		a.params.Mode = "output"
		return map[string]any{"mode": "output"}, nil

	case "set":
		lvl := wantBool(payload, "level")
		if err := a.dev.Set(a.pin, lvl != a.params.Invert); err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(lvl)}, nil

	case "get":
		lvl := a.dev.Get(a.pin) != a.params.Invert
		return map[string]any{"level": boolToInt(lvl)}, nil

	case "toggle":
		next := !a.dev.Get(a.pin)
		if err := a.dev.Set(a.pin, next); err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(next != a.params.Invert)}, nil

	case "set_debounce":
		usec := wantUint32(payload, "usec")
		if err := a.dev.SetDebounce(a.pin, usec); err != nil {
			return nil, err
		}
		return map[string]any{"usec": usec}, nil

	case "set_trigger":
		t, err := tegra186.ParseTrigger(asString(mapFromAny(payload)["trigger"]))
		if err != nil {
			return nil, err
		}
		if err := a.dev.SetTriggerType(a.pin, t); err != nil {
			return nil, err
		}
		a.params.Trigger = t.String()
		return map[string]any{"trigger": t.String()}, nil

	case "set_wake":
		on := wantBool(payload, "on")
		if err := a.dev.SetWake(a.pin, on); err != nil {
			return nil, err
		}
		return map[string]any{"wake": on}, nil

	case "mask":
		if err := a.dev.Mask(a.pin); err != nil {
			return nil, err
		}
		return map[string]any{"masked": true}, nil

	case "unmask":
		if err := a.dev.Unmask(a.pin); err != nil {
			return nil, err
		}
		return map[string]any{"masked": false}, nil

	case "ack":
		if err := a.dev.Ack(a.pin); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, ErrUnsupported
	}
}

// buildSoCGPIO wires one configured SoC pin: pad claim, direction,
// debounce, trigger, interrupt watch, wake. Anything claimed is released
// again if a later step fails.
func buildSoCGPIO(s *service, ctx context.Context, d *DevCfg) error {
	var p SoCPinParams
	if err := decodeJSON(d.Params, &p); err != nil {
		return err
	}
	pin, err := tegra186.ParsePinName(p.Pin)
	if err != nil {
		return err
	}
	if err := s.soc.Request(pin); err != nil {
		return err
	}

	ent := &devEntry{cfg: *d, adaptor: NewSoCGPIOAdaptor(d.ID, s.soc, pin, p)}
	fail := func(err error) error {
		if ent.cancel != nil {
			ent.cancel()
		}
		_ = s.soc.Free(pin)
		return err
	}

	if p.Mode == "input" {
		if err := s.soc.DirectionInput(pin); err != nil {
			return fail(err)
		}
		if p.DebounceUS > 0 {
			if err := s.soc.SetDebounce(pin, p.DebounceUS); err != nil {
				return fail(err)
			}
		}
		if p.Trigger != "" {
			t, err := tegra186.ParseTrigger(p.Trigger)
			if err != nil {
				return fail(err)
			}
			if err := s.soc.SetTriggerType(pin, t); err != nil {
				return fail(err)
			}
			cancelWatch, err := s.watcher.Watch(d.ID, s.soc.Line(pin),
				func() bool { return s.soc.Get(pin) }, p.Invert)
			if err != nil {
				return fail(err)
			}
			ent.cancel = func() {
				cancelWatch()
				_ = s.soc.Mask(pin)
			}
			if err := s.soc.Unmask(pin); err != nil {
				return fail(err)
			}
		}
		if p.Wake {
			if err := s.soc.SetWake(pin, true); err != nil {
				return fail(err)
			}
		}
	} else {
		init := p.Invert
		if p.Initial != nil {
			init = *p.Initial != p.Invert
		}
		if err := s.soc.DirectionOutput(pin, init); err != nil {
			return fail(err)
		}
	}

	release := ent.cancel
	ent.cancel = func() {
		if release != nil {
			release()
		}
		_ = s.soc.Free(pin)
	}

	s.install(d.ID, ent)
	if p.PollMS > 0 {
		s.schedule(d.ID, p.PollMS)
	}
	return nil
}
