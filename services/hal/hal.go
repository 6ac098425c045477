// services/hal/hal.go
package hal

import (
	"context"
	"errors"
	"strings"
	"time"

	"tegracode-go/bus"
	"tegracode-go/drivers/tca9539"
	"tegracode-go/drivers/tegra186"
	"tegracode-go/errcode"
	"tegracode-go/x/mathx"
	"tegracode-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run serves the pin-controller capability tree until ctx is cancelled.
// soc is the initialised controller; buses supplies I2C instances for
// expander chips declared in config. Driver configuration happens on
// the service goroutine; the watcher's handlers and the measurement
// worker only read levels from their own contexts.
func Run(ctx context.Context, conn *bus.Connection, soc *tegra186.Device, buses I2CBusFactory) {
	s := &service{
		conn:       conn,
		soc:        soc,
		buses:      buses,
		worker:     NewMeasurementWorker(WorkerConfig{}),
		watcher:    NewLineWatcher(64, 64),
		devices:    map[string]*devEntry{},
		capToDev:   map[capKey]string{},
		knownBuses: map[string]struct{}{},
		periodMS:   map[string]int{},
		nextDue:    map[string]time.Time{},
	}
	s.worker.Start(ctx)
	s.watcher.Start(ctx)
	s.loop(ctx)
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// chipCapName addresses the controller diagnostic capability.
const chipCapName = "soc"

type capKey struct {
	kind string
	name string
}

type devEntry struct {
	cfg     DevCfg
	adaptor Adaptor       // nil for expander chip entries
	chip    *expanderChip // non-nil for tca9539 entries
	caps    []capKey
	cancel  func() // releases watches and pads the build claimed
}

type service struct {
	conn  *bus.Connection
	soc   *tegra186.Device
	buses I2CBusFactory

	worker  MeasurementWorker
	watcher LineWatcher

	devices    map[string]*devEntry
	capToDev   map[capKey]string
	knownBuses map[string]struct{}

	// Periodic sampling
	periodMS map[string]int
	nextDue  map[string]time.Time

	timer *time.Timer
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "hal"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"hal", "capability", "+", "+", "control", "+"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishChipInfo()
	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		drainTimer(s.timer)
	}

	for {
		if next := s.earliestDue(); next.IsZero() {
			resetTimer(s.timer, time.Hour)
		} else {
			resetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg HALConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.applyConfig(ctx, cfg)
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-s.timer.C:
			now := time.Now()
			for dev, due := range s.nextDue {
				if !now.Before(due) {
					s.submitMeasure(dev, false)
					s.bumpDue(dev, now)
				}
			}

		case r := <-s.worker.Results():
			s.handleResult(r)

		case ev := <-s.watcher.Events():
			s.handleLineEvent(ev)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// applyConfig builds newly configured devices and retires removed ones.
// Chip entries build before the pins that reference them. A failed entry
// is logged and skipped so one bad device cannot take down the rest of
// the board.
func (s *service) applyConfig(ctx context.Context, cfg HALConfig) {
	s.knownBuses = map[string]struct{}{}
	for _, b := range cfg.Buses {
		if b.Type == "i2c" && b.ID != "" {
			s.knownBuses[b.ID] = struct{}{}
		}
	}

	seen := map[string]struct{}{}

	for pass := 0; pass < 2; pass++ {
		for i := range cfg.Devices {
			d := &cfg.Devices[i]
			if (d.Type == "exp_gpio") != (pass == 1) {
				continue
			}
			seen[d.ID] = struct{}{}
			if _, exists := s.devices[d.ID]; exists {
				continue
			}
			build, ok := builders[d.Type]
			if !ok {
				println("[hal] device", d.ID, "has unknown type", d.Type)
				continue
			}
			if err := build(s, ctx, d); err != nil {
				println("[hal] device", d.ID, "failed:", err.Error())
			}
		}
	}

	for devID, ent := range s.devices {
		if _, ok := seen[devID]; ok {
			continue
		}
		s.retire(devID, ent)
	}
}

// install records a built device and publishes its retained capability
// documents. The capability name is the device id.
func (s *service) install(devID string, ent *devEntry) {
	if ent.adaptor != nil {
		for _, ci := range ent.adaptor.Capabilities() {
			key := capKey{kind: ci.Kind, name: devID}
			ent.caps = append(ent.caps, key)
			s.capToDev[key] = devID
			s.pubRet(capTopic(ci.Kind, devID, "info"), ci.Info)
			s.pubRet(capTopic(ci.Kind, devID, "state"),
				map[string]any{"link": "up", "ts_ms": timex.NowMs()})
		}
	}
	s.devices[devID] = ent
}

// retire tears a device down: interrupt watches and pad claims first,
// then the retained capability documents.
func (s *service) retire(devID string, ent *devEntry) {
	if ent.cancel != nil {
		ent.cancel()
	}
	for _, key := range ent.caps {
		s.pubRet(capTopic(key.kind, key.name, "info"), nil)
		s.pubRet(capTopic(key.kind, key.name, "state"),
			map[string]any{"link": "down", "ts_ms": timex.NowMs()})
		delete(s.capToDev, key)
	}
	delete(s.devices, devID)
	delete(s.periodMS, devID)
	delete(s.nextDue, devID)
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

// handleControl resolves hal/capability/<kind>/<name>/control/<method>.
func (s *service) handleControl(msg *bus.Message) {
	if len(msg.Topic) < 6 {
		return
	}
	kind, _ := msg.Topic[2].(string)
	name, _ := msg.Topic[3].(string)
	method, _ := msg.Topic[5].(string)
	if kind == "" || name == "" || method == "" {
		s.replyErr(msg, errcode.InvalidTopic, "capability address must be strings")
		return
	}

	if kind == "gpiochip" {
		s.chipControl(msg, name, method)
		return
	}

	devID, ok := s.capToDev[capKey{kind: kind, name: name}]
	if !ok {
		s.replyErr(msg, errcode.UnknownCapability, kind+"/"+name)
		return
	}

	switch method {
	case "read_now":
		if s.submitMeasure(devID, true) {
			if _, polled := s.periodMS[devID]; polled {
				s.bumpDue(devID, time.Now())
			}
			s.replyOK(msg, nil)
		} else {
			s.replyErr(msg, errcode.Busy, "measure queue full")
		}

	case "set_rate":
		ms := parsePeriodMS(msg.Payload)
		if ms <= 0 {
			s.replyErr(msg, errcode.InvalidParams, "period_ms must be positive")
			return
		}
		s.schedule(devID, ms)
		s.replyOK(msg, map[string]any{"period_ms": s.periodMS[devID]})

	default:
		ent := s.devices[devID]
		if ent == nil || ent.adaptor == nil {
			s.replyErr(msg, errcode.UnknownCapability, kind+"/"+name)
			return
		}
		res, err := ent.adaptor.Control(kind, method, msg.Payload)
		if err != nil {
			s.replyErr(msg, codeOf(err), err.Error())
			return
		}
		s.replyOK(msg, map[string]any{"result": res})
	}
}

// chipControl serves the controller diagnostic capability.
func (s *service) chipControl(msg *bus.Message, name, method string) {
	if name != chipCapName {
		s.replyErr(msg, errcode.UnknownCapability, "gpiochip/"+name)
		return
	}
	switch method {
	case "dump":
		var b strings.Builder
		if err := s.soc.Dump(&b); err != nil {
			s.replyErr(msg, codeOf(err), err.Error())
			return
		}
		s.replyOK(msg, map[string]any{"dump": b.String()})
	default:
		s.replyErr(msg, errcode.Unsupported, method)
	}
}

// -----------------------------------------------------------------------------
// Sampling
// -----------------------------------------------------------------------------

// schedule arms periodic sampling; the first sample is due immediately.
func (s *service) schedule(devID string, ms int) {
	s.periodMS[devID] = mathx.Clamp(ms, 50, 3_600_000)
	s.nextDue[devID] = time.Now()
}

func (s *service) bumpDue(devID string, from time.Time) {
	s.nextDue[devID] = from.Add(time.Duration(s.periodMS[devID]) * time.Millisecond)
}

func (s *service) earliestDue() time.Time {
	var min time.Time
	for _, t := range s.nextDue {
		if !t.IsZero() && (min.IsZero() || t.Before(min)) {
			min = t
		}
	}
	return min
}

func (s *service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok || ent.adaptor == nil {
		return false
	}
	return s.worker.Submit(MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

func (s *service) handleResult(r Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	now := timex.NowMs()

	if r.Err != nil {
		for _, key := range ent.caps {
			s.pubRet(capTopic(key.kind, key.name, "state"),
				map[string]any{"link": "degraded", "error": r.Err.Error(), "ts_ms": now})
		}
		return
	}
	for _, rd := range r.Sample {
		s.conn.Publish(s.conn.NewMessage(capTopic(rd.Kind, r.ID, "value"), rd.Payload, false))
		s.pubRet(capTopic(rd.Kind, r.ID, "state"), map[string]any{"link": "up", "ts_ms": now})
	}
}

// -----------------------------------------------------------------------------
// Interrupt events
// -----------------------------------------------------------------------------

// handleLineEvent fans one dispatched interrupt out to the bus. A SoC
// pin watch publishes directly; an expander chip watch means INT fired,
// so the inputs are re-read and diffed here.
func (s *service) handleLineEvent(ev LineEvent) {
	ent, ok := s.devices[ev.Dev]
	if !ok {
		return
	}
	if ent.chip != nil {
		s.fanOutExpander(ent.chip, ev.TS)
		return
	}
	s.publishPinEvent("gpio", ev.Dev, ev.Level, ev.Prev, ev.TS)
}

func (s *service) fanOutExpander(chip *expanderChip, ts time.Time) {
	changes, err := chip.Resample()
	if err != nil {
		println("[hal] expander", chip.id, "resample failed:", err.Error())
		return
	}
	for _, ch := range changes {
		ent, ok := s.devices[ch.Dev]
		if !ok {
			continue
		}
		invert := false
		if pa, ok := ent.adaptor.(*expPinAdaptor); ok {
			invert = pa.params.Invert
		}
		lvl := ch.Level != invert
		s.publishPinEvent("exp_gpio", ch.Dev, lvl, !lvl, ts)
	}
}

func (s *service) publishPinEvent(kind, name string, level, prev bool, ts time.Time) {
	ms := ts.UnixMilli()
	s.conn.Publish(s.conn.NewMessage(
		capTopic(kind, name, "event"),
		map[string]any{
			"edge":  edgeString(prev, level),
			"level": boolToInt(level),
			"ts_ms": ms,
		},
		false,
	))
	s.pubRet(capTopic(kind, name, "state"),
		map[string]any{"link": "up", "level": boolToInt(level), "ts_ms": ms})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *service) publishChipInfo() {
	s.pubRet(capTopic("gpiochip", chipCapName, "info"), map[string]any{
		"driver":         "tegra186",
		"ports":          tegra186.MaxPorts,
		"pins":           tegra186.TotalPins,
		"controllers":    tegra186.NumControllers,
		"schema_version": 1,
	})
	s.pubRet(capTopic("gpiochip", chipCapName, "state"),
		map[string]any{"link": "up", "ts_ms": timex.NowMs()})
}

func (s *service) publishState(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"hal", "state"}, payload, true))
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, code errcode.Code, detail string) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, map[string]any{"ok": false, "error": string(code), "detail": detail}, false)
}

func capTopic(kind, name string, rest ...any) bus.Topic {
	base := bus.Topic{"hal", "capability", kind, name}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

// codeOf maps driver sentinels onto bus error codes for replies.
func codeOf(err error) errcode.Code {
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, tegra186.ErrPinRange), errors.Is(err, tca9539.ErrPinRange):
		return errcode.UnknownPin
	case errors.Is(err, tegra186.ErrPinInaccessible):
		return errcode.PinInaccessible
	case errors.Is(err, tegra186.ErrInvalidTrigger):
		return errcode.InvalidParams
	case errors.Is(err, tegra186.ErrNoWakeSlot):
		return errcode.Unsupported
	case errors.Is(err, ErrUnsupported):
		return errcode.Unsupported
	case errors.Is(err, ErrNotReady):
		return errcode.Busy
	default:
		return errcode.Of(err)
	}
}
