package tegra186

import (
	"errors"
	"testing"

	"tegracode-go/irqline"
)

type regWrite struct {
	addr uint32
	val  uint32
}

// recordingWindow keeps the write stream so tests can assert ordering.
type recordingWindow struct {
	*MemWindow
	writes []regWrite
}

func (w *recordingWindow) Write32(addr uint32, val uint32) {
	w.writes = append(w.writes, regWrite{addr, val})
	w.MemWindow.Write32(addr, val)
}

func TestDirectionOutputCommitsValueFirst(t *testing.T) {
	windows := newWindows()
	grantAll(windows)
	rec := &recordingWindow{MemWindow: windows[WindowMain]}

	cfg := Config{Lines: irqline.NewRegistry()}
	cfg.Windows = []Window{rec, windows[WindowAON]}
	for i := 0; i < NumControllers; i++ {
		cfg.BankIRQs = append(cfg.BankIRQs, &fakeBankIRQ{})
	}
	dev, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pin, _ := ParsePinName("PA3")
	rec.writes = nil
	if err := dev.DirectionOutput(pin, true); err != nil {
		t.Fatalf("DirectionOutput: %v", err)
	}

	_, valAddr := translate(pin, regOutValue)
	_, ctlAddr := translate(pin, regOutControl)
	_, cfgAddr := translate(pin, regEnbConfig)
	seq := make(map[uint32]int)
	for i, wr := range rec.writes {
		if _, dup := seq[wr.addr]; !dup {
			seq[wr.addr] = i
		}
	}
	for _, addr := range []uint32{valAddr, ctlAddr, cfgAddr} {
		if _, ok := seq[addr]; !ok {
			t.Fatalf("no write to %#x in %v", addr, rec.writes)
		}
	}
	if !(seq[valAddr] < seq[ctlAddr] && seq[ctlAddr] < seq[cfgAddr]) {
		t.Errorf("write order value=%d control=%d config=%d, want value before control before config",
			seq[valAddr], seq[ctlAddr], seq[cfgAddr])
	}
	if dev.readReg(pin, regOutControl)&uint32(outTristate) != 0 {
		t.Error("pin left tri-stated after DirectionOutput")
	}
}

func TestDirectionAndReadback(t *testing.T) {
	r := newTestRig(t)
	pin := r.pin(t, "PB2")

	if got := r.dev.Direction(pin); got != DirInput {
		t.Fatalf("fresh pin direction = %v", got)
	}

	if err := r.dev.DirectionOutput(pin, true); err != nil {
		t.Fatalf("DirectionOutput: %v", err)
	}
	if got := r.dev.Direction(pin); got != DirOutput {
		t.Fatalf("direction after DirectionOutput = %v", got)
	}
	// Outputs read back the driven value, not the pad input.
	if !r.dev.Get(pin) {
		t.Error("output readback low, want high")
	}
	if err := r.dev.Set(pin, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r.dev.Get(pin) {
		t.Error("output readback high after Set(false)")
	}

	if err := r.dev.DirectionInput(pin); err != nil {
		t.Fatalf("DirectionInput: %v", err)
	}
	if got := r.dev.Direction(pin); got != DirInput {
		t.Fatalf("direction after DirectionInput = %v", got)
	}
	if r.dev.readReg(pin, regOutControl)&uint32(outTristate) != 0 {
		t.Error("DirectionInput disturbed the output-control register")
	}

	// Now the pad input drives the readback.
	w, addr := translate(pin, regInput)
	r.windows[w].Write32(addr, levelBit)
	if !r.dev.Get(pin) {
		t.Error("input readback low, want high")
	}
	r.windows[w].Write32(addr, 0)
	if r.dev.Get(pin) {
		t.Error("input readback high, want low")
	}
}

func TestSetCommitsLatchAndClearsTristate(t *testing.T) {
	r := newTestRig(t)
	pin := r.pin(t, "PL5")

	// Park the driver in tri-state, then Set must write the latch and
	// un-float the pad without touching the direction.
	w, addr := translate(pin, regOutControl)
	r.windows[w].Write32(addr, uint32(outTristate))

	if err := r.dev.Set(pin, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r.dev.readReg(pin, regOutValue)&levelBit == 0 {
		t.Error("output latch not written")
	}
	if r.dev.readReg(pin, regOutControl)&uint32(outTristate) != 0 {
		t.Error("pin left tri-stated after Set")
	}
	if got := r.dev.Direction(pin); got != DirInput {
		t.Errorf("Set changed the direction to %v", got)
	}
	// While configured as an input, readback still follows the pad.
	if r.dev.Get(pin) {
		t.Error("Get follows the output latch while pin is an input")
	}
}

func TestEnableDisable(t *testing.T) {
	r := newTestRig(t)
	pin := r.pin(t, "PQ1")
	if err := r.dev.Enable(pin); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !r.cfg(t, "PQ1").Has(cfgEnable) {
		t.Error("enable bit clear after Enable")
	}
	if err := r.dev.Disable(pin); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if r.cfg(t, "PQ1").Has(cfgEnable) {
		t.Error("enable bit set after Disable")
	}
}

func TestDebounceThresholdRounding(t *testing.T) {
	r := newTestRig(t)
	pin := r.pin(t, "PX6")

	cases := []struct {
		usec uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{999, 1},
		{1000, 1},
		{1001, 2},
		{2000, 2},
		{255000, 255},
		// The threshold register is eight bits wide; longer intervals
		// wrap the way the hardware would truncate them.
		{256000, 0},
		{1000000, 232},
		// Near the top of the argument range the millisecond ceiling
		// must not wrap in 32 bits before the register truncation.
		{4294966297, 55},
		{4294967295, 56},
	}
	for _, c := range cases {
		if err := r.dev.SetDebounce(pin, c.usec); err != nil {
			t.Fatalf("SetDebounce(%d): %v", c.usec, err)
		}
		if got := r.dev.readReg(pin, regDebounce); got != c.want {
			t.Errorf("SetDebounce(%dus) wrote threshold %d, want %d", c.usec, got, c.want)
		}
	}
	cfg := r.cfg(t, "PX6")
	if !cfg.Has(cfgDebounceFunc) {
		t.Error("debounce function not selected")
	}
	if !cfg.Has(cfgEnable) {
		t.Error("pin not enabled by SetDebounce")
	}
}

func TestMutatorsRejectUnusablePins(t *testing.T) {
	r := newTestRig(t)
	locked := r.grant(t, "PE4", secG1Read|secRdEn) // read caps only
	absent := r.pin(t, "PDD0")
	unwired := r.pin(t, "PK3") // port K wires a single pin

	mutate := []struct {
		name string
		op   func(int) error
	}{
		{"Set", func(id int) error { return r.dev.Set(id, true) }},
		{"DirectionInput", r.dev.DirectionInput},
		{"DirectionOutput", func(id int) error { return r.dev.DirectionOutput(id, false) }},
		{"SetDebounce", func(id int) error { return r.dev.SetDebounce(id, 1000) }},
		{"Enable", r.dev.Enable},
		{"Disable", r.dev.Disable},
		{"Request", r.dev.Request},
		{"Free", r.dev.Free},
	}
	for _, m := range mutate {
		for _, id := range []int{locked, absent, unwired} {
			if err := m.op(id); !errors.Is(err, ErrPinInaccessible) {
				t.Errorf("%s(%s) = %v, want ErrPinInaccessible", m.name, PinName(id), err)
			}
		}
		for _, id := range []int{-1, TotalPins} {
			if err := m.op(id); !errors.Is(err, ErrPinRange) {
				t.Errorf("%s(%d) = %v, want ErrPinRange", m.name, id, err)
			}
		}
	}
	if len(r.pinmux.ops) != 0 {
		t.Errorf("pad controller touched for unusable pins: %v", r.pinmux.ops)
	}
}

func TestQueriesFallSilentOnUnusablePins(t *testing.T) {
	r := newTestRig(t)
	pin := r.pin(t, "PE4")
	if err := r.dev.DirectionOutput(pin, true); err != nil {
		t.Fatalf("DirectionOutput: %v", err)
	}

	// Firmware tightens the gate at runtime; queries must go quiet
	// without erroring rather than report stale state.
	r.grant(t, "PE4", 0)
	if r.dev.Accessible(pin) {
		t.Fatal("pin still accessible after capability revoke")
	}
	if r.dev.Get(pin) {
		t.Error("Get reports a level through a closed gate")
	}
	if got := r.dev.Direction(pin); got != DirInput {
		t.Errorf("Direction through a closed gate = %v, want the quiet default", got)
	}
}

func TestPadControllerFlow(t *testing.T) {
	r := newTestRig(t)
	pin := r.pin(t, "PH1")

	if err := r.dev.Request(pin); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := r.dev.DirectionInput(pin); err != nil {
		t.Fatalf("DirectionInput: %v", err)
	}
	if err := r.dev.Free(pin); err != nil {
		t.Fatalf("Free: %v", err)
	}
	want := []string{"request", "dir-in", "free"}
	if len(r.pinmux.ops) != len(want) {
		t.Fatalf("pad controller ops = %v, want %v", r.pinmux.ops, want)
	}
	for i := range want {
		if r.pinmux.ops[i] != want[i] {
			t.Fatalf("pad controller ops = %v, want %v", r.pinmux.ops, want)
		}
	}

	// A pad controller refusal surfaces to the caller, but the register
	// state already committed stays committed.
	r.pinmux.nextErr = errors.New("pad contended")
	err := r.dev.DirectionOutput(pin, true)
	if err == nil || err.Error() != "pad contended" {
		t.Fatalf("DirectionOutput = %v, want pad controller error", err)
	}
	if !r.cfg(t, "PH1").Has(cfgDirOut) {
		t.Error("direction config rolled back after pad controller refusal")
	}
}
