package tegra186

import "testing"

func TestPinNameRoundTrip(t *testing.T) {
	cases := []struct {
		id   int
		name string
	}{
		{PinID(PortA, 0), "PA0"},
		{PinID(PortA, 6), "PA6"},
		{PinID(PortS, 2), "PS2"},
		{PinID(PortAA, 7), "PAA7"},
		{PinID(PortFF, 4), "PFF4"},
	}
	for _, c := range cases {
		if got := PinName(c.id); got != c.name {
			t.Errorf("PinName(%d) = %q, want %q", c.id, got, c.name)
		}
		id, err := ParsePinName(c.name)
		if err != nil {
			t.Fatalf("ParsePinName(%q): %v", c.name, err)
		}
		if id != c.id {
			t.Errorf("ParsePinName(%q) = %d, want %d", c.name, id, c.id)
		}
	}

	if id, err := ParsePinName(" pff4 "); err != nil || id != PinID(PortFF, 4) {
		t.Errorf("lax parse = %d, %v", id, err)
	}
	if _, err := ParsePinName("AA3"); err != nil {
		t.Errorf("parse without P prefix: %v", err)
	}

	for _, bad := range []string{"", "P", "PA", "PA8", "PA9", "PGG0", "Q5X"} {
		if _, err := ParsePinName(bad); err == nil {
			t.Errorf("ParsePinName(%q) accepted", bad)
		}
	}
}

func TestRegisterPlacement(t *testing.T) {
	cases := []struct {
		pin    string
		reg    uint32
		window int
		addr   uint32
	}{
		// Main window ports sit behind the per-controller blocks.
		{"PA0", regEnbConfig, WindowMain, 0x12000},
		{"PA1", regEnbConfig, WindowMain, 0x12020},
		{"PA0", regOutValue, WindowMain, 0x12010},
		{"PC0", regEnbConfig, WindowMain, 0x13200},
		{"PJ7", regInput, WindowMain, 0x150e8},
		// Always-on ports decode in their own window.
		{"PS0", regEnbConfig, WindowAON, 0x1200},
		{"PFF0", regEnbConfig, WindowAON, 0x1000},
		{"PAA3", regDebounce, WindowAON, 0x1c64},
	}
	for _, c := range cases {
		id, err := ParsePinName(c.pin)
		if err != nil {
			t.Fatalf("ParsePinName(%q): %v", c.pin, err)
		}
		w, addr := translate(id, c.reg)
		if w != c.window || addr != c.addr {
			t.Errorf("translate(%s, %#x) = window %d addr %#x, want window %d addr %#x",
				c.pin, c.reg, w, addr, c.window, c.addr)
		}
	}
}

func TestSecurityPlacement(t *testing.T) {
	cases := []struct {
		pin    string
		window int
		addr   uint32
	}{
		{"PA0", WindowMain, 0x2004},
		{"PA1", WindowMain, 0x200c},
		{"PN0", WindowMain, 0x0004},
		{"PS0", WindowAON, 0x0044},
		{"PS2", WindowAON, 0x0054},
	}
	for _, c := range cases {
		id, err := ParsePinName(c.pin)
		if err != nil {
			t.Fatalf("ParsePinName(%q): %v", c.pin, err)
		}
		w, addr := translateSecurity(id)
		if w != c.window || addr != c.addr {
			t.Errorf("translateSecurity(%s) = window %d addr %#x, want window %d addr %#x",
				c.pin, w, addr, c.window, c.addr)
		}
	}
}

func TestTopologyShape(t *testing.T) {
	for p := range ports {
		d := &ports[p]
		if !d.present {
			if p != PortDD {
				t.Errorf("port %s unexpectedly absent", d.name)
			}
			continue
		}
		if d.controller < 0 || d.controller >= NumControllers {
			t.Errorf("port %s: controller %d out of range", d.name, d.controller)
		}
		if d.index < 0 || d.index >= portsPerController {
			t.Errorf("port %s: slot %d out of range", d.name, d.index)
		}
		if d.pins < 1 || d.pins > PinsPerPort {
			t.Errorf("port %s: %d pins", d.name, d.pins)
		}
		if aon := d.controller == 6; aon != (d.window == WindowAON) {
			t.Errorf("port %s: controller %d in window %d", d.name, d.controller, d.window)
		}
	}

	// No two ports may share a decode slot.
	var seen [NumControllers][portsPerController]string
	for p := range ports {
		d := &ports[p]
		if !d.present {
			continue
		}
		if prev := seen[d.controller][d.index]; prev != "" {
			t.Errorf("ports %s and %s share controller %d slot %d", prev, d.name, d.controller, d.index)
		}
		seen[d.controller][d.index] = d.name
	}

	sizes := RequiredWindowSizes()
	for w, size := range sizes {
		if size == 0 {
			t.Errorf("window %d has no extent", w)
		}
	}
}
