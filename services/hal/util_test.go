package hal

import "testing"

func TestWantBool(t *testing.T) {
	cases := []struct {
		src  any
		key  string
		want bool
	}{
		{true, "", true},
		{false, "", false},
		{1, "", true},
		{0, "", false},
		{float64(1), "", true},
		{"on", "", true},
		{"YES", "", true},
		{" true ", "", true},
		{"off", "", false},
		{"0", "", false},
		{map[string]any{"on": true}, "on", true},
		{map[string]any{"on": float64(0)}, "on", false},
		{map[string]any{}, "on", false},
		{nil, "on", false},
	}
	for i, c := range cases {
		if got := wantBool(c.src, c.key); got != c.want {
			t.Errorf("case %d: wantBool(%#v, %q) = %v, want %v", i, c.src, c.key, got, c.want)
		}
	}
}

func TestWantUint32(t *testing.T) {
	cases := []struct {
		src  any
		want uint32
	}{
		{map[string]any{"usec": 120}, 120},
		{map[string]any{"usec": float64(5)}, 5},
		{map[string]any{"usec": -3}, 0},
		{map[string]any{"usec": "120"}, 0},
		{map[string]any{}, 0},
		{"not a map", 0},
	}
	for i, c := range cases {
		if got := wantUint32(c.src, "usec"); got != c.want {
			t.Errorf("case %d: wantUint32(%#v) = %d, want %d", i, c.src, got, c.want)
		}
	}
}

func TestEdgeString(t *testing.T) {
	if s := edgeString(false, true); s != "rising" {
		t.Errorf("rising: got %q", s)
	}
	if s := edgeString(true, false); s != "falling" {
		t.Errorf("falling: got %q", s)
	}
	if s := edgeString(true, true); s != "level" {
		t.Errorf("level: got %q", s)
	}
}

func TestParsePeriodMS(t *testing.T) {
	if ms := parsePeriodMS(map[string]any{"period_ms": float64(250)}); ms != 250 {
		t.Errorf("float64: got %d", ms)
	}
	if ms := parsePeriodMS(map[string]any{"period_ms": 1000}); ms != 1000 {
		t.Errorf("int: got %d", ms)
	}
	if ms := parsePeriodMS(map[string]any{}); ms != 0 {
		t.Errorf("missing: got %d", ms)
	}
	if ms := parsePeriodMS(nil); ms != 0 {
		t.Errorf("nil: got %d", ms)
	}
}

func TestDecodeJSON(t *testing.T) {
	var p SoCPinParams
	if err := decodeJSON([]byte(`{"pin":"PA3","mode":"input","trigger":"falling"}`), &p); err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if p.Pin != "PA3" || p.Trigger != "falling" {
		t.Fatalf("bytes: %+v", p)
	}

	var q ExpPinParams
	src := map[string]any{"expander": "exp0", "pin": 5, "mode": "output", "invert": true}
	if err := decodeJSON(src, &q); err != nil {
		t.Fatalf("map: %v", err)
	}
	if q.Expander != "exp0" || q.Pin != 5 || !q.Invert {
		t.Fatalf("map: %+v", q)
	}
}
