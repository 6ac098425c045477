//go:build linux

package devmem

import (
	"os"
	"path/filepath"
	"testing"

	"tegracode-go/drivers/tegra186"
)

var _ tegra186.Window = (*Window)(nil)

func backingFile(t *testing.T, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regs")
	if err := os.WriteFile(path, make([]byte, pages*os.Getpagesize()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMapReadWrite(t *testing.T) {
	path := backingFile(t, 3)
	page := uint64(os.Getpagesize())

	// Aperture starting off the page boundary exercises the lead-in.
	w, err := Map(path, page+0x10, 0x100)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer w.Close()

	if got := w.Size(); got != 0x100 {
		t.Fatalf("Size = %#x, want 0x100", got)
	}
	if got := w.Read32(0x20); got != 0 {
		t.Fatalf("fresh aperture reads %#x", got)
	}
	w.Write32(0x20, 0xdeadbeef)
	if got := w.Read32(0x20); got != 0xdeadbeef {
		t.Fatalf("readback = %#x", got)
	}

	// A second window over the same physical range sees the store.
	w2, err := Map(path, page+0x10, 0x100)
	if err != nil {
		t.Fatalf("second Map: %v", err)
	}
	defer w2.Close()
	if got := w2.Read32(0x20); got != 0xdeadbeef {
		t.Fatalf("shared mapping reads %#x", got)
	}
	// Offsets are relative to phys, not to the page.
	if got := w2.Read32(0x24); got != 0 {
		t.Fatalf("neighbour word = %#x, want 0", got)
	}
}

func TestMapRejectsBadConfig(t *testing.T) {
	path := backingFile(t, 1)
	if _, err := Map(path, 0, 0); err == nil {
		t.Error("empty aperture accepted")
	}
	if _, err := Map(filepath.Join(t.TempDir(), "missing"), 0, 0x100); err == nil {
		t.Error("missing device accepted")
	}
}

func TestAccessChecks(t *testing.T) {
	path := backingFile(t, 1)
	w, err := Map(path, 0, 0x40)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer w.Close()

	expectPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		f()
	}
	expectPanic("misaligned read", func() { w.Read32(2) })
	expectPanic("out-of-range read", func() { w.Read32(0x40) })
	expectPanic("out-of-range write", func() { w.Write32(0x44, 1) })
}
