package tegra186

import "fmt"

// Window is one mapped register aperture. Addresses are byte offsets
// from the window base; accesses are 32-bit and must be 4-aligned.
// Implementations panic on out-of-range or misaligned access, the same
// way a bad physical address would fault.
type Window interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
	Size() uint32
}

// MemWindow is a RAM-backed Window. It is the register file used by the
// simulator and by tests; platform code replaces it with a /dev/mem
// mapping on real hardware.
type MemWindow struct {
	words []uint32
}

// NewMemWindow allocates a zeroed window of size bytes, rounded up to a
// whole word.
func NewMemWindow(size uint32) *MemWindow {
	return &MemWindow{words: make([]uint32, (size+3)/4)}
}

func (w *MemWindow) check(addr uint32) uint32 {
	if addr%4 != 0 {
		panic(fmt.Sprintf("gpio window: misaligned access at %#x", addr))
	}
	i := addr / 4
	if i >= uint32(len(w.words)) {
		panic(fmt.Sprintf("gpio window: access at %#x beyond %#x", addr, w.Size()))
	}
	return i
}

func (w *MemWindow) Read32(addr uint32) uint32 {
	return w.words[w.check(addr)]
}

func (w *MemWindow) Write32(addr uint32, val uint32) {
	w.words[w.check(addr)] = val
}

func (w *MemWindow) Size() uint32 {
	return uint32(len(w.words)) * 4
}
