//go:build linux

// Package devmem maps physical register apertures through /dev/mem so
// the pin controller driver can run against the real hardware.
package devmem

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Window is a live register aperture: 32-bit accesses at 4-aligned byte
// offsets, panicking on out-of-range addresses the way a bad physical
// address would fault.
type Window struct {
	mapped []byte
	regs   []uint32
}

// Map opens an aperture of size bytes at physical address phys. The
// device is normally /dev/mem; tests can point it at an ordinary file.
func Map(device string, phys uint64, size uint32) (*Window, error) {
	if size < 4 {
		return nil, fmt.Errorf("devmem: aperture of %d bytes at %#x", size, phys)
	}
	f, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: %w", err)
	}
	defer f.Close()

	// The mapping must start on a page; keep the lead-in private to the
	// window and expose offsets relative to phys.
	page := uint64(os.Getpagesize())
	base := phys &^ (page - 1)
	lead := phys - base
	length := int((uint64(size) + lead + page - 1) &^ (page - 1))

	mapped, err := unix.Mmap(int(f.Fd()), int64(base), length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("devmem: mmap %#x+%#x: %w", phys, size, err)
	}
	return &Window{
		mapped: mapped,
		regs:   unsafe.Slice((*uint32)(unsafe.Pointer(&mapped[lead])), size/4),
	}, nil
}

func (w *Window) check(addr uint32) uint32 {
	if addr%4 != 0 {
		panic(fmt.Sprintf("devmem: misaligned access at %#x", addr))
	}
	i := addr / 4
	if i >= uint32(len(w.regs)) {
		panic(fmt.Sprintf("devmem: access at %#x beyond %#x", addr, w.Size()))
	}
	return i
}

func (w *Window) Read32(addr uint32) uint32 {
	return w.regs[w.check(addr)]
}

func (w *Window) Write32(addr uint32, val uint32) {
	w.regs[w.check(addr)] = val
}

func (w *Window) Size() uint32 {
	return uint32(len(w.regs)) * 4
}

// Close unmaps the aperture. The Window must not be touched afterwards.
func (w *Window) Close() error {
	w.regs = nil
	return unix.Munmap(w.mapped)
}
