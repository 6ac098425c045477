//go:build linux

// Package i2cdev adapts a Linux /dev/i2c-N adapter to the drivers.I2C
// transaction interface.
package i2cdev

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// I2C_SLAVE from <linux/i2c-dev.h>; x/sys does not carry the i2c-dev
// ioctl numbers.
const i2cSlave = 0x0703

// Bus is one open /dev/i2c-N adapter. Tx issues the write half and the
// read half as separate bus transactions; register-pointer devices like
// the TCA9539 keep their pointer across the intervening STOP.
type Bus struct {
	mu   sync.Mutex
	fd   int
	path string
	addr uint16 // last programmed slave address
}

// Open opens the adapter at path, e.g. "/dev/i2c-1".
func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("i2cdev: open %s: %w", path, err)
	}
	return &Bus{fd: fd, path: path, addr: 0xffff}, nil
}

// Tx writes w to addr, then reads len(r) bytes back. Either half may be
// empty.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("i2cdev: bad address %#x", addr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return fmt.Errorf("i2cdev: %s is closed", b.path)
	}
	if addr != b.addr {
		if err := unix.IoctlSetInt(b.fd, i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("i2cdev: select %#x on %s: %w", addr, b.path, err)
		}
		b.addr = addr
	}
	if len(w) > 0 {
		n, err := unix.Write(b.fd, w)
		if err != nil {
			return fmt.Errorf("i2cdev: write %s: %w", b.path, err)
		}
		if n != len(w) {
			return fmt.Errorf("i2cdev: short write on %s: %d of %d", b.path, n, len(w))
		}
	}
	if len(r) > 0 {
		n, err := unix.Read(b.fd, r)
		if err != nil {
			return fmt.Errorf("i2cdev: read %s: %w", b.path, err)
		}
		if n != len(r) {
			return fmt.Errorf("i2cdev: short read on %s: %d of %d", b.path, n, len(r))
		}
	}
	return nil
}

// Close releases the adapter. Calls after Close fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}
