//go:build linux

package i2cdev

import (
	"strings"
	"testing"
)

func TestOpenMissingAdapter(t *testing.T) {
	if _, err := Open("/dev/i2c-does-not-exist"); err == nil {
		t.Fatal("missing adapter accepted")
	}
}

func TestTxRejectsBadAddress(t *testing.T) {
	b := &Bus{fd: -1, path: "/dev/i2c-test"}
	if err := b.Tx(0x80, []byte{0}, nil); err == nil {
		t.Error("address beyond 7 bits accepted")
	}
}

func TestTxAfterClose(t *testing.T) {
	b := &Bus{fd: -1, path: "/dev/i2c-test"}
	if err := b.Tx(0x74, []byte{0}, nil); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Tx on a closed bus = %v, want closed error", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on a closed bus = %v", err)
	}
}
