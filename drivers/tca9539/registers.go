// Package tca9539 provides a driver for the TCA9539 16-bit I2C GPIO
// expander. The expander carries the carrier board's slow side-band
// signals; its open-drain INT line is wired to a SoC pin, so input
// changes surface through the SoC pin controller's interrupt path and a
// ReadInputs snapshot.
//
// The chip's command register latches between transactions, so Tx may
// join the write and read halves with a repeated start or a stop/start
// pair; both sequencings read the addressed register pair.
package tca9539

// Register pairs. The command register auto-increments between the two
// ports of a pair, so a two-byte transfer covers all 16 pins.
const (
	regInput0    = 0x00 // R
	regInput1    = 0x01 // R
	regOutput0   = 0x02 // R/W
	regOutput1   = 0x03 // R/W
	regPolarity0 = 0x04 // R/W
	regPolarity1 = 0x05 // R/W
	regConfig0   = 0x06 // R/W, 1 = input
	regConfig1   = 0x07 // R/W
)
