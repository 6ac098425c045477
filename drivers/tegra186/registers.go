// Package tegra186 drives the Tegra186 GPIO controller complex: two
// register windows (main and always-on), seven interrupt banks, 32 ports
// of up to 8 pins each. Every per-pin operation is gated by the pin's
// security capability register, since ports can be owned by another
// execution domain.
package tegra186

const (
	// --- Per-pin register block (one block per pin, pinStride apart) ---

	regEnbConfig  = 0x00 // R/W enable, direction, trigger, debounce, int function
	regDebounce   = 0x04 // R/W debounce threshold, ms, 8 bits
	regInput      = 0x08 // R   sampled input level
	regOutControl = 0x0c // R/W output tri-state
	regOutValue   = 0x10 // R/W driven output level
	regIntClear   = 0x14 // W   interrupt acknowledge

	pinStride = 0x20

	// --- Per-port interrupt status (from the port's register block) ---

	intStatusOffset = 0x100
	intStatusG1     = 0x04

	// --- Security (SCR) blocks ---

	securityStride = 0x08
	regSecurity    = 0x04

	// --- Port block placement within the windows ---

	mainRegBase    = 0x10000
	mainBankStride = 0x1000
	aonRegBase     = 0x1000
	portRegStride  = 0x200
	scrBankStride  = 0x1000
	scrPortStride  = 0x40
)

// ConfigBits is the per-pin enable/config register.
type ConfigBits uint32

const (
	cfgEnable       ConfigBits = 1 << 0 // pin participates in GPIO function
	cfgDirOut       ConfigBits = 1 << 1 // 1 = output
	cfgTriggerLevel ConfigBits = 1 << 4 // polarity: 1 = high/rising
	cfgDebounceFunc ConfigBits = 1 << 5
	cfgIntFunc      ConfigBits = 1 << 6 // interrupt unmasked when set
)

// Trigger-kind field, bits 3:2 of ConfigBits.
const (
	cfgTriggerKindShift            = 2
	cfgTriggerKindMask  ConfigBits = 0x3 << cfgTriggerKindShift

	kindNone       = 0x0
	kindLevel      = 0x1
	kindSingleEdge = 0x2
	kindBothEdges  = 0x3
)

func (b ConfigBits) Has(flag ConfigBits) bool { return b&flag != 0 }

// triggerKind extracts the 2-bit kind field value.
func (b ConfigBits) triggerKind() uint32 {
	return uint32(b&cfgTriggerKindMask) >> cfgTriggerKindShift
}

func triggerKindBits(kind uint32) ConfigBits {
	return ConfigBits(kind) << cfgTriggerKindShift
}

// SecurityBits is the per-pin SCR capability register.
type SecurityBits uint32

const (
	secG1Read  SecurityBits = 1 << 1
	secG1Write SecurityBits = 1 << 9
	secRdEn    SecurityBits = 1 << 27
	secWrEn    SecurityBits = 1 << 28

	// SecFullAccess is the capability set this domain needs to own a pin.
	// Anything less and the pin belongs to someone else.
	SecFullAccess = secRdEn | secWrEn | secG1Read | secG1Write
)

func (b SecurityBits) Has(flag SecurityBits) bool { return b&flag == flag }

// OutControlBits is the per-pin output control register.
type OutControlBits uint32

const (
	outTristate OutControlBits = 1 << 0 // 1 = high impedance
)

// InputBits / OutValueBits hold the level in their low bit.
const (
	levelBit = 1 << 0
)

// IntClearBits: writing the low bit acknowledges a pending interrupt.
const (
	intClearPending = 1 << 0
)

// dbcMask is the hardware width of the debounce threshold field.
const dbcMask = 0xff

// debounceThreshold narrows a millisecond count to the register width,
// matching the hardware's own truncation.
func debounceThreshold(ms uint32) uint32 { return ms & dbcMask }
