package hal

// Bus-delivered JSON config structures.

type HALConfig struct {
	Version int      `json:"version"`
	Buses   []BusCfg `json:"buses"`
	Devices []DevCfg `json:"devices"`
}

type BusCfg struct {
	ID     string `json:"id"`   // "i2c0"
	Type   string `json:"type"` // "i2c"
	Params struct {
		FreqHz int `json:"freq_hz"`
	} `json:"params"`
}

type DevCfg struct {
	ID     string    `json:"id"`   // capability name, e.g. "pwr_en"
	Type   string    `json:"type"` // "soc_gpio" | "tca9539" | "exp_gpio"
	BusRef DevBusRef `json:"bus_ref"`
	Params any       `json:"params,omitempty"` // device-specific shape; may be a map or struct
}

type DevBusRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// SoCPinParams configures one pin of the SoC pin controller.
type SoCPinParams struct {
	Pin        string `json:"pin"`  // pad name, "PA6" style
	Mode       string `json:"mode"` // "input" | "output"
	Initial    *bool  `json:"initial,omitempty"`
	Invert     bool   `json:"invert,omitempty"`
	Trigger    string `json:"trigger,omitempty"`     // "rising","falling","both","level-high","level-low"
	DebounceUS uint32 `json:"debounce_us,omitempty"` // hardware debounce window
	Wake       bool   `json:"wake,omitempty"`        // arm the pin's wake slot for the trigger
	PollMS     int    `json:"poll_ms,omitempty"`     // periodic sampling instead of (or as well as) IRQ
}

// ExpanderParams configures one I/O expander chip.
type ExpanderParams struct {
	Addr   uint16 `json:"addr,omitempty"`    // 7-bit address; zero selects the part's base
	IntPin string `json:"int_pin,omitempty"` // SoC pad the INT line is wired to
}

// ExpPinParams configures one pin on a declared expander.
type ExpPinParams struct {
	Expander string `json:"expander"` // device id of the tca9539 entry
	Pin      int    `json:"pin"`      // 0..15
	Mode     string `json:"mode"`     // "input" | "output"
	Initial  *bool  `json:"initial,omitempty"`
	Invert   bool   `json:"invert,omitempty"`
	PollMS   int    `json:"poll_ms,omitempty"`
}
