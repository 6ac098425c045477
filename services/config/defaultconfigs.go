package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// One JSON document per board profile; publishConfig splits it into
// per-service retained messages. Key: board id (the value placed in
// ctx under CtxBoardKey). Val: raw JSON bytes for that board.
// -----------------------------------------------------------------------------

// p3310 carrier: SoC pins for the front panel plus a TCA9539 expander
// on i2c0 for the slot control signals. Expander INT chains onto PN1.
const cfgP3310 = `{
  "hal": {
    "version": 1,
    "buses": [
      {"id": "i2c0", "type": "i2c", "params": {"freq_hz": 400000}}
    ],
    "devices": [
      {"id": "power_btn", "type": "soc_gpio",
       "params": {"pin": "PA6", "mode": "input", "trigger": "falling",
                  "debounce_us": 5000, "wake": true}},
      {"id": "pwr_led", "type": "soc_gpio",
       "params": {"pin": "PI4", "mode": "output", "initial": true}},
      {"id": "force_recovery", "type": "soc_gpio",
       "params": {"pin": "PX2", "mode": "input", "trigger": "both",
                  "debounce_us": 1000}},
      {"id": "exp0", "type": "tca9539",
       "bus_ref": {"id": "i2c0", "type": "i2c"},
       "params": {"addr": 116, "int_pin": "PN1"}},
      {"id": "m2_reset", "type": "exp_gpio",
       "params": {"expander": "exp0", "pin": 0, "mode": "output", "initial": true}},
      {"id": "lid_switch", "type": "exp_gpio",
       "params": {"expander": "exp0", "pin": 12, "mode": "input", "invert": true}}
    ]
  },
  "heartbeat": {
    "interval": 2
  },
  "console": {
    "listen": "127.0.0.1:7700"
  }
}`

// sim profile for host demos: a couple of SoC pins, no expander.
const cfgSim = `{
  "hal": {
    "version": 1,
    "devices": [
      {"id": "led0", "type": "soc_gpio",
       "params": {"pin": "PA3", "mode": "output"}},
      {"id": "btn0", "type": "soc_gpio",
       "params": {"pin": "PX2", "mode": "input", "trigger": "both", "poll_ms": 500}}
    ]
  },
  "heartbeat": {
    "interval": 1
  },
  "console": {
    "listen": "127.0.0.1:7700"
  }
}`

var embeddedConfigs = map[string][]byte{
	"p3310": []byte(cfgP3310),
	"sim":   []byte(cfgSim),
}
