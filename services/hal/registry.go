// services/hal/registry.go
package hal

import "context"

// buildFunc constructs and wires one configured device. Builders run on
// the service goroutine and may touch drivers but not the bus; the
// service publishes the capability documents after a successful build.
type buildFunc func(s *service, ctx context.Context, d *DevCfg) error

// builders routes config device types. exp_gpio entries resolve their
// chip by device id, so applyConfig builds chips before pins.
var builders = map[string]buildFunc{
	"soc_gpio": buildSoCGPIO,
	"tca9539":  buildExpander,
	"exp_gpio": buildExpPin,
}
