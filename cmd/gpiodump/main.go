//go:build linux

// cmd/gpiodump/main.go
//
// Prints a per-pin register snapshot of the whole pin controller
// complex. With -sim it dumps a fresh simulator; otherwise the register
// apertures are located in the flattened device tree and mapped through
// /dev/mem. Inspection never writes to the controller, so it is safe to
// point at a live system.
package main

import (
	"flag"
	"fmt"
	"os"

	"tegracode-go/drivers/tegra186"
	"tegracode-go/platform/devmem"
	"tegracode-go/platform/dtb"
)

const (
	compatMain = "nvidia,tegra186-gpio"
	compatAON  = "nvidia,tegra186-gpio-aon"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "gpiodump:", err)
	os.Exit(1)
}

func main() {
	simMode := flag.Bool("sim", false, "dump a fresh simulator instead of hardware")
	dtbPath := flag.String("dtb", dtb.DefaultPath, "device tree root")
	memPath := flag.String("mem", "/dev/mem", "physical memory device")
	flag.Parse()

	if *simMode {
		sim := tegra186.NewSim()
		sim.GrantAll()
		dev, err := tegra186.Inspect(sim.Windows())
		if err != nil {
			fail(err)
		}
		if err := dev.Dump(os.Stdout); err != nil {
			fail(err)
		}
		return
	}

	root, err := dtb.Load(*dtbPath)
	if err != nil {
		fail(err)
	}

	sizes := tegra186.RequiredWindowSizes()
	windows := make([]tegra186.Window, tegra186.NumWindows)
	for _, sp := range []struct {
		window int
		compat string
	}{
		{tegra186.WindowMain, compatMain},
		{tegra186.WindowAON, compatAON},
	} {
		nodes := dtb.FindCompatible(root, sp.compat)
		if len(nodes) == 0 {
			fail(fmt.Errorf("no enabled %q node under %s", sp.compat, *dtbPath))
		}
		regs := nodes[0].Reg()
		if len(regs) == 0 {
			fail(fmt.Errorf("%q node carries no reg property", sp.compat))
		}
		win, err := devmem.Map(*memPath, regs[0].Addr, sizes[sp.window])
		if err != nil {
			fail(err)
		}
		defer win.Close()
		windows[sp.window] = win
	}

	dev, err := tegra186.Inspect(windows)
	if err != nil {
		fail(err)
	}
	if err := dev.Dump(os.Stdout); err != nil {
		fail(err)
	}
}
