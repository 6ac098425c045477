//go:build linux

// On-target entrypoint. Locates the pin controller apertures in the
// flattened device tree, maps them through /dev/mem, opens the expander
// I2C bus and runs the full service stack: config, HAL, heartbeat and
// the TCP console.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tinygo.org/x/drivers"

	"tegracode-go/bus"
	"tegracode-go/drivers/tegra186"
	"tegracode-go/irqline"
	"tegracode-go/platform/devmem"
	"tegracode-go/platform/dtb"
	"tegracode-go/platform/i2cdev"
	"tegracode-go/services/config"
	"tegracode-go/services/console"
	"tegracode-go/services/hal"
	"tegracode-go/services/heartbeat"
)

const (
	compatMain = "nvidia,tegra186-gpio"
	compatAON  = "nvidia,tegra186-gpio-aon"
)

// tickerBank adapts the poll loop to the driver's bank interrupt
// contract. Userspace cannot take the chained hardware interrupt, so a
// ticker fires every bank instead; the demultiplexer only acts on
// latched status bits, so a fire with nothing pending does no work.
type tickerBank struct {
	mu      sync.Mutex
	handler func()
}

func (b *tickerBank) Install(h func()) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *tickerBank) Enter() {}
func (b *tickerBank) Exit()  {}

func (b *tickerBank) fire() {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h()
	}
}

func pollBanks(ctx context.Context, banks []*tickerBank, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			for _, b := range banks {
				b.fire()
			}
		}
	}
}

// busTable maps the bus ids config declares to opened host buses.
type busTable map[string]drivers.I2C

func (t busTable) ByID(id string) (drivers.I2C, bool) {
	b, ok := t[id]
	return b, ok
}

func fatal(err error) {
	println("[main]", err.Error())
	os.Exit(1)
}

func main() {
	board := flag.String("board", "p3310", "embedded config profile to publish")
	dtbPath := flag.String("dtb", dtb.DefaultPath, "device tree root")
	memPath := flag.String("mem", "/dev/mem", "physical memory device")
	i2cPath := flag.String("i2c0", "/dev/i2c-0", "host device behind bus id i2c0, empty to disable")
	poll := flag.Duration("poll", 10*time.Millisecond, "bank interrupt poll interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := dtb.Load(*dtbPath)
	if err != nil {
		fatal(err)
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
			fatal(fmt.Errorf("no enabled %q node under %s", sp.compat, *dtbPath))
		}
		regs := nodes[0].Reg()
		if len(regs) == 0 {
			fatal(fmt.Errorf("%q node carries no reg property", sp.compat))
		}
		win, err := devmem.Map(*memPath, regs[0].Addr, sizes[sp.window])
		if err != nil {
			fatal(err)
		}
		defer win.Close()
		windows[sp.window] = win
		println("[main] mapped", sp.compat, "at", fmt.Sprintf("%#x", regs[0].Addr))
	}

	banks := make([]*tickerBank, tegra186.NumControllers)
	irqs := make([]tegra186.BankIRQ, tegra186.NumControllers)
	for i := range banks {
		banks[i] = &tickerBank{}
		irqs[i] = banks[i]
	}

	dev, err := tegra186.New(tegra186.Config{
		Windows:  windows,
		BankIRQs: irqs,
		Lines:    irqline.NewRegistry(),
	})
	if err != nil {
		fatal(err)
	}
	defer dev.Close()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		pollBanks(ctx, banks, *poll)
	}()

	buses := busTable{}
	if *i2cPath != "" {
		i2c, err := i2cdev.Open(*i2cPath)
		if err != nil {
			// Expander devices on this bus will fail to build and be
			// skipped; the SoC pins still come up.
			println("[main] i2c0 unavailable:", err.Error())
		} else {
			defer i2c.Close()
			buses["i2c0"] = i2c
		}
	}

	b := bus.NewBus(128)

	println("[main] starting services, board profile:", *board)
	go hal.Run(ctx, b.NewConnection("hal"), dev, buses)
	if err := (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		fatal(err)
	}
	cfgCtx := context.WithValue(ctx, config.CtxBoardKey, *board)
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	// Blocks until the context is cancelled.
	console.Start(ctx, b.NewConnection("console"))
	<-pollDone
	println("[main] shutdown")
}
