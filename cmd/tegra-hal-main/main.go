// cmd/tegra-hal-main/main.go
//
// Full service stack over the simulated pin controller: the same bus,
// config, heartbeat, HAL and console wiring as the on-target binary,
// with the register windows backed by RAM. Handy for driving the
// control surface (nc 127.0.0.1:7700) without hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tinygo.org/x/drivers"

	"tegracode-go/bus"
	"tegracode-go/drivers/tegra186"
	"tegracode-go/irqline"
	"tegracode-go/services/config"
	"tegracode-go/services/console"
	"tegracode-go/services/hal"
	"tegracode-go/services/heartbeat"
)

// noBuses is the bus factory for a board with no expander bus.
type noBuses struct{}

func (noBuses) ByID(string) (drivers.I2C, bool) { return nil, false }

func topicString(t bus.Topic) string {
	parts := make([]string, len(t))
	for i, tok := range t {
		parts[i] = fmt.Sprint(tok)
	}
	return strings.Join(parts, "/")
}

func main() {
	board := flag.String("board", "sim", "embedded config profile to publish")
	verbose := flag.Bool("v", false, "log every hal bus message")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	println("[main] bringing up the simulated pin controller")
	sim := tegra186.NewSim()
	sim.GrantAll()
	dev, err := tegra186.New(tegra186.Config{
		Windows:  sim.Windows(),
		BankIRQs: sim.BankIRQs(),
		Lines:    irqline.NewRegistry(),
	})
	if err != nil {
		println("[main]", err.Error())
		os.Exit(1)
	}
	defer dev.Close()

	b := bus.NewBus(128)

	if *verbose {
		mon := b.NewConnection("monitor").Subscribe(bus.T("hal", "#"))
		go func() {
			for m := range mon.Channel() {
				println("[monitor] <-", topicString(m.Topic))
			}
		}()
	}

	println("[main] starting services, board profile:", *board)
	go hal.Run(ctx, b.NewConnection("hal"), dev, noBuses{})
	if err := (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("[main]", err.Error())
		os.Exit(1)
	}
	cfgCtx := context.WithValue(ctx, config.CtxBoardKey, *board)
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	// Blocks until the context is cancelled.
	console.Start(ctx, b.NewConnection("console"))
	println("[main] shutdown")
}
