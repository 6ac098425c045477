package tegra186

// Sim models the pin controller complex in memory: register windows
// with reset values, capability gates, input latching and bank
// interrupt routing. It stands in for the real apertures in tests,
// demos and host builds. Drive it from a single goroutine; bank
// handlers run synchronously inside SetInput. Level sources latch when
// the input is written, not continuously.
type Sim struct {
	windows  [NumWindows]*simWindow
	banks    [NumControllers]*SimBank
	intClear [NumWindows]map[uint32]int
}

// simWindow lets the model observe driver writes, so an ack write can
// retire the port status bit the way the hardware does.
type simWindow struct {
	*MemWindow
	sim   *Sim
	index int
}

func (w *simWindow) Write32(addr uint32, val uint32) {
	w.MemWindow.Write32(addr, val)
	w.sim.regWritten(w.index, addr, val)
}

// SimBank is a software bank interrupt. Fire invokes the installed
// handler on the caller's goroutine.
type SimBank struct {
	handler func()
	fired   int
}

func (b *SimBank) Install(h func()) { b.handler = h }
func (b *SimBank) Enter()           {}
func (b *SimBank) Exit()            {}

func (b *SimBank) Fire() {
	b.fired++
	if b.handler != nil {
		b.handler()
	}
}

// Fired counts Fire calls, including ones with no handler installed.
func (b *SimBank) Fired() int { return b.fired }

// NewSim builds the complex at reset: outputs tri-stated, every
// capability gate closed. Open pins with Grant or GrantAll before
// handing the windows to New.
func NewSim() *Sim {
	s := &Sim{}
	sizes := RequiredWindowSizes()
	for i := range s.windows {
		s.windows[i] = &simWindow{MemWindow: NewMemWindow(sizes[i]), sim: s, index: i}
		s.intClear[i] = make(map[uint32]int)
	}
	for i := range s.banks {
		s.banks[i] = &SimBank{}
	}
	for id := 0; id < TotalPins; id++ {
		if !pinWired(id) {
			continue
		}
		w, addr := translate(id, regOutControl)
		s.windows[w].MemWindow.Write32(addr, uint32(outTristate))
		w, addr = translate(id, regIntClear)
		s.intClear[w][addr] = id
	}
	return s
}

func pinWired(id int) bool {
	if id < 0 || id >= TotalPins {
		return false
	}
	port, pin := splitPin(id)
	return ports[port].present && pin < ports[port].pins
}

// Windows returns the register apertures in window order, ready for a
// Config.
func (s *Sim) Windows() []Window {
	ws := make([]Window, NumWindows)
	for i := range s.windows {
		ws[i] = s.windows[i]
	}
	return ws
}

// BankIRQs returns the bank interrupts in controller order.
func (s *Sim) BankIRQs() []BankIRQ {
	bs := make([]BankIRQ, NumControllers)
	for i := range s.banks {
		bs[i] = s.banks[i]
	}
	return bs
}

// Bank exposes one software bank interrupt.
func (s *Sim) Bank(i int) *SimBank { return s.banks[i] }

// Grant programs a pin's capability register.
func (s *Sim) Grant(id int, bits SecurityBits) {
	if id < 0 || id >= TotalPins {
		return
	}
	w, addr := translateSecurity(id)
	s.windows[w].MemWindow.Write32(addr, uint32(bits))
}

// GrantAll opens every wired pin for full access.
func (s *Sim) GrantAll() {
	for id := 0; id < TotalPins; id++ {
		if pinWired(id) {
			s.Grant(id, SecFullAccess)
		}
	}
}

// SetInput drives a pin's pad from the outside world. A transition that
// matches the pin's trigger latches the port status bit whether or not
// the pin is masked; only unmasked pins fire the owning bank.
func (s *Sim) SetInput(id int, level bool) {
	if !pinWired(id) {
		return
	}
	port, pin := splitPin(id)

	w, addr := translate(id, regInput)
	win := s.windows[w].MemWindow
	old := win.Read32(addr)&levelBit != 0
	var raw uint32
	if level {
		raw = levelBit
	}
	win.Write32(addr, raw)

	w, addr = translate(id, regEnbConfig)
	cfg := ConfigBits(s.windows[w].MemWindow.Read32(addr))
	if !cfg.Has(cfgEnable) || cfg.Has(cfgDirOut) {
		return
	}
	latch := false
	switch cfg.triggerKind() {
	case kindSingleEdge:
		latch = old != level && level == cfg.Has(cfgTriggerLevel)
	case kindBothEdges:
		latch = old != level
	case kindLevel:
		latch = level == cfg.Has(cfgTriggerLevel)
	}
	if !latch {
		return
	}
	w, addr = portStatusAddr(port)
	win = s.windows[w].MemWindow
	win.Write32(addr, win.Read32(addr)|1<<pin)
	if cfg.Has(cfgIntFunc) {
		s.banks[ports[port].controller].Fire()
	}
}

// Level reports the line level a probe would see: the driven value when
// the pin drives, the latched input otherwise. The pad drives only as a
// non-tri-stated output; an input direction disconnects the driver no
// matter what output control holds.
func (s *Sim) Level(id int) bool {
	if !pinWired(id) {
		return false
	}
	w, caddr := translate(id, regEnbConfig)
	cfg := ConfigBits(s.windows[w].MemWindow.Read32(caddr))
	_, oaddr := translate(id, regOutControl)
	tristated := s.windows[w].MemWindow.Read32(oaddr)&uint32(outTristate) != 0
	if cfg.Has(cfgDirOut) && !tristated {
		_, vaddr := translate(id, regOutValue)
		return s.windows[w].MemWindow.Read32(vaddr)&levelBit != 0
	}
	_, iaddr := translate(id, regInput)
	return s.windows[w].MemWindow.Read32(iaddr)&levelBit != 0
}

// Pending reports whether the pin's status bit is latched.
func (s *Sim) Pending(id int) bool {
	if !pinWired(id) {
		return false
	}
	port, pin := splitPin(id)
	w, addr := portStatusAddr(port)
	return s.windows[w].MemWindow.Read32(addr)&(1<<pin) != 0
}

// regWritten watches the driver's stores: writing the pending bit to a
// pin's clear register retires its status bit.
func (s *Sim) regWritten(window int, addr, val uint32) {
	id, ok := s.intClear[window][addr]
	if !ok || val&intClearPending == 0 {
		return
	}
	port, pin := splitPin(id)
	w, saddr := portStatusAddr(port)
	win := s.windows[w].MemWindow
	win.Write32(saddr, win.Read32(saddr)&^(1<<pin))
}
