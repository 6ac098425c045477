package tegra186

import (
	"fmt"
	"strings"
)

// Chip geometry. Fixed for this controller complex.
const (
	MaxPorts    = 32
	PinsPerPort = 8
	TotalPins   = MaxPorts * PinsPerPort

	// NumControllers counts the interrupt banks: six in the main window
	// plus the always-on bank.
	NumControllers = 7

	// portsPerController is how many port slots one bank decodes.
	portsPerController = 8

	NumWindows = 2
	WindowMain = 0
	WindowAON  = 1
)

// Port numbers. The flat pin identifier for port p, pin n is p*8+n.
const (
	PortA = iota
	PortB
	PortC
	PortD
	PortE
	PortF
	PortG
	PortH
	PortI
	PortJ
	PortK
	PortL
	PortM
	PortN
	PortO
	PortP
	PortQ
	PortR
	PortS
	PortT
	PortU
	PortV
	PortW
	PortX
	PortY
	PortZ
	PortAA
	PortBB
	PortCC
	PortDD
	PortEE
	PortFF
)

// portDesc is the static shape of one port: which bank decodes it, where
// its register and security blocks sit, and how many of its 8 slots are
// wired on this chip.
type portDesc struct {
	name       string
	present    bool
	controller int
	index      int
	pins       int
	window     int
	regBlock   uint32
	scrBlock   uint32
}

func mainPort(name string, controller, index, pins int) portDesc {
	return portDesc{
		name:       name,
		present:    true,
		controller: controller,
		index:      index,
		pins:       pins,
		window:     WindowMain,
		regBlock:   mainRegBase + uint32(controller)*mainBankStride + uint32(index)*portRegStride,
		scrBlock:   uint32(controller)*scrBankStride + uint32(index)*scrPortStride,
	}
}

func aonPort(name string, index, pins int) portDesc {
	return portDesc{
		name:       name,
		present:    true,
		controller: 6,
		index:      index,
		pins:       pins,
		window:     WindowAON,
		regBlock:   aonRegBase + uint32(index)*portRegStride,
		scrBlock:   uint32(index) * scrPortStride,
	}
}

func absentPort(name string) portDesc {
	return portDesc{name: name}
}

// ports is the per-chip topology. Indexed by port number; immutable.
var ports = [MaxPorts]portDesc{
	PortA:  mainPort("A", 2, 0, 7),
	PortB:  mainPort("B", 3, 0, 7),
	PortC:  mainPort("C", 3, 1, 7),
	PortD:  mainPort("D", 3, 2, 6),
	PortE:  mainPort("E", 2, 1, 8),
	PortF:  mainPort("F", 2, 2, 6),
	PortG:  mainPort("G", 4, 1, 6),
	PortH:  mainPort("H", 1, 0, 7),
	PortI:  mainPort("I", 0, 4, 8),
	PortJ:  mainPort("J", 5, 0, 8),
	PortK:  mainPort("K", 5, 1, 1),
	PortL:  mainPort("L", 1, 1, 8),
	PortM:  mainPort("M", 5, 3, 6),
	PortN:  mainPort("N", 0, 0, 7),
	PortO:  mainPort("O", 0, 1, 4),
	PortP:  mainPort("P", 4, 0, 7),
	PortQ:  mainPort("Q", 0, 2, 6),
	PortR:  mainPort("R", 0, 5, 6),
	PortS:  aonPort("S", 1, 5),
	PortT:  mainPort("T", 0, 3, 4),
	PortU:  aonPort("U", 2, 6),
	PortV:  aonPort("V", 4, 8),
	PortW:  aonPort("W", 5, 8),
	PortX:  mainPort("X", 1, 2, 8),
	PortY:  mainPort("Y", 1, 3, 7),
	PortZ:  aonPort("Z", 7, 4),
	PortAA: aonPort("AA", 6, 8),
	PortBB: mainPort("BB", 2, 3, 2),
	PortCC: mainPort("CC", 5, 2, 4),
	PortDD: absentPort("DD"),
	PortEE: aonPort("EE", 3, 3),
	PortFF: aonPort("FF", 0, 5),
}

// PinID builds the flat identifier for (port, pin).
func PinID(port, pin int) int { return port*PinsPerPort + pin }

func splitPin(id int) (port, pin int) {
	return id / PinsPerPort, id % PinsPerPort
}

// PinName renders a flat identifier as "PA6", "PAA3" and so on.
func PinName(id int) string {
	port, pin := splitPin(id)
	if port < 0 || port >= MaxPorts {
		return fmt.Sprintf("P?%d", id)
	}
	return fmt.Sprintf("P%s%d", ports[port].name, pin)
}

// ParsePinName accepts the PinName form, case-insensitive, with or
// without the leading P.
func ParsePinName(s string) (int, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimPrefix(t, "P")
	if len(t) < 2 {
		return 0, fmt.Errorf("bad pin name %q", s)
	}
	portPart, pinPart := t[:len(t)-1], t[len(t)-1]
	if pinPart < '0' || pinPart > '7' {
		return 0, fmt.Errorf("bad pin number in %q", s)
	}
	for p := range ports {
		if ports[p].name == portPart {
			return PinID(p, int(pinPart-'0')), nil
		}
	}
	return 0, fmt.Errorf("unknown port in %q", s)
}

// translate locates a named per-pin register: the window index and the
// byte address of the pin's register block plus reg. Pure topology
// arithmetic; callers must have gated pin accessibility, and ids must be
// in [0, TotalPins).
func translate(id int, reg uint32) (window int, addr uint32) {
	port, pin := splitPin(id)
	p := &ports[port]
	return p.window, p.regBlock + uint32(pin)*pinStride + reg
}

// translateSecurity locates the pin's SCR capability register.
func translateSecurity(id int) (window int, addr uint32) {
	port, pin := splitPin(id)
	p := &ports[port]
	return p.window, p.scrBlock + uint32(pin)*securityStride + regSecurity
}

// portStatusAddr locates a port's pending-interrupt bitmap.
func portStatusAddr(port int) (window int, addr uint32) {
	p := &ports[port]
	return p.window, p.regBlock + intStatusOffset + intStatusG1
}

// RequiredWindowSizes reports the minimum byte size of each register
// window implied by the topology. Platform code sizes its mappings from
// this; New rejects windows smaller than it.
func RequiredWindowSizes() [NumWindows]uint32 {
	var sizes [NumWindows]uint32
	grow := func(w int, end uint32) {
		if end > sizes[w] {
			sizes[w] = end
		}
	}
	for p := range ports {
		d := &ports[p]
		if !d.present {
			continue
		}
		grow(d.window, d.regBlock+intStatusOffset+intStatusG1+4)
		grow(d.window, d.regBlock+uint32(PinsPerPort-1)*pinStride+regIntClear+4)
		grow(d.window, d.scrBlock+uint32(PinsPerPort-1)*securityStride+regSecurity+4)
	}
	return sizes
}
