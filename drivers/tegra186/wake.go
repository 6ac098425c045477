package tegra186

// NumWakeSlots is the size of the wake controller's event table.
const NumWakeSlots = 96

// wakeEntry ties a wake slot to the pin that can arm it. Slots with no
// routed pin stay zero-valued.
type wakeEntry struct {
	pin   int
	wired bool
}

func wakePin(port, pin int) wakeEntry {
	return wakeEntry{pin: PinID(port, pin), wired: true}
}

// wakeMap is the slot-to-pin routing of the wake controller, indexed by
// wake slot. Slots 6, 24 and 72 onward are not routed on this chip.
var wakeMap = [NumWakeSlots]wakeEntry{
	0:  wakePin(PortA, 6),
	1:  wakePin(PortA, 2),
	2:  wakePin(PortA, 5),
	3:  wakePin(PortD, 3),
	4:  wakePin(PortE, 3),
	5:  wakePin(PortG, 3),
	7:  wakePin(PortB, 3),
	8:  wakePin(PortB, 5),
	9:  wakePin(PortC, 0),
	10: wakePin(PortS, 2),
	11: wakePin(PortH, 2),
	12: wakePin(PortJ, 5),
	13: wakePin(PortJ, 6),
	14: wakePin(PortJ, 7),
	15: wakePin(PortK, 0),
	16: wakePin(PortQ, 1),
	17: wakePin(PortF, 4),
	18: wakePin(PortM, 5),
	19: wakePin(PortP, 0),
	20: wakePin(PortP, 2),
	21: wakePin(PortP, 1),
	22: wakePin(PortO, 3),
	23: wakePin(PortR, 5),
	25: wakePin(PortS, 3),
	26: wakePin(PortS, 4),
	27: wakePin(PortS, 1),
	28: wakePin(PortF, 2),
	29: wakePin(PortFF, 0),
	30: wakePin(PortFF, 4),
	31: wakePin(PortC, 6),
	32: wakePin(PortW, 2),
	33: wakePin(PortW, 5),
	34: wakePin(PortW, 1),
	35: wakePin(PortV, 0),
	36: wakePin(PortV, 1),
	37: wakePin(PortV, 2),
	38: wakePin(PortV, 3),
	39: wakePin(PortV, 4),
	40: wakePin(PortV, 5),
	41: wakePin(PortEE, 0),
	42: wakePin(PortZ, 1),
	43: wakePin(PortZ, 3),
	44: wakePin(PortAA, 0),
	45: wakePin(PortAA, 1),
	46: wakePin(PortAA, 2),
	47: wakePin(PortAA, 3),
	48: wakePin(PortAA, 4),
	49: wakePin(PortAA, 5),
	50: wakePin(PortAA, 6),
	51: wakePin(PortAA, 7),
	52: wakePin(PortX, 3),
	53: wakePin(PortX, 7),
	54: wakePin(PortY, 0),
	55: wakePin(PortY, 1),
	56: wakePin(PortY, 2),
	57: wakePin(PortY, 5),
	58: wakePin(PortY, 6),
	59: wakePin(PortL, 1),
	60: wakePin(PortL, 3),
	61: wakePin(PortL, 4),
	62: wakePin(PortL, 5),
	63: wakePin(PortI, 4),
	64: wakePin(PortI, 6),
	65: wakePin(PortZ, 0),
	66: wakePin(PortZ, 2),
	67: wakePin(PortFF, 1),
	68: wakePin(PortFF, 2),
	69: wakePin(PortFF, 3),
	70: wakePin(PortH, 3),
	71: wakePin(PortP, 5),
}

// wakeSlotForPin reports the wake slot a pin is routed to, if any.
func wakeSlotForPin(id int) (slot int, ok bool) {
	for s := range wakeMap {
		if wakeMap[s].wired && wakeMap[s].pin == id {
			return s, true
		}
	}
	return 0, false
}
