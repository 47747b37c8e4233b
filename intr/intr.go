// Package intr owns the in-RAM interrupt vector table and the NVIC/SCB
// register paths that enable, disable, and prioritize each vector. Control
// flow and the fault/IRQ split are ported from the original firmware's
// interrupt.c; the table itself is addressed directly rather than through
// a raw memory-mapped function-pointer array, because a slot is a plain Go
// func() here, not an address a real vector fetch could execute — the
// board layer is responsible for wiring each real vector slot to a small
// trampoline that calls back into the slot installed here.
package intr

import (
	"unsafe"

	"github.com/TriHexagon/Polaris/internal/cpu"
)

// ErrorCode identifies an intr operation failure.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrAlreadyInUse
	ErrNotUsedYet
	ErrInvalidArgument
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrAlreadyInUse:
		return "intr: slot already has a handler installed"
	case ErrNotUsedYet:
		return "intr: slot has no handler installed"
	case ErrInvalidArgument:
		return "intr: invalid argument"
	default:
		return "intr: no error"
	}
}

// Exception numbers for the fixed architectural vectors, matching the
// original firmware's INT_TYPE enum. IRQs are numbered from 0 and occupy
// vector table slots starting at IRQOffset.
const (
	Reset       = 1
	NMI         = 2
	HardFault   = 3
	MemManage   = 4
	BusFault    = 5
	UsageFault  = 6
	SVCall      = 11
	PendSV      = 14
	SysTick     = 15
	IRQOffset   = 16
)

// PriorityLowest is the least urgent priority value a handler can request.
const PriorityLowest = 15

// Convenience priorities for software-triggered interrupts, recovered from
// the original firmware's INT_SOFTWARE_*_PRIORITY constants.
const (
	PriorityHigh    = PriorityLowest - 2
	PriorityAverage = PriorityLowest - 1
	PriorityLow     = PriorityLowest
)

// Handler is an installable vector. It takes no arguments and returns
// nothing, matching the original's void(*)(void) handler type.
type Handler func()

// slotState tracks whether a vector currently holds a caller-installed
// handler, an Unused/Installed machine layered underneath Enable/Disable.
type slotState int

const (
	slotUnused slotState = iota
	slotInstalled
)

const (
	scbBase  = 0xE000ED00
	regAIRCR = scbBase + 0x0C
	regSHCSR = scbBase + 0x24
	regVTOR  = scbBase + 0x08
	regSHP   = scbBase + 0x18 // SHP[0..11], priority for exceptions 4..15

	aircrPrigroupMask = 0x00000700
	shcsrMemFaultEna  = 1 << 16
	shcsrBusFaultEna  = 1 << 17
	shcsrUsgFaultEna  = 1 << 18

	nvicISERBase = 0xE000E100
	nvicICERBase = 0xE000E180
	nvicIPRBase  = 0xE000E400
)

// Controller owns the vector table and NVIC/SCB register state.
type Controller struct {
	deviceIntCount int
	priorityBits   int
	initialSP      uintptr

	table []Handler
	state []slotState

	oldVTOR uint32
}

func defaultHandler() {}

// defaultPriorityBits is used when a board does not report how many NVIC/SHP
// priority bits it implements; 4 matches the __NVIC_PRIO_BITS value the
// original ships for its reference target.
const defaultPriorityBits = 4

// New creates a Controller sized for deviceIntCount IRQs, with initialSP
// recorded at vector slot 0 as the original's ivectorTable does.
// priorityBits is the number of priority bits the target implements in its
// SHP/IP registers; requested priorities are left-justified into the high
// priorityBits before being written, matching int_enable's
// "priority <<= (8 - __NVIC_PRIO_BITS)". A value outside 1..8 falls back to
// defaultPriorityBits.
func New(deviceIntCount, priorityBits int, initialSP uintptr) *Controller {
	if priorityBits <= 0 || priorityBits > 8 {
		priorityBits = defaultPriorityBits
	}
	c := &Controller{
		deviceIntCount: deviceIntCount,
		priorityBits:   priorityBits,
		initialSP:      initialSP,
		table:          make([]Handler, IRQOffset+deviceIntCount),
		state:          make([]slotState, IRQOffset+deviceIntCount),
	}
	for i := range c.table {
		c.table[i] = defaultHandler
	}
	return c
}

// leftJustify shifts priority into the high priorityBits of the byte the
// SHP/IP registers expect, leaving the implementation-defined low bits zero.
func (c *Controller) leftJustify(priority uint8) uint32 {
	return uint32(priority) << uint(8-c.priorityBits)
}

// Init disables interrupts, configures AIRCR/SHCSR defaults, masks all
// IRQs, swaps in this controller's vector table via VTOR (with TBLBASE
// set, since the table lives in RAM), issues DSB/ISB, then re-enables
// interrupts. Mirrors
// int_init's exact sequence.
func (c *Controller) Init() {
	cpu.DisableIRQs()
	c.oldVTOR = cpu.MMIORead32(regVTOR)

	aircr := cpu.MMIORead32(regAIRCR)
	aircr |= aircrPrigroupMask
	cpu.MMIOWrite32(regAIRCR, aircr)

	shcsr := cpu.MMIORead32(regSHCSR)
	shcsr &^= shcsrUsgFaultEna | shcsrBusFaultEna | shcsrMemFaultEna
	cpu.MMIOWrite32(regSHCSR, shcsr)

	for reg := uintptr(0); reg <= 7; reg++ {
		cpu.MMIOWrite32(nvicICERBase+reg*4, 0xFFFFFFFF)
	}

	const tblBase = 1 << 29
	cpu.SetVTOR(c.vectorTableAddr() | tblBase)
	cpu.DSB()
	cpu.ISB()
	cpu.RestoreIRQs(true)
}

// vectorTableAddr reports the address of this controller's table header,
// the value a real board would program into VTOR; the board's assembly
// trampolines, not this address, are what the core actually dispatches
// through (see Dispatch).
func (c *Controller) vectorTableAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.table[0]))
}

// Deinit restores the vector table that was active before Init.
func (c *Controller) Deinit() {
	cpu.SetVTOR(uintptr(c.oldVTOR))
}

func (c *Controller) isFault(irqNum int32) bool { return irqNum < 0 }

// Enable arms irqNum at priority, matching int_enable's fault/IRQ split:
// negative numbers select a fixed architectural exception (only the ones
// whose enable bit can be toggled; SVCall/PendSV/SysTick are always
// enabled and only take a priority), non-negative numbers select an IRQ
// routed through the NVIC.
func (c *Controller) Enable(irqNum int32, priority uint8) ErrorCode {
	if priority > PriorityLowest {
		return ErrInvalidArgument
	}
	if c.isFault(irqNum) {
		switch irqNum {
		case -MemManage, -BusFault, -UsageFault, -SVCall, -PendSV, -SysTick:
			// recognized architectural exception; fall through to program it
		default:
			return ErrInvalidArgument
		}

		shcsr := cpu.MMIORead32(regSHCSR)
		switch irqNum {
		case -MemManage:
			shcsr |= shcsrMemFaultEna
		case -BusFault:
			shcsr |= shcsrBusFaultEna
		case -UsageFault:
			shcsr |= shcsrUsgFaultEna
		}
		cpu.MMIOWrite32(regSHCSR, shcsr)
		cpu.MMIOWrite32(regSHP+uintptr(-irqNum)-4, c.leftJustify(priority))
		return ErrNone
	}

	if irqNum >= int32(c.deviceIntCount) {
		return ErrInvalidArgument
	}
	cpu.MMIOWrite32(nvicIPRBase+uintptr(irqNum), c.leftJustify(priority))
	cpu.MMIOWrite32(nvicISERBase+uintptr(irqNum/32)*4, 1<<uint(irqNum%32))
	return ErrNone
}

// Disable masks irqNum. Mirrors int_disable: IRQs go through the NVIC's
// clear-enable register; only MemManage/BusFault/UsageFault among the
// architectural exceptions can be disabled.
func (c *Controller) Disable(irqNum int32) ErrorCode {
	if irqNum >= 0 {
		if irqNum >= int32(c.deviceIntCount) {
			return ErrInvalidArgument
		}
		cpu.MMIOWrite32(nvicICERBase+uintptr(irqNum/32)*4, 1<<uint(irqNum%32))
		return ErrNone
	}

	switch irqNum {
	case -MemManage, -BusFault, -UsageFault:
		// one of the maskable faults; fall through to clear its enable bit
	default:
		return ErrNone
	}

	shcsr := cpu.MMIORead32(regSHCSR)
	switch irqNum {
	case -MemManage:
		shcsr &^= shcsrMemFaultEna
	case -BusFault:
		shcsr &^= shcsrBusFaultEna
	case -UsageFault:
		shcsr &^= shcsrUsgFaultEna
	}
	cpu.MMIOWrite32(regSHCSR, shcsr)
	return ErrNone
}

// Slot identifies a vector table entry: either a fixed architectural
// exception number or an IRQ number translated through IRQOffset.
type Slot int32

// IRQSlot converts an IRQ number into its vector table slot.
func IRQSlot(irqNum int32) Slot { return Slot(IRQOffset + irqNum) }

func (c *Controller) slotIndex(s Slot) (int, ErrorCode) {
	idx := int(s)
	if idx <= 0 || idx >= len(c.table) {
		return 0, ErrInvalidArgument
	}
	return idx, ErrNone
}

// Install places h at slot, failing with ErrAlreadyInUse if a non-default
// handler already occupies it. This is the Unused/Installed state machine
// layered under the register-level Enable/Disable calls above, reconciling
// the two API shapes the original header and source file disagree on.
func (c *Controller) Install(slot Slot, h Handler) ErrorCode {
	idx, errc := c.slotIndex(slot)
	if errc != ErrNone {
		return errc
	}
	if h == nil {
		return ErrInvalidArgument
	}
	if c.state[idx] == slotInstalled {
		return ErrAlreadyInUse
	}
	c.table[idx] = h
	c.state[idx] = slotInstalled
	return ErrNone
}

// Remove resets slot to the default handler. The default handler returns
// without doing anything; it does not escalate to a kernel panic.
func (c *Controller) Remove(slot Slot) ErrorCode {
	idx, errc := c.slotIndex(slot)
	if errc != ErrNone {
		return errc
	}
	if c.state[idx] == slotUnused {
		return ErrNotUsedYet
	}
	c.table[idx] = defaultHandler
	c.state[idx] = slotUnused
	return ErrNone
}

// Dispatch invokes the handler installed at slot. The board's assembly
// trampoline for each real vector calls this with its own slot number.
func (c *Controller) Dispatch(slot Slot) {
	idx, errc := c.slotIndex(slot)
	if errc != ErrNone {
		return
	}
	c.table[idx]()
}
