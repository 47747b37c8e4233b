// Package kernel wires together the memory map, heap, MPU manager,
// interrupt controller, fault handlers and device registry into the
// bootstrap sequence and terminal panic sink described by the original
// firmware's start.c: kernel_start and kernel_panic.
package kernel

import (
	"github.com/TriHexagon/Polaris/device"
	"github.com/TriHexagon/Polaris/fault"
	"github.com/TriHexagon/Polaris/heap"
	"github.com/TriHexagon/Polaris/internal/cpu"
	"github.com/TriHexagon/Polaris/internal/diag"
	"github.com/TriHexagon/Polaris/internal/kutil"
	"github.com/TriHexagon/Polaris/intr"
	"github.com/TriHexagon/Polaris/memmap"
	"github.com/TriHexagon/Polaris/mpu"
)

// SCB/ACTLR register addresses and bit positions used by
// configureControlRegisters.
const (
	actlrBase       = 0xE000E008
	actlrDISMCYCINT = 1 << 0
	actlrDISDEFWBUF = 1 << 1
	actlrDISFOLD    = 1 << 2

	scbBase        = 0xE000ED00
	regSCR         = scbBase + 0x10
	scrSleepOnExit = 1 << 1
	scrSleepDeep   = 1 << 2
	scrSevOnPend   = 1 << 4
)

// Config models the build-time toggles the original firmware selects with
// preprocessor defines (DEBUG, NOMPU, NOFPU, RAMMODE) as runtime fields
// instead, so the same binary stays host-testable across all four
// combinations rather than requiring four separate builds.
type Config struct {
	Debug   bool // store-to-memory ordering is strict when true (ACTLR.DISDEFWBUF)
	NoMPU   bool
	NoFPU   bool
	RAMMode bool // skip the .data copy / .bss zero because the image already runs from RAM
}

// LinkerSymbols mirrors the addresses the linker script provides in the
// original firmware: section boundaries for the bootstrap copy/zero pass,
// the kernel stack, and the heap region.
type LinkerSymbols struct {
	DataStart, DataEnd, DataSourceStart uintptr
	BSSStart, BSSEnd                    uintptr
	StackStart, StackEnd                uintptr
	HeapStart                            uintptr
	HeapSize                             uint32
}

// BoardSpec aggregates everything a board integration needs to supply,
// recovering device_specs.c's "one struct per board" convention: a memory
// map, the linker symbol set, the IRQ count the NVIC must size for, and the
// number of priority bits its SHP/IP registers implement (0 defaults to
// intr's own fallback).
type BoardSpec struct {
	MemoryMap      memmap.Map
	Symbols        LinkerSymbols
	DeviceIntCount int
	PriorityBits   int
}

// Indicator is the external board collaborator kernel_panic lights before
// it spins; nil is accepted and simply does nothing.
type Indicator interface {
	SetPanicLED()
}

// Kernel owns every core subsystem's singleton instance.
type Kernel struct {
	cfg     Config
	syms    LinkerSymbols
	sink    diag.Sink
	led     Indicator
	heap    *heap.Heap
	mgr     *mpu.Manager
	ctl     *intr.Controller
	flt     *fault.Handlers
	devices *device.Registry

	// halt is invoked after Panic has logged its diagnostic. On real
	// hardware this never returns; tests substitute a hook that records
	// the call instead of spinning forever.
	halt func()
}

// New constructs a Kernel over the given board spec without performing any
// hardware access; Start runs the actual bootstrap sequence.
func New(cfg Config, board BoardSpec, sink diag.Sink, led Indicator) *Kernel {
	if sink == nil {
		sink = diag.NopSink{}
	}
	k := &Kernel{cfg: cfg, syms: board.Symbols, sink: sink, led: led}
	k.halt = func() {
		for {
		}
	}
	k.mgr = mpu.New(board.MemoryMap)
	k.ctl = intr.New(board.DeviceIntCount, board.PriorityBits, board.Symbols.StackStart)
	k.flt = fault.New(k.mgr, k.ctl, board.Symbols.StackEnd, sink, k)
	return k
}

// Heap returns the kernel's heap allocator, available once Start has run.
func (k *Kernel) Heap() *heap.Heap { return k.heap }

// Devices returns the kernel's device registry, available once Start has
// run.
func (k *Kernel) Devices() *device.Registry { return k.devices }

// Start runs the boot sequence: optional .data copy / .bss zero, SCB control
// register setup, MPU init, interrupt controller init, fault handler init
// (which arms the stack guard), optional FPU enable, heap init, and
// device registry init. fpuEnable is the external FPU toggle (nil when
// NoFPU or the target has no FPU); it corresponds to fpu_init in the
// original. Mirrors kernel_start's init order exactly.
func (k *Kernel) Start(fpuEnable func()) {
	if !k.cfg.RAMMode {
		kutil.Memcpy32(k.syms.DataStart, k.syms.DataSourceStart, uint32(k.syms.DataEnd-k.syms.DataStart))
		kutil.Bzero32(k.syms.BSSStart, uint32(k.syms.BSSEnd-k.syms.BSSStart))
	}

	k.configureControlRegisters()

	if !k.cfg.NoMPU {
		k.mgr.Init()
	}

	k.ctl.Init()
	k.flt.Init()

	if !k.cfg.NoFPU && fpuEnable != nil {
		fpuEnable()
	}

	k.heap = heap.New(make([]byte, k.syms.HeapSize))
	k.devices = device.New(k.heap)
}

// configureControlRegisters tunes ACTLR (IT-folding and multi-cycle
// instruction interruption disabled, write-buffer strictness gated on
// cfg.Debug) and SCR (wake-on-any-pending-exception, no deep sleep, no
// sleep-on-exit), matching the SCB control register setup kernel_start
// performs as part of bootstrap.
func (k *Kernel) configureControlRegisters() {
	cpu.MMIOWrite32(actlrBase, actlrValue(cpu.MMIORead32(actlrBase), k.cfg.Debug))
	cpu.MMIOWrite32(regSCR, scrValue(cpu.MMIORead32(regSCR)))
}

// actlrValue folds debug's DISDEFWBUF request into current, the ACTLR
// register's prior value.
func actlrValue(current uint32, debug bool) uint32 {
	current |= actlrDISFOLD | actlrDISMCYCINT
	if debug {
		current |= actlrDISDEFWBUF
	} else {
		current &^= actlrDISDEFWBUF
	}
	return current
}

// scrValue folds the kernel's sleep policy into current, the SCR register's
// prior value.
func scrValue(current uint32) uint32 {
	current |= scrSevOnPend
	current &^= scrSleepDeep | scrSleepOnExit
	return current
}

// Panic is the terminal error sink: it lights the panic indicator, writes
// a diagnostic line, and never returns, matching kernel_panic exactly,
// including that it must not call into heap or device (both may be the
// reason the panic happened).
func (k *Kernel) Panic(module string, code int) {
	if k.led != nil {
		k.led.SetPanicLED()
	}
	k.sink.WriteString("KERNEL PANIC asserted by ")
	k.sink.WriteString(module)
	k.sink.WriteString(" module, error code ")
	diag.PutUint32(k.sink, uint32(code))
	k.sink.WriteString("\n")
	k.halt()
}
