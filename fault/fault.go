// Package fault installs and runs the architectural fault handler set
// (NMI, HardFault, MemManage, BusFault, UsageFault), decodes each fault's
// status register into a short diagnostic, and escalates every one of them
// to a kernel panic. The bit-decode priority tables and the stack-overflow
// guard check are ported from the original firmware's exception.c.
package fault

import (
	"github.com/TriHexagon/Polaris/internal/cpu"
	"github.com/TriHexagon/Polaris/internal/diag"
	"github.com/TriHexagon/Polaris/intr"
	"github.com/TriHexagon/Polaris/mpu"
)

// Panicker is the terminal sink a fault escalates to. kernel.Kernel
// implements it; fault never calls back into heap or device itself.
type Panicker interface {
	Panic(module string, code int)
}

// Error codes escalated to Panic, mirroring ERROR_EXCPT_* in the original.
const (
	ErrNMI        = 1
	ErrHardFault  = 2
	ErrMMUFault   = 3
	ErrBusFault   = 4
	ErrUsageFault = 5
)

const moduleName = "excpt"

const (
	scbBase  = 0xE000ED00
	regCCR   = scbBase + 0x14
	regCFSR  = scbBase + 0x28
	regHFSR  = scbBase + 0x2C
	regMMFAR = scbBase + 0x34
	regBFAR  = scbBase + 0x38

	ccrStkAlign    = 1 << 9
	ccrBFHFNMIGN   = 1 << 8
	ccrDiv0Trp     = 1 << 4
	ccrUnalignTrp  = 1 << 3

	hfsrForced   = 1 << 30
	hfsrVectTbl  = 1 << 1

	mmfsrMMARValid = 1 << 7
	mmfsrMLSPERR   = 1 << 5
	mmfsrMStkErr   = 1 << 4
	mmfsrMUnstkErr = 1 << 3
	mmfsrDAccViol  = 1 << 1
	mmfsrIAccViol  = 1 << 0

	bfsrBFARValid   = 1 << 7
	bfsrLSPERR      = 1 << 5
	bfsrUnstkErr    = 1 << 3
	bfsrImpreciseErr = 1 << 2
	bfsrPreciseErr  = 1 << 1
	bfsrIBusErr     = 1 << 0

	ufsrDivByZero  = 1 << 9
	ufsrUnaligned  = 1 << 8
	ufsrNoCP       = 1 << 3
	ufsrInvPC      = 1 << 2
	ufsrInvState   = 1 << 1
	ufsrUndefInstr = 1 << 0
)

// stackGuardSize is the size, in bytes, of the no-access MPU region armed
// at the kernel stack's low address to catch overflow.
const stackGuardSize = 32
const stackGuardSizeLog2 = 5 // 2^5 = 32

// Handlers owns the fault decode/escalate logic and the stack-overflow
// guard region it arms through mpu.
type Handlers struct {
	mgr      *mpu.Manager
	ctl      *intr.Controller
	stackEnd uintptr
	sink     diag.Sink
	panicker Panicker
}

// New creates a Handlers set. stackEnd is the kernel stack's low address
// (_stackEnd in the linker script); sink receives diagnostic text; panicker
// is invoked once a fault has been classified.
func New(mgr *mpu.Manager, ctl *intr.Controller, stackEnd uintptr, sink diag.Sink, panicker Panicker) *Handlers {
	if sink == nil {
		sink = diag.NopSink{}
	}
	return &Handlers{mgr: mgr, ctl: ctl, stackEnd: stackEnd, sink: sink, panicker: panicker}
}

// Init tunes SCB->CCR, enables the three maskable faults via intr, and
// arms MPU region 0 as the stack-overflow guard. A failure from intr or mpu
// is escalated to the panicker under that module's name. Mirrors excpt_init.
func (h *Handlers) Init() {
	ccr := cpu.MMIORead32(regCCR)
	ccr &^= ccrStkAlign
	ccr &^= ccrBFHFNMIGN
	ccr |= ccrDiv0Trp
	ccr |= ccrUnalignTrp
	cpu.MMIOWrite32(regCCR, ccr)

	for _, irq := range []int32{-intr.MemManage, -intr.BusFault, -intr.UsageFault} {
		if errc := h.ctl.Enable(irq, 0); errc != intr.ErrNone && h.panicker != nil {
			h.panicker.Panic("intr", int(errc))
		}
	}

	if h.mgr != nil {
		errc := h.mgr.EnableRegion(0, mpu.Region{
			BaseAddress:           h.stackEnd,
			SizeLog2:              stackGuardSizeLog2,
			AccessPrivileged:      mpu.AccessNone,
			AccessUnprivileged:    mpu.AccessNone,
			InstructionAccessible: false,
		})
		if errc != mpu.ErrNone && h.panicker != nil {
			h.panicker.Panic("mpu", int(errc))
		}
	}
}

// Deinit disarms the stack guard region and disables the maskable faults.
func (h *Handlers) Deinit() {
	if h.mgr != nil {
		h.mgr.DisableRegion(0)
	}
	h.ctl.Disable(-intr.MemManage)
	h.ctl.Disable(-intr.BusFault)
	h.ctl.Disable(-intr.UsageFault)
}

func (h *Handlers) panic(code int) {
	if h.panicker != nil {
		h.panicker.Panic(moduleName, code)
	}
}

// HandleNMI logs and escalates unconditionally; there is nothing to decode.
func (h *Handlers) HandleNMI() {
	diag.Line(h.sink, "NMI exception")
	h.panic(ErrNMI)
}

// HandleHardFault decodes HFSR and escalates. Mirrors handler_hardfault's
// FORCED/VECTTBL priority.
func (h *Handlers) HandleHardFault(hfsr uint32) {
	var reason string
	switch {
	case hfsr&hfsrForced != 0:
		reason = "forced hard fault (FORCED)"
	case hfsr&hfsrVectTbl != 0:
		reason = "vector table read (VECTTBL)"
	default:
		reason = "undefined reason"
	}
	diag.Line(h.sink, "HardFault exception: ", reason)
	h.panic(ErrHardFault)
}

// guardTripped reports whether mmfar falls in the stack-overflow guard's
// address range, checked before generic MemManage classification so an
// overflow is reported precisely rather than as a generic access violation.
func (h *Handlers) guardTripped(mmfsr, mmfar uint32, mmfarValid bool) bool {
	return mmfsr&mmfsrMMARValid != 0 && mmfarValid &&
		uintptr(mmfar) >= h.stackEnd && uintptr(mmfar) <= h.stackEnd+stackGuardSize
}

// HandleMemManage decodes MMFSR/MMFAR and escalates. Mirrors
// handler_mmufault's guard-range special case followed by its MLSPERR
// through IACCVIOL bit-decode priority.
func (h *Handlers) HandleMemManage(mmfsr, mmfar uint32, mmfarValid bool) {
	if h.guardTripped(mmfsr, mmfar, mmfarValid) {
		diag.Line(h.sink, "kernel stack overflow detected near MMFAR=")
		diag.PutHex32(h.sink, mmfar)
		h.panic(ErrMMUFault)
		return
	}

	var reason string
	switch {
	case mmfsr&mmfsrMLSPERR != 0:
		reason = "floating-point lazy state preservation (MLSPERR)"
	case mmfsr&mmfsrMStkErr != 0:
		reason = "access violation while stacking for an exception entry (MSTKERR)"
	case mmfsr&mmfsrMUnstkErr != 0:
		reason = "access violation while unstacking for an exception return (MUNSTKERR)"
	case mmfsr&mmfsrDAccViol != 0:
		reason = "data access violation (DACCVIOL)"
	case mmfsr&mmfsrIAccViol != 0:
		reason = "instruction access violation (IACCVIOL)"
	default:
		reason = "undefined reason"
	}
	diag.Line(h.sink, "MemManageFault exception: ", reason)
	if mmfsr&mmfsrMMARValid != 0 {
		diag.Line(h.sink, "MMFAR=")
		diag.PutHex32(h.sink, mmfar)
	}
	h.panic(ErrMMUFault)
}

// HandleBusFault decodes BFSR/BFAR and escalates. Mirrors
// handler_busfault's LSPERR through IBUSERR priority.
func (h *Handlers) HandleBusFault(bfsr, bfar uint32, bfarValid bool) {
	var reason string
	switch {
	case bfsr&bfsrLSPERR != 0:
		reason = "floating-point lazy state preservation (LSPERR)"
	case bfsr&bfsrUnstkErr != 0:
		reason = "unstack for an exception return (UNSTKERR)"
	case bfsr&bfsrImpreciseErr != 0:
		reason = "data bus error (IMPRECISERR)"
	case bfsr&bfsrPreciseErr != 0:
		reason = "data bus error (PRECISERR)"
	case bfsr&bfsrIBusErr != 0:
		reason = "instruction bus error (IBUSERR)"
	default:
		reason = "undefined reason"
	}
	diag.Line(h.sink, "BusFault exception: ", reason)
	if bfsr&bfsrBFARValid != 0 {
		diag.Line(h.sink, "BFAR=")
		diag.PutHex32(h.sink, bfar)
	}
	h.panic(ErrBusFault)
}

const (
	cpacrBase = 0xE000ED88
	cpacrCP10 = 1 << 20
	cpacrCP11 = 1 << 22
)

// EnableFPU grants full access to CP10/CP11 (the floating-point
// coprocessor) at both privilege levels, recovered from the original
// firmware's fpu_init, which this distillation's boot sequence references
// ("FPU (optional)") without specifying.
func EnableFPU() {
	cpacr := cpu.MMIORead32(cpacrBase)
	cpacr |= cpacrCP10 | cpacrCP11
	cpu.MMIOWrite32(cpacrBase, cpacr)
	cpu.DSB()
	cpu.ISB()
}

// DisableFPU revokes CP10/CP11 access, mirroring fpu_deinit.
func DisableFPU() {
	cpacr := cpu.MMIORead32(cpacrBase)
	cpacr &^= cpacrCP10 | cpacrCP11
	cpu.MMIOWrite32(cpacrBase, cpacr)
	cpu.DSB()
	cpu.ISB()
}

// HandleUsageFault decodes UFSR and escalates. Mirrors
// handler_usagefault's DIVBYZERO through UNDEFINSTR priority.
func (h *Handlers) HandleUsageFault(ufsr uint32) {
	var reason string
	switch {
	case ufsr&ufsrDivByZero != 0:
		reason = "division by zero (DIVBYZERO)"
	case ufsr&ufsrUnaligned != 0:
		reason = "unaligned memory access (UNALIGNED)"
	case ufsr&ufsrNoCP != 0:
		reason = "no coprocessor (NOCP)"
	case ufsr&ufsrInvPC != 0:
		reason = "invalid PC load (INVPC)"
	case ufsr&ufsrInvState != 0:
		reason = "invalid state (INVSTATE)"
	case ufsr&ufsrUndefInstr != 0:
		reason = "undefined instruction (UNDEFINSTR)"
	default:
		reason = "undefined reason"
	}
	diag.Line(h.sink, "UsageFault exception: ", reason)
	h.panic(ErrUsageFault)
}
