// Package mpu manages the Cortex-M4's Memory Protection Unit: one of its
// eight regions is reserved by the fault package as a stack-overflow guard,
// the rest are available to callers. Register field layout and the
// access-combination table are ported from the original firmware's mpu.c.
package mpu

import (
	"github.com/TriHexagon/Polaris/internal/cpu"
	"github.com/TriHexagon/Polaris/memmap"
)

// ErrorCode identifies an mpu operation failure.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrNotSupported
	ErrInvalidIndex
	ErrInvalidArgument
	ErrInvalidAddress
	ErrInvalidAccessCombination
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrNotSupported:
		return "mpu: not supported by this core"
	case ErrInvalidIndex:
		return "mpu: invalid region index"
	case ErrInvalidArgument:
		return "mpu: invalid argument"
	case ErrInvalidAddress:
		return "mpu: base address not in the memory map"
	case ErrInvalidAccessCombination:
		return "mpu: unsupported privileged/unprivileged access combination"
	default:
		return "mpu: no error"
	}
}

// RegionCount is the number of MPU regions this core requires the target to
// expose; probing for anything else is rejected at Init.
const RegionCount = 8

// Access describes one privilege level's permission over a region.
type Access int

const (
	AccessNone Access = iota
	AccessReadOnly
	AccessReadWrite
)

// Region describes the desired configuration of one MPU slot.
type Region struct {
	BaseAddress           uintptr
	SizeLog2              uint8 // region size is 2^SizeLog2 bytes; SizeLog2 >= 5 (32B minimum)
	AccessPrivileged      Access
	AccessUnprivileged    Access
	InstructionAccessible bool
}

// Register offsets, relative to the MPU peripheral base, per the
// ARMv7-M architecture reference.
const (
	mpuBase    = 0xE000ED90
	regType    = mpuBase + 0x00
	regCtrl    = mpuBase + 0x04
	regRNR     = mpuBase + 0x08
	regRBAR    = mpuBase + 0x0C
	regRASR    = mpuBase + 0x10
)

const (
	typeIRegionMask  = 0x00FF0000
	typeDRegionMask  = 0x0000FF00
	typeDRegionShift = 8
	typeSeparateMask = 0x00000001

	ctrlEnable      = 1 << 0
	ctrlHFNMIENA    = 1 << 1
	ctrlPRIVDEFENA  = 1 << 2

	rasrEnable   = 1 << 0
	rasrSizeShift = 1
	rasrAPShift   = 24
	rasrXN        = 1 << 28
	rasrS         = 1 << 18
	rasrC         = 1 << 17
	rasrB         = 1 << 16
)

// Manager owns the MPU's shadow state and the board's memory map used to
// validate region base addresses.
type Manager struct {
	mm memmap.Map
}

// New creates a Manager validating regions against mm.
func New(mm memmap.Map) *Manager {
	return &Manager{mm: mm}
}

// Init probes the MPU for the exact shape this core requires (unified
// regions, exactly 8 data regions, no instruction regions), establishes the
// default background map for privileged accesses, disables every region,
// and enables the MPU. Mirrors mpu_init exactly, including its probe order.
func (mgr *Manager) Init() ErrorCode {
	typ := cpu.MMIORead32(regType)
	if (typ & typeIRegionMask) != 0 {
		return ErrNotSupported
	}
	if (typ&typeDRegionMask)>>typeDRegionShift != RegionCount {
		return ErrNotSupported
	}
	if (typ & typeSeparateMask) != 0 {
		return ErrNotSupported
	}

	ctrl := cpu.MMIORead32(regCtrl)
	ctrl |= ctrlPRIVDEFENA
	ctrl &^= ctrlHFNMIENA | ctrlEnable
	cpu.MMIOWrite32(regCtrl, ctrl)

	for i := uint32(0); i < RegionCount; i++ {
		cpu.MMIOWrite32(regRNR, i)
		rasr := cpu.MMIORead32(regRASR)
		cpu.MMIOWrite32(regRASR, rasr&^uint32(rasrEnable))
	}

	cpu.MMIOWrite32(regCtrl, cpu.MMIORead32(regCtrl)|ctrlEnable)
	cpu.DSB()
	cpu.ISB()
	return ErrNone
}

// Deinit disables the MPU entirely.
func (mgr *Manager) Deinit() {
	cpu.MMIOWrite32(regCtrl, cpu.MMIORead32(regCtrl)&^uint32(ctrlEnable))
}

// accessPattern maps a privileged/unprivileged access pair to the
// ARMv7-M AP field encoding, ported verbatim from mpu_enableRegion's
// if/else-if chain.
func accessPattern(priv, unpriv Access) (uint32, ErrorCode) {
	switch {
	case priv == AccessNone && unpriv == AccessNone:
		return 0x00, ErrNone
	case priv == AccessReadWrite && unpriv == AccessNone:
		return 0x01, ErrNone
	case priv == AccessReadWrite && unpriv == AccessReadOnly:
		return 0x02, ErrNone
	case priv == AccessReadWrite && unpriv == AccessReadWrite:
		return 0x03, ErrNone
	case priv == AccessReadOnly && unpriv == AccessNone:
		return 0x05, ErrNone
	case priv == AccessReadOnly && unpriv == AccessReadOnly:
		return 0x06, ErrNone
	default:
		return 0, ErrInvalidAccessCombination
	}
}

// rasrValue composes the RASR register value for r, given its resolved AP
// field and whether its base address falls in internal memory. The SIZE
// field encodes region size as 2^(SIZE+1) bytes, so r.SizeLog2 (log2 of the
// region size) is written as SizeLog2-1.
func rasrValue(r Region, ap uint32, internal bool) uint32 {
	var v uint32
	if !r.InstructionAccessible {
		v |= rasrXN
	}
	v |= ap << rasrAPShift
	v |= rasrC
	if !internal {
		v |= rasrB
	}
	v |= rasrS
	v |= uint32(r.SizeLog2-1) << rasrSizeShift
	v |= rasrEnable
	return v
}

// EnableRegion validates and programs region index with settings, then
// enables it. Mirrors mpu_enableRegion's validation order: index bounds,
// minimum size, access combination, and base-address membership in the
// board's memory map, in that order.
func (mgr *Manager) EnableRegion(index uint8, r Region) ErrorCode {
	if index >= RegionCount {
		return ErrInvalidIndex
	}
	if r.SizeLog2 < 5 {
		return ErrInvalidArgument
	}
	ap, errc := accessPattern(r.AccessPrivileged, r.AccessUnprivileged)
	if errc != ErrNone {
		return errc
	}

	sec, ok := mgr.mm.Find(r.BaseAddress, 0)
	if !ok {
		return ErrInvalidAddress
	}

	cpu.MMIOWrite32(regRNR, uint32(index))
	cpu.MMIOWrite32(regRASR, cpu.MMIORead32(regRASR)&^uint32(rasrEnable))

	cpu.MMIOWrite32(regRBAR, uint32(r.BaseAddress))
	cpu.MMIOWrite32(regRASR, rasrValue(r, ap, sec.Internal))

	cpu.DSB()
	cpu.ISB()
	return ErrNone
}

// DisableRegion turns off region index without altering its stored
// configuration, so a later EnableRegion call is not required to restate it
// (mpu_disableRegion only clears the enable bit).
func (mgr *Manager) DisableRegion(index uint8) ErrorCode {
	if index >= RegionCount {
		return ErrInvalidIndex
	}
	cpu.MMIOWrite32(regRNR, uint32(index))
	cpu.MMIOWrite32(regRASR, cpu.MMIORead32(regRASR)&^uint32(rasrEnable))
	cpu.DSB()
	cpu.ISB()
	return ErrNone
}
