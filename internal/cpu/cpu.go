// Package cpu declares the low-level register and barrier primitives that
// the kernel core needs but cannot implement in portable Go: memory-mapped
// register access, instruction/data synchronization barriers, and the
// handful of CPU-state accessors used by intr, mpu and fault. Every
// primitive is supplied from outside Go, by the board's assembly startup
// code, via go:linkname. This module ships no such code and no host shim,
// so any binary (including a test binary) that references one of these
// primitives fails to link. The body-less
// function's Go name must equal the external symbol named in the pragma, so
// each primitive below is declared once under its bare external name and
// re-exported through a thin capitalized wrapper other packages call.
package cpu

import "unsafe"

//go:linkname mmio_write32 mmio_write32
//go:nosplit
func mmio_write32(addr uintptr, val uint32)

//go:linkname mmio_read32 mmio_read32
//go:nosplit
func mmio_read32(addr uintptr) uint32

//go:linkname dsb dsb
//go:nosplit
func dsb()

//go:linkname isb isb
//go:nosplit
func isb()

//go:linkname disable_irqs disable_irqs
//go:nosplit
func disable_irqs() bool

//go:linkname restore_irqs restore_irqs
//go:nosplit
func restore_irqs(wasEnabled bool)

//go:linkname set_vtor set_vtor
//go:nosplit
func set_vtor(addr uintptr)

//go:linkname bzero bzero
//go:nosplit
func bzero(ptr unsafe.Pointer, n uint32)

// MMIOWrite32 stores val to the 32-bit memory-mapped register at addr.
func MMIOWrite32(addr uintptr, val uint32) { mmio_write32(addr, val) }

// MMIORead32 loads the 32-bit memory-mapped register at addr.
func MMIORead32(addr uintptr) uint32 { return mmio_read32(addr) }

// DSB issues a data synchronization barrier.
func DSB() { dsb() }

// ISB issues an instruction synchronization barrier.
func ISB() { isb() }

// DisableIRQs masks all maskable interrupts (CPSID i) and reports whether
// they were previously enabled, so the caller can restore prior state.
func DisableIRQs() (wasEnabled bool) { return disable_irqs() }

// RestoreIRQs unmasks interrupts if wasEnabled is true.
func RestoreIRQs(wasEnabled bool) { restore_irqs(wasEnabled) }

// SetVTOR programs the Vector Table Offset Register with the address of
// the in-RAM vector table.
func SetVTOR(addr uintptr) { set_vtor(addr) }

// Bzero zeroes n bytes starting at ptr, used for header init ahead of any
// Go-managed allocation at that address.
func Bzero(ptr unsafe.Pointer, n uint32) { bzero(ptr, n) }
