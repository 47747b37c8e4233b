// Package device is the kernel's device registry: a catalogue of published
// block/character devices and a list of observers notified of registration
// changes. Both lists are intrusive and heap-backed, ported from the
// original firmware's dev.c, where Dev_DeviceEntry/Dev_EventHandlerEntry
// nodes are carved from the kernel heap rather than tracked by any
// general-purpose allocator.
package device

import (
	"reflect"
	"unsafe"

	"github.com/TriHexagon/Polaris/heap"
)

// ErrorCode identifies a device registry operation failure.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrInvalidDeviceStructure
	ErrDeviceNameExistsAlready
	ErrMemoryAllocationFailed
	ErrDeviceNotRegistered
	ErrHandlerNotRegistered
	ErrInvalidAddress
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrInvalidDeviceStructure:
		return "device: invalid device structure"
	case ErrDeviceNameExistsAlready:
		return "device: a device with this name and number already exists"
	case ErrMemoryAllocationFailed:
		return "device: catalogue node allocation failed"
	case ErrDeviceNotRegistered:
		return "device: device is not registered"
	case ErrHandlerNotRegistered:
		return "device: observer is not registered"
	case ErrInvalidAddress:
		return "device: nil observer"
	default:
		return "device: no error"
	}
}

// Type distinguishes block devices from character devices.
type Type int

const (
	TypeBlock Type = iota
	TypeChar
)

// Event describes a registry change an observer is notified of.
type Event int

const (
	EventRegistered Event = iota
	EventUnregistered
)

// Device is published to the registry by a driver. The registry only
// borrows the pointer; the caller retains ownership and must keep it alive
// for as long as it stays registered, since the catalogue node pointing to
// it lives outside the Go runtime's normal, GC-scanned heap (see
// deviceEntry below).
type Device struct {
	Name   string
	Number uint32
	Type   Type
	Read   func(off int64, p []byte) (int, error)
	Write  func(off int64, p []byte) (int, error)
	Ioctl  func(req uintptr, arg unsafe.Pointer) error
}

func (d *Device) valid() bool {
	return d != nil && d.Name != "" && (d.Type == TypeBlock || d.Type == TypeChar)
}

// EventObserver is notified of registry changes in registration order.
type EventObserver func(d *Device, ev Event)

func (o EventObserver) identity() uintptr {
	return reflect.ValueOf(o).Pointer()
}

// deviceEntry and observerEntry are the intrusive list nodes. Each is
// carved from the registry's heap via heap.Alloc, exactly as
// Dev_DeviceEntry/Dev_EventHandlerEntry are heap_alloc'd in the original.
// Because this core has no garbage collector watching heap-backed memory,
// the Device/EventObserver values these nodes reference are not roots the
// runtime would keep alive on their own; the caller is responsible for
// that, matching the original's plain pointer-into-driver-owned-memory
// scheme.
type deviceEntry struct {
	next   *deviceEntry
	device *Device
}

type observerEntry struct {
	next     *observerEntry
	observer EventObserver
}

// Registry is the device catalogue and observer list, both backed by h.
type Registry struct {
	h         *heap.Heap
	devices   *deviceEntry
	observers *observerEntry
}

// New creates an empty Registry whose nodes are allocated from h.
func New(h *heap.Heap) *Registry {
	return &Registry{h: h}
}

func (r *Registry) deviceExists(d *Device) bool {
	for e := r.devices; e != nil; e = e.next {
		if e.device.Number == d.Number && e.device.Name == d.Name {
			return true
		}
	}
	return false
}

func allocEntry[T any](h *heap.Heap) *T {
	p := h.Alloc(uint32(unsafe.Sizeof(*new(T))))
	if p == nil {
		return nil
	}
	return (*T)(p)
}

// Register publishes d, notifying every registered observer with
// EventRegistered after the catalogue has been appended to, in observer
// registration order. Mirrors dev_registerDevice's validation order:
// structure validity, then duplicate-name rejection, then allocation.
func (r *Registry) Register(d *Device) ErrorCode {
	if !d.valid() {
		return ErrInvalidDeviceStructure
	}
	if r.deviceExists(d) {
		return ErrDeviceNameExistsAlready
	}

	entry := allocEntry[deviceEntry](r.h)
	if entry == nil {
		return ErrMemoryAllocationFailed
	}
	entry.device = d
	entry.next = nil

	if r.devices == nil {
		r.devices = entry
	} else {
		tail := r.devices
		for tail.next != nil {
			tail = tail.next
		}
		tail.next = entry
	}

	for obs := r.observers; obs != nil; obs = obs.next {
		obs.observer(d, EventRegistered)
	}
	return ErrNone
}

// Unregister removes d from the catalogue, notifying observers with
// EventUnregistered before the node is unlinked and freed, mirroring
// dev_unregisterDevice's notify-then-remove ordering.
func (r *Registry) Unregister(d *Device) ErrorCode {
	if !d.valid() {
		return ErrInvalidDeviceStructure
	}
	if r.devices == nil {
		return ErrDeviceNotRegistered
	}

	var prev *deviceEntry
	cur := r.devices
	for cur != nil {
		if cur.device == d {
			break
		}
		if cur.next == nil {
			return ErrDeviceNotRegistered
		}
		prev = cur
		cur = cur.next
	}

	for obs := r.observers; obs != nil; obs = obs.next {
		obs.observer(d, EventUnregistered)
	}

	if prev == nil {
		r.devices = cur.next
	} else {
		prev.next = cur.next
	}
	r.h.Free(unsafe.Pointer(cur))
	return ErrNone
}

// RegisterObserver appends o to the observer list; it is called for every
// future Register/Unregister once it joins, in the order observers were
// added.
func (r *Registry) RegisterObserver(o EventObserver) ErrorCode {
	if o == nil {
		return ErrInvalidAddress
	}

	entry := allocEntry[observerEntry](r.h)
	if entry == nil {
		return ErrMemoryAllocationFailed
	}
	entry.observer = o
	entry.next = nil

	if r.observers == nil {
		r.observers = entry
	} else {
		tail := r.observers
		for tail.next != nil {
			tail = tail.next
		}
		tail.next = entry
	}
	return ErrNone
}

// UnregisterObserver removes o from the observer list, matched by function
// identity the way dev_unregisterEventHandler matches by raw function
// pointer. Closures created fresh at each call site will not match a
// previously registered one, the same constraint a bare function pointer
// carries in the original.
func (r *Registry) UnregisterObserver(o EventObserver) ErrorCode {
	if o == nil {
		return ErrInvalidAddress
	}
	if r.observers == nil {
		return ErrHandlerNotRegistered
	}

	target := o.identity()
	var prev *observerEntry
	cur := r.observers
	for cur != nil {
		if cur.observer.identity() == target {
			break
		}
		if cur.next == nil {
			return ErrHandlerNotRegistered
		}
		prev = cur
		cur = cur.next
	}

	if prev == nil {
		r.observers = cur.next
	} else {
		prev.next = cur.next
	}
	r.h.Free(unsafe.Pointer(cur))
	return ErrNone
}

// Deinit unregisters every remaining device and observer, in list order,
// mirroring dev_deinit's drain loops.
func (r *Registry) Deinit() {
	for r.devices != nil {
		r.Unregister(r.devices.device)
	}
	for r.observers != nil {
		r.UnregisterObserver(r.observers.observer)
	}
}
