package device

import (
	"testing"

	"github.com/TriHexagon/Polaris/heap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	h := heap.New(make([]byte, 4096))
	return New(h)
}

func TestRegisterRejectsInvalidStructure(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register(&Device{Name: "", Type: TypeChar}); err != ErrInvalidDeviceStructure {
		t.Errorf("Register with empty name = %v, want ErrInvalidDeviceStructure", err)
	}
	if err := r.Register(&Device{Name: "x", Type: 99}); err != ErrInvalidDeviceStructure {
		t.Errorf("Register with invalid type = %v, want ErrInvalidDeviceStructure", err)
	}
}

func TestRegisterRejectsDuplicateNameAndNumber(t *testing.T) {
	r := newTestRegistry(t)
	d1 := &Device{Name: "uart0", Number: 0, Type: TypeChar}
	d2 := &Device{Name: "uart0", Number: 0, Type: TypeChar}
	if err := r.Register(d1); err != ErrNone {
		t.Fatalf("first Register = %v, want ErrNone", err)
	}
	if err := r.Register(d2); err != ErrDeviceNameExistsAlready {
		t.Errorf("duplicate Register = %v, want ErrDeviceNameExistsAlready", err)
	}
}

// S4: register observers O1, O2, then register device D1. O1 must be
// called before O2, both with EventRegistered and device pointer D1.
func TestObserverOrderingOnRegister(t *testing.T) {
	r := newTestRegistry(t)
	var calls []string

	o1 := func(d *Device, ev Event) { calls = append(calls, "O1") }
	o2 := func(d *Device, ev Event) { calls = append(calls, "O2") }
	if err := r.RegisterObserver(o1); err != ErrNone {
		t.Fatalf("RegisterObserver(o1) = %v", err)
	}
	if err := r.RegisterObserver(o2); err != ErrNone {
		t.Fatalf("RegisterObserver(o2) = %v", err)
	}

	d1 := &Device{Name: "d1", Type: TypeBlock}
	var gotEvent Event
	var gotDevice *Device
	r.RegisterObserver(func(d *Device, ev Event) {
		gotEvent = ev
		gotDevice = d
	})

	if err := r.Register(d1); err != ErrNone {
		t.Fatalf("Register(d1) = %v", err)
	}

	if len(calls) != 2 || calls[0] != "O1" || calls[1] != "O2" {
		t.Errorf("observer call order = %v, want [O1 O2]", calls)
	}
	if gotEvent != EventRegistered || gotDevice != d1 {
		t.Errorf("observer saw (event=%v, device=%v), want (EventRegistered, %v)", gotEvent, gotDevice, d1)
	}
}

func TestUnregisterNotifiesBeforeUnlinking(t *testing.T) {
	r := newTestRegistry(t)
	d := &Device{Name: "d", Type: TypeChar}
	r.Register(d)

	var sawDuringNotify bool
	r.RegisterObserver(func(dev *Device, ev Event) {
		if ev == EventUnregistered {
			sawDuringNotify = r.devices != nil
		}
	})

	if err := r.Unregister(d); err != ErrNone {
		t.Fatalf("Unregister(d) = %v", err)
	}
	if !sawDuringNotify {
		t.Error("expected the device still linked in the catalogue while observers are notified")
	}
	if r.devices != nil {
		t.Error("expected the catalogue empty after Unregister returns")
	}
}

func TestUnregisterUnknownDeviceFails(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Unregister(&Device{Name: "ghost", Type: TypeChar}); err != ErrDeviceNotRegistered {
		t.Errorf("Unregister on an empty catalogue = %v, want ErrDeviceNotRegistered", err)
	}
	r.Register(&Device{Name: "real", Type: TypeChar})
	if err := r.Unregister(&Device{Name: "ghost", Type: TypeChar}); err != ErrDeviceNotRegistered {
		t.Errorf("Unregister of an unregistered device = %v, want ErrDeviceNotRegistered", err)
	}
}

func TestUnregisterObserverByIdentity(t *testing.T) {
	r := newTestRegistry(t)
	called := false
	o := EventObserver(func(d *Device, ev Event) { called = true })
	r.RegisterObserver(o)

	if err := r.UnregisterObserver(o); err != ErrNone {
		t.Fatalf("UnregisterObserver = %v, want ErrNone", err)
	}
	r.Register(&Device{Name: "d", Type: TypeChar})
	if called {
		t.Error("unregistered observer must not be notified")
	}

	if err := r.UnregisterObserver(o); err != ErrHandlerNotRegistered {
		t.Errorf("second UnregisterObserver = %v, want ErrHandlerNotRegistered", err)
	}
}

func TestDeinitDrainsBothLists(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(&Device{Name: "a", Type: TypeChar})
	r.Register(&Device{Name: "b", Type: TypeBlock})
	r.RegisterObserver(func(d *Device, ev Event) {})

	r.Deinit()

	if r.devices != nil || r.observers != nil {
		t.Error("Deinit must leave both lists empty")
	}
}
