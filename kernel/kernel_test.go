package kernel

import (
	"strings"
	"testing"

	"github.com/TriHexagon/Polaris/memmap"
)

type recordingSink struct{ strings.Builder }

func (s *recordingSink) WriteString(str string) { s.Builder.WriteString(str) }

type recordingLED struct{ lit bool }

func (l *recordingLED) SetPanicLED() { l.lit = true }

func testBoard() BoardSpec {
	return BoardSpec{
		MemoryMap: memmap.Map{
			{Name: "SRAM", Start: 0x20000000, Size: 64 * 1024, Internal: true},
		},
		Symbols: LinkerSymbols{
			StackStart: 0x20010000,
			StackEnd:   0x2000F000,
			HeapStart:  0x20001000,
			HeapSize:   4096,
		},
		DeviceIntCount: 32,
	}
}

func TestPanicLightsIndicatorAndHalts(t *testing.T) {
	sink := &recordingSink{}
	led := &recordingLED{}
	k := New(Config{}, testBoard(), sink, led)

	haltCalled := false
	k.halt = func() { haltCalled = true }

	k.Panic("test", 7)

	if !led.lit {
		t.Error("Panic must light the indicator")
	}
	if !haltCalled {
		t.Error("Panic must invoke the halt hook")
	}
	got := sink.String()
	if !strings.Contains(got, "KERNEL PANIC asserted by test module, error code") || !strings.Contains(got, "7") {
		t.Errorf("Panic diagnostic = %q, missing expected module/code text", got)
	}
}

func TestPanicToleratesNilIndicator(t *testing.T) {
	k := New(Config{}, testBoard(), nil, nil)
	haltCalled := false
	k.halt = func() { haltCalled = true }

	k.Panic("test", 1)

	if !haltCalled {
		t.Error("Panic must invoke the halt hook even with no LED configured")
	}
}

func TestActlrValueGatesDisdefwbufOnDebug(t *testing.T) {
	if got := actlrValue(0, false); got&actlrDISDEFWBUF != 0 {
		t.Errorf("actlrValue(0, false) = %#x, want DISDEFWBUF clear", got)
	}
	if got := actlrValue(0, true); got&actlrDISDEFWBUF == 0 {
		t.Errorf("actlrValue(0, true) = %#x, want DISDEFWBUF set", got)
	}
	if got := actlrValue(0, true); got&(actlrDISFOLD|actlrDISMCYCINT) != actlrDISFOLD|actlrDISMCYCINT {
		t.Errorf("actlrValue must always set DISFOLD and DISMCYCINT, got %#x", got)
	}
	if got := actlrValue(actlrDISDEFWBUF, false); got&actlrDISDEFWBUF != 0 {
		t.Errorf("actlrValue must clear a previously-set DISDEFWBUF when debug is false, got %#x", got)
	}
}

func TestScrValueSetsSevonpendClearsSleepBits(t *testing.T) {
	got := scrValue(scrSleepDeep | scrSleepOnExit)
	if got&scrSevOnPend == 0 {
		t.Errorf("scrValue must set SEVONPEND, got %#x", got)
	}
	if got&(scrSleepDeep|scrSleepOnExit) != 0 {
		t.Errorf("scrValue must clear SLEEPDEEP/SLEEPONEXIT, got %#x", got)
	}
}

func TestNewWiresUpSubsystems(t *testing.T) {
	k := New(Config{}, testBoard(), nil, nil)
	if k.mgr == nil || k.ctl == nil || k.flt == nil {
		t.Error("New must construct mpu.Manager, intr.Controller and fault.Handlers")
	}
	if k.Heap() != nil {
		t.Error("Heap() must be nil before Start runs")
	}
	if k.Devices() != nil {
		t.Error("Devices() must be nil before Start runs")
	}
}
