package memmap

import "testing"

func testMap() Map {
	return Map{
		{Name: "SRAM1", Start: 0x20000000, Size: 112 * 1024, Internal: true},
		{Name: "SRAM2", Start: 0x2001C000, Size: 16 * 1024, Internal: true},
		{Name: "CCM", Start: 0x10000000, Size: 64 * 1024, Internal: true},
	}
}

func TestSectionContains(t *testing.T) {
	s := Section{Start: 0x1000, Size: 0x100}
	cases := []struct {
		addr uintptr
		size uint32
		want bool
	}{
		{0x1000, 0x100, true},
		{0x1000, 0x101, false},
		{0x1050, 0x10, true},
		{0x1100, 0x1, false},
		{0x0F00, 0x10, false},
	}
	for _, c := range cases {
		if got := s.Contains(c.addr, c.size); got != c.want {
			t.Errorf("Contains(%#x, %d) = %v, want %v", c.addr, c.size, got, c.want)
		}
	}
}

func TestMapFindAndCovers(t *testing.T) {
	m := testMap()
	if !m.Covers(0x20000000, 4) {
		t.Error("expected SRAM1 start to be covered")
	}
	if m.Covers(0xFFFFFFFF, 4) {
		t.Error("did not expect an unmapped address to be covered")
	}
	sec, ok := m.Find(0x2001C100, 4)
	if !ok || sec.Name != "SRAM2" {
		t.Errorf("Find returned %+v, %v; want SRAM2", sec, ok)
	}
	// A request straddling the SRAM1/SRAM2 boundary must not be covered by either.
	if m.Covers(0x2001BFF0, 0x20) {
		t.Error("straddling range must not be covered")
	}
}
