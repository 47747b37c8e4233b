package heap

import (
	"testing"
	"unsafe"
)

func newTestHeap(t *testing.T, size uint32) *Heap {
	t.Helper()
	region := make([]byte, size)
	return New(region)
}

func TestSplit(t *testing.T) {
	h := newTestHeap(t, 1024)
	p := h.Alloc(16)
	if p == nil {
		t.Fatal("Alloc(16) returned nil")
	}
	if got, want := h.offsetOf(p), uint32(4); got != want {
		t.Errorf("data offset = %d, want %d", got, want)
	}
	heapSize, allocated, free := h.Stats()
	if heapSize != 1024 || allocated != 20 || free != 1004 {
		t.Errorf("Stats() = (%d, %d, %d), want (1024, 20, 1004)", heapSize, allocated, free)
	}
}

func TestNoSplitWhenRemainderTooSmall(t *testing.T) {
	h := newTestHeap(t, 1024)
	// total reserved = 1013 + allocNodeSize(4) = 1017, aligned to 1020;
	// remainder = 1024-1020 = 4 < freeNodeSize(8), so the whole block is used.
	p := h.Alloc(1013)
	if p == nil {
		t.Fatal("Alloc(1013) returned nil")
	}
	_, allocated, free := h.Stats()
	if allocated != 1024 || free != 0 {
		t.Errorf("Stats() allocated/free = %d/%d, want 1024/0", allocated, free)
	}
}

func TestThreeWayCoalesce(t *testing.T) {
	h := newTestHeap(t, 1024)
	a := h.Alloc(16)
	b := h.Alloc(16)
	c := h.Alloc(16)
	if a == nil || b == nil || c == nil {
		t.Fatal("allocations unexpectedly failed")
	}
	h.Free(a)
	h.Free(c)
	h.Free(b)

	heapSize, allocated, free := h.Stats()
	if heapSize != 1024 || allocated != 0 || free != 1024 {
		t.Errorf("Stats() = (%d, %d, %d), want (1024, 0, 1024)", heapSize, allocated, free)
	}
	if h.head != 0 {
		t.Errorf("head offset = %d, want 0 (single block spanning the heap)", h.head)
	}
	if n := h.nodeAt(0); n.size != 1024 || n.next != nilOffset {
		t.Errorf("merged node = {next:%d size:%d}, want {next:nilOffset size:1024}", n.next, n.size)
	}
}

func TestHeapExhaustion(t *testing.T) {
	h := newTestHeap(t, 64)
	if p := h.Alloc(100); p != nil {
		t.Errorf("Alloc(100) on a 64-byte heap = %v, want nil", p)
	}
	h.Free(nil) // must be a no-op, not a panic

	heapSize, allocated, free := h.Stats()
	if heapSize != 64 || allocated != 0 || free != 64 {
		t.Errorf("Stats() = (%d, %d, %d), want (64, 0, 64)", heapSize, allocated, free)
	}
}

func TestConservationAcrossRandomSequence(t *testing.T) {
	h := newTestHeap(t, 4096)
	var live []unsafe.Pointer
	sizes := []uint32{8, 24, 1, 100, 16, 256, 4, 64}
	for round := 0; round < 3; round++ {
		for _, s := range sizes {
			if p := h.Alloc(s); p != nil {
				live = append(live, p)
			}
		}
		for _, p := range live {
			h.Free(p)
		}
		live = live[:0]

		heapSize, allocated, free := h.Stats()
		if heapSize != 4096 || allocated+free != heapSize {
			t.Fatalf("conservation violated: heapSize=%d allocated=%d free=%d", heapSize, allocated, free)
		}
		if allocated != 0 {
			t.Fatalf("round %d: expected all memory freed, allocated=%d", round, allocated)
		}
	}
}
