package mem

import "testing"

func TestAllocFree(t *testing.T) {
	pm := Bootmem(16)
	if pm.Nfree() != 16 {
		t.Fatalf("nfree %d", pm.Nfree())
	}

	pas := make([]Pa_t, 0, 16)
	for {
		pa, ok := pm.Alloc()
		if !ok {
			break
		}
		if pa%PGSIZE != 0 || pa < KERNBASE || pa >= pm.Phystop() {
			t.Fatalf("bad pa %#x", uintptr(pa))
		}
		pas = append(pas, pa)
	}
	if len(pas) != 16 {
		t.Fatalf("allocated %d frames", len(pas))
	}
	if _, ok := pm.Alloc(); ok {
		t.Fatalf("alloc from empty freelist")
	}

	for _, pa := range pas {
		pm.Free(pa)
	}
	if pm.Nfree() != 16 {
		t.Fatalf("nfree %d after free", pm.Nfree())
	}
}

func TestAllocZero(t *testing.T) {
	pm := Bootmem(4)
	pa, ok := pm.AllocZero()
	if !ok {
		t.Fatalf("alloczero")
	}
	for i, v := range pm.Pg(pa) {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}

func TestFrameReuse(t *testing.T) {
	pm := Bootmem(4)
	seen := make(map[Pa_t]bool)
	for i := 0; i < 4; i++ {
		pa, ok := pm.Alloc()
		if !ok {
			t.Fatalf("alloc")
		}
		if seen[pa] {
			t.Fatalf("frame %#x handed out twice", uintptr(pa))
		}
		seen[pa] = true
		pm.Free(pa)
		// freed frame is available again
		npa, ok := pm.Alloc()
		if !ok || npa != pa {
			t.Fatalf("expected %#x back, got %#x", uintptr(pa), uintptr(npa))
		}
	}
}
