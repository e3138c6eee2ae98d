package vm

import "testing"

import "github.com/google/go-cmp/cmp"

import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/ustr"

func bootvm(t *testing.T, npages int) {
	t.Helper()
	mem.Bootmem(npages)
}

func mustCreate(t *testing.T) Pagetable_t {
	t.Helper()
	pt, err := Uvmcreate()
	if err != 0 {
		t.Fatalf("uvmcreate: %v", err)
	}
	return pt
}

func TestMapWalkRoundtrip(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)

	pa, _ := mem.Physmem.Alloc()
	if err := Mappages(pt, 0x5000, mem.PGSIZE, pa, PTE_R|PTE_W|PTE_U); err != 0 {
		t.Fatalf("mappages: %v", err)
	}

	got, ok := Walkaddr(pt, 0x5123)
	if !ok {
		t.Fatalf("walkaddr failed")
	}
	if got != pa {
		t.Fatalf("walkaddr %#x, want %#x", uintptr(got), uintptr(pa))
	}

	pr, ok := Walk(pt, 0x5000, false)
	if !ok {
		t.Fatalf("walk")
	}
	if flags := Pteflags(pr.Load()); flags != PTE_R|PTE_W|PTE_U|PTE_V {
		t.Fatalf("flags %#x", uint64(flags))
	}

	// an unmapped neighbor does not resolve
	if _, ok := Walkaddr(pt, 0x6000); ok {
		t.Fatalf("unmapped va resolved")
	}
}

func TestRemapPanics(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)
	pa, _ := mem.Physmem.Alloc()
	if err := Mappages(pt, 0x1000, mem.PGSIZE, pa, PTE_R); err != 0 {
		t.Fatalf("mappages: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("double map did not panic")
		}
	}()
	Mappages(pt, 0x1000, mem.PGSIZE, pa, PTE_R)
}

func TestUnmapNotMappedPanics(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("unmap of hole did not panic")
		}
	}()
	Unmap(pt, 0x8000, 1, false)
}

func TestUvmallocDealloc(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)

	sz, err := Uvmalloc(pt, 0, 3*mem.PGSIZE, PTE_W)
	if err != 0 {
		t.Fatalf("uvmalloc: %v", err)
	}
	if sz != 3*mem.PGSIZE {
		t.Fatalf("sz %d", sz)
	}
	for va := uintptr(0); va < 3*mem.PGSIZE; va += mem.PGSIZE {
		pa, ok := Walkaddr(pt, va)
		if !ok {
			t.Fatalf("va %#x not mapped", va)
		}
		for _, b := range mem.Physmem.Pg(pa) {
			if b != 0 {
				t.Fatalf("allocated page not zeroed")
			}
		}
	}

	sz = Uvmdealloc(pt, sz, mem.PGSIZE)
	if sz != mem.PGSIZE {
		t.Fatalf("dealloc sz %d", sz)
	}
	if _, ok := Walkaddr(pt, 2*mem.PGSIZE); ok {
		t.Fatalf("deallocated page still mapped")
	}
	if _, ok := Walkaddr(pt, 0); !ok {
		t.Fatalf("remaining page lost")
	}
}

func TestUvmallocExhaustionRollsBack(t *testing.T) {
	bootvm(t, 8) // far too few frames for the request
	pt := mustCreate(t)
	before := mem.Physmem.Nfree()
	if _, err := Uvmalloc(pt, 0, 64*mem.PGSIZE, PTE_W); err == 0 {
		t.Fatalf("uvmalloc succeeded with 8 frames")
	}
	// everything the failed grow mapped was given back (interior
	// page-table nodes stay with the tree)
	if _, ok := Walkaddr(pt, 0); ok {
		t.Fatalf("failed grow left leaf mapped")
	}
	after := mem.Physmem.Nfree()
	if after > before {
		t.Fatalf("nfree grew: %d -> %d", before, after)
	}
}

func TestUvmcopy(t *testing.T) {
	bootvm(t, 64)
	src := mustCreate(t)
	if _, err := Uvmalloc(src, 0, 2*mem.PGSIZE, PTE_W); err != 0 {
		t.Fatalf("uvmalloc")
	}
	msg := []uint8("page table data")
	if err := Copyout(src, mem.PGSIZE+7, msg); err != 0 {
		t.Fatalf("copyout: %v", err)
	}

	dst := mustCreate(t)
	if err := Uvmcopy(src, dst, 2*mem.PGSIZE); err != 0 {
		t.Fatalf("uvmcopy: %v", err)
	}

	// same contents through fresh frames
	got := make([]uint8, len(msg))
	if err := Copyin(dst, got, mem.PGSIZE+7); err != 0 {
		t.Fatalf("copyin: %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Fatalf("copied contents differ: %s", diff)
	}
	spa, _ := Walkaddr(src, 0)
	dpa, _ := Walkaddr(dst, 0)
	if spa == dpa {
		t.Fatalf("uvmcopy shared a frame")
	}

	// the copy is by value: later writes don't bleed through
	if err := Copyout(src, mem.PGSIZE+7, []uint8("XXXX")); err != 0 {
		t.Fatalf("copyout: %v", err)
	}
	if err := Copyin(dst, got, mem.PGSIZE+7); err != 0 {
		t.Fatalf("copyin: %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Fatalf("copy not isolated: %s", diff)
	}
}

func TestCopyinstr(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)
	if _, err := Uvmalloc(pt, 0, 2*mem.PGSIZE, PTE_W); err != 0 {
		t.Fatalf("uvmalloc")
	}

	// a string straddling a page boundary
	va := uintptr(mem.PGSIZE - 3)
	if err := Copyout(pt, va, []uint8("straddle\x00")); err != 0 {
		t.Fatalf("copyout")
	}
	s, err := Copyinstr(pt, va, 64)
	if err != 0 {
		t.Fatalf("copyinstr: %v", err)
	}
	if !s.Eq(ustr.Ustr("straddle")) {
		t.Fatalf("got %q", s.String())
	}

	// no NUL within max
	if err := Copyout(pt, 0, []uint8("xxxx")); err != 0 {
		t.Fatalf("copyout")
	}
	if _, err := Copyinstr(pt, 0, 3); err == 0 {
		t.Fatalf("unterminated string accepted")
	}
}

func TestUvmclearDeniesUser(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)
	if _, err := Uvmalloc(pt, 0, mem.PGSIZE, PTE_W); err != 0 {
		t.Fatalf("uvmalloc")
	}
	if err := Copyout(pt, 16, []uint8("ok")); err != 0 {
		t.Fatalf("copyout before clear: %v", err)
	}
	Uvmclear(pt, 0)
	if err := Copyout(pt, 16, []uint8("no")); err == 0 {
		t.Fatalf("copyout to guard page succeeded")
	}
	if _, err := Copyinstr(pt, 16, 8); err == 0 {
		t.Fatalf("copyinstr from guard page succeeded")
	}
	// plain copyin only needs a valid leaf
	b := make([]uint8, 2)
	if err := Copyin(pt, b, 16); err != 0 {
		t.Fatalf("copyin: %v", err)
	}
}

func TestUvmfree(t *testing.T) {
	bootvm(t, 64)
	before := mem.Physmem.Nfree()
	pt := mustCreate(t)
	if _, err := Uvmalloc(pt, 0, 4*mem.PGSIZE, PTE_W); err != 0 {
		t.Fatalf("uvmalloc")
	}
	Uvmfree(pt, 4*mem.PGSIZE)
	if after := mem.Physmem.Nfree(); after != before {
		t.Fatalf("leak: nfree %d -> %d", before, after)
	}
}

func TestFreewalkLeafPanics(t *testing.T) {
	bootvm(t, 64)
	pt := mustCreate(t)
	if _, err := Uvmalloc(pt, 0, mem.PGSIZE, PTE_W); err != 0 {
		t.Fatalf("uvmalloc")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("freewalk with live leaf did not panic")
		}
	}()
	// tear down the tree without unmapping the leaf first
	Uvmfree(pt, 0)
}

func TestKvminit(t *testing.T) {
	bootvm(t, 128)
	kpt := Kvminit()

	// trampoline is mapped read+execute at the top
	pr, ok := Walk(kpt, TRAMPOLINE, false)
	if !ok {
		t.Fatalf("trampoline unmapped")
	}
	pte := pr.Load()
	if pte&PTE_V == 0 || pte&PTE_X == 0 || pte&PTE_U != 0 {
		t.Fatalf("trampoline pte %#x", uint64(pte))
	}
	if Pte2pa(pte) != Trampoline() {
		t.Fatalf("trampoline pa")
	}

	// MMIO windows are direct mapped
	for _, va := range []uintptr{UART0, VIRTIO0, PLIC} {
		pr, ok := Walk(kpt, va, false)
		if !ok || pr.Load()&PTE_V == 0 {
			t.Fatalf("mmio %#x unmapped", va)
		}
		if Pte2pa(pr.Load()) != mem.Pa_t(va) {
			t.Fatalf("mmio %#x not direct mapped", va)
		}
	}

	// RAM: text is read+execute, the rest read+write
	pr, _ = Walk(kpt, uintptr(mem.KERNBASE), false)
	if f := Pteflags(pr.Load()); f != PTE_R|PTE_X|PTE_V {
		t.Fatalf("text flags %#x", uint64(f))
	}
	pr, _ = Walk(kpt, uintptr(mem.KERNBASE)+uintptr(ktextpgs*mem.PGSIZE), false)
	if f := Pteflags(pr.Load()); f != PTE_R|PTE_W|PTE_V {
		t.Fatalf("data flags %#x", uint64(f))
	}
}
