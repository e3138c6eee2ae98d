package vm

import "fmt"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/util"

// Sv39 three-level page tables. Each table is one frame holding 512
// 8-byte entries. A virtual address is 25 unused bits, three 9-bit
// level indices, and a 12-bit page offset.

type Pte_t uint64

// Pagetable_t is the physical address of a table's root frame.
type Pagetable_t = mem.Pa_t

const (
	PTE_V Pte_t = 1 << 0
	PTE_R Pte_t = 1 << 1
	PTE_W Pte_t = 1 << 2
	PTE_X Pte_t = 1 << 3
	PTE_U Pte_t = 1 << 4
)

// one beyond the highest possible virtual address. MAXVA is actually
// one bit less than the max allowed by Sv39 to avoid signext of
// addresses with the high bit set.
const MAXVA uintptr = 1 << (9 + 9 + 9 + 12 - 1)

func px(level int, va uintptr) int {
	return int((va >> (mem.PGSHIFT + 9*uint(level))) & 0x1ff)
}

func Pa2pte(pa mem.Pa_t) Pte_t {
	return Pte_t(pa>>12) << 10
}

func Pte2pa(pte Pte_t) mem.Pa_t {
	return mem.Pa_t(pte>>10) << 12
}

func Pteflags(pte Pte_t) Pte_t {
	return pte & 0x3ff
}

// Pteref_t names one entry slot within a table frame so callers can
// read or install a mapping in place.
type Pteref_t struct {
	pg  *mem.Bytepg_t
	idx int
}

func (pr Pteref_t) Load() Pte_t {
	return Pte_t(util.Readn(pr.pg[:], 8, pr.idx*8))
}

func (pr Pteref_t) Store(pte Pte_t) {
	util.Writen(pr.pg[:], 8, pr.idx*8, int(pte))
}

// Walk descends from the root to the level-0 entry for va, allocating
// zeroed interior tables on demand when alloc is set. Returns ok ==
// false if the mapping doesn't exist (alloc clear) or a table frame
// could not be allocated.
func Walk(pt Pagetable_t, va uintptr, alloc bool) (Pteref_t, bool) {
	if va >= MAXVA {
		panic("walk")
	}
	pm := mem.Physmem
	for level := 2; level > 0; level-- {
		pg := pm.Pg(pt)
		idx := px(level, va)
		pte := Pte_t(util.Readn(pg[:], 8, idx*8))
		if pte&PTE_V != 0 {
			pt = Pte2pa(pte)
		} else {
			if !alloc {
				return Pteref_t{}, false
			}
			npa, ok := pm.AllocZero()
			if !ok {
				return Pteref_t{}, false
			}
			util.Writen(pg[:], 8, idx*8, int(Pa2pte(npa)|PTE_V))
			pt = npa
		}
	}
	return Pteref_t{pm.Pg(pt), px(0, va)}, true
}

// Walkaddr translates a user virtual address, requiring a valid leaf
// with the user bit.
func Walkaddr(pt Pagetable_t, va uintptr) (mem.Pa_t, bool) {
	if va >= MAXVA {
		return 0, false
	}
	pr, ok := Walk(pt, va, false)
	if !ok {
		return 0, false
	}
	pte := pr.Load()
	if pte&PTE_V == 0 || pte&PTE_U == 0 {
		return 0, false
	}
	return Pte2pa(pte), true
}

// Mappages installs leaves covering [va, va+size) pointing at
// successive frames starting at pa. va and size need not be aligned;
// the range is rounded outward. Remapping an existing entry is a
// fatal double-map.
func Mappages(pt Pagetable_t, va uintptr, size int, pa mem.Pa_t, perm Pte_t) defs.Err_t {
	if size <= 0 {
		panic("mappages: size")
	}
	a := uintptr(util.Rounddown(int(va), mem.PGSIZE))
	last := uintptr(util.Rounddown(int(va)+size-1, mem.PGSIZE))
	for {
		pr, ok := Walk(pt, a, true)
		if !ok {
			return -defs.ENOMEM
		}
		if pr.Load()&PTE_V != 0 {
			panic("mappages: remap")
		}
		pr.Store(Pa2pte(pa) | perm | PTE_V)
		if a == last {
			break
		}
		a += mem.PGSIZE
		pa += mem.PGSIZE
	}
	return 0
}

// Unmap removes npages of mappings starting at page-aligned va. Every
// entry must be a valid leaf. If free is set the backing frames are
// returned to the allocator.
func Unmap(pt Pagetable_t, va uintptr, npages int, free bool) {
	if va%mem.PGSIZE != 0 {
		panic("unmap: not aligned")
	}
	for a := va; a < va+uintptr(npages)*mem.PGSIZE; a += mem.PGSIZE {
		pr, ok := Walk(pt, a, false)
		if !ok {
			panic("unmap: walk")
		}
		pte := pr.Load()
		if pte&PTE_V == 0 {
			panic("unmap: not mapped")
		}
		if Pteflags(pte) == PTE_V {
			panic("unmap: not a leaf")
		}
		if free {
			mem.Physmem.Free(Pte2pa(pte))
		}
		pr.Store(0)
	}
}

// freewalk frees interior table frames. All leaves must already have
// been unmapped.
func freewalk(pt Pagetable_t) {
	pm := mem.Physmem
	pg := pm.Pg(pt)
	for i := 0; i < 512; i++ {
		pte := Pte_t(util.Readn(pg[:], 8, i*8))
		if pte&PTE_V != 0 && pte&(PTE_R|PTE_W|PTE_X) == 0 {
			freewalk(Pte2pa(pte))
			util.Writen(pg[:], 8, i*8, 0)
		} else if pte&PTE_V != 0 {
			panic(fmt.Sprintf("freewalk: leaf %#x", uint64(pte)))
		}
	}
	pm.Free(pt)
}
