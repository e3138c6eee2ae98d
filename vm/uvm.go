package vm

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/util"

// User address spaces. The program image starts at virtual 0 and grows
// upward; the guard page, stack, trap frame and trampoline are placed
// by exec and allocproc.

// Uvmcreate returns an empty user page table.
func Uvmcreate() (Pagetable_t, defs.Err_t) {
	pa, ok := mem.Physmem.AllocZero()
	if !ok {
		return 0, -defs.ENOMEM
	}
	return pa, 0
}

// Uvmfirst loads the very first process's image into address 0. Only
// used by userinit; src must fit in one page.
func Uvmfirst(pt Pagetable_t, src []uint8) {
	if len(src) > mem.PGSIZE {
		panic("uvmfirst: more than a page")
	}
	pa, ok := mem.Physmem.AllocZero()
	if !ok {
		panic("uvmfirst: no mem")
	}
	if err := Mappages(pt, 0, mem.PGSIZE, pa, PTE_W|PTE_R|PTE_X|PTE_U); err != 0 {
		panic("uvmfirst: map")
	}
	copy(mem.Physmem.Pg(pa)[:], src)
}

// Uvmalloc grows the user range from oldsz to newsz with zeroed
// frames mapped user|read plus xperm. On failure everything mapped by
// this call is released and oldsz is still the valid size.
func Uvmalloc(pt Pagetable_t, oldsz, newsz int, xperm Pte_t) (int, defs.Err_t) {
	if newsz < oldsz {
		return oldsz, 0
	}
	oldsz = util.Roundup(oldsz, mem.PGSIZE)
	for a := oldsz; a < newsz; a += mem.PGSIZE {
		pa, ok := mem.Physmem.AllocZero()
		if !ok {
			Uvmdealloc(pt, a, oldsz)
			return 0, -defs.ENOMEM
		}
		if err := Mappages(pt, uintptr(a), mem.PGSIZE, pa, PTE_R|PTE_U|xperm); err != 0 {
			mem.Physmem.Free(pa)
			Uvmdealloc(pt, a, oldsz)
			return 0, err
		}
	}
	return newsz, 0
}

// Uvmdealloc shrinks the user range from oldsz to newsz, freeing the
// frames of pages no longer needed.
func Uvmdealloc(pt Pagetable_t, oldsz, newsz int) int {
	if newsz >= oldsz {
		return oldsz
	}
	if util.Roundup(newsz, mem.PGSIZE) < util.Roundup(oldsz, mem.PGSIZE) {
		npages := (util.Roundup(oldsz, mem.PGSIZE) - util.Roundup(newsz, mem.PGSIZE)) / mem.PGSIZE
		Unmap(pt, uintptr(util.Roundup(newsz, mem.PGSIZE)), npages, true)
	}
	return newsz
}

// Uvmcopy copies the first sz bytes of old's mappings into new:
// fresh frames, copied contents, same permission bits. On failure new
// is emptied of whatever was installed.
func Uvmcopy(old, new Pagetable_t, sz int) defs.Err_t {
	pm := mem.Physmem
	for i := 0; i < sz; i += mem.PGSIZE {
		pr, ok := Walk(old, uintptr(i), false)
		if !ok {
			panic("uvmcopy: pte should exist")
		}
		pte := pr.Load()
		if pte&PTE_V == 0 {
			panic("uvmcopy: page not present")
		}
		pa := Pte2pa(pte)
		flags := Pteflags(pte)
		npa, ok := pm.Alloc()
		if !ok {
			Unmap(new, 0, i/mem.PGSIZE, true)
			return -defs.ENOMEM
		}
		copy(pm.Pg(npa)[:], pm.Pg(pa)[:])
		if err := Mappages(new, uintptr(i), mem.PGSIZE, npa, flags); err != 0 {
			pm.Free(npa)
			Unmap(new, 0, i/mem.PGSIZE, true)
			return -defs.ENOMEM
		}
	}
	return 0
}

// Uvmclear strips the user bit from the leaf for va; exec uses this to
// turn the page below the stack into an inaccessible guard.
func Uvmclear(pt Pagetable_t, va uintptr) {
	pr, ok := Walk(pt, va, false)
	if !ok {
		panic("uvmclear")
	}
	pr.Store(pr.Load() &^ PTE_U)
}

// Uvmfree tears down a user address space: unmap and free [0, sz),
// then free the table tree itself.
func Uvmfree(pt Pagetable_t, sz int) {
	if sz > 0 {
		Unmap(pt, 0, util.Roundup(sz, mem.PGSIZE)/mem.PGSIZE, true)
	}
	freewalk(pt)
}
