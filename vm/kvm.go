package vm

import "github.com/shimomura1004/xv6-riscv/mem"

// The kernel address space: a direct map of the device MMIO windows
// and of RAM, with the trampoline at the top. Per-process kernel
// stacks are mapped high by the process layer with a guard page
// between them.

// pages of the kernel image mapped read+execute at KERNBASE; the rest
// of RAM is read+write.
const ktextpgs = 4

var kpmap Pagetable_t
var trampoline mem.Pa_t

// Kpmap returns the kernel page table built by Kvminit.
func Kpmap() Pagetable_t {
	return kpmap
}

// Trampoline returns the frame shared by every address space as the
// trampoline page.
func Trampoline() mem.Pa_t {
	return trampoline
}

func kvmmap(va uintptr, pa mem.Pa_t, sz int, perm Pte_t) {
	if err := Mappages(kpmap, va, sz, pa, perm); err != 0 {
		panic("kvmmap")
	}
}

// Kvmmap adds a mapping to the kernel page table; used when creating
// per-process kernel stacks.
func Kvmmap(va uintptr, pa mem.Pa_t, sz int, perm Pte_t) {
	kvmmap(va, pa, sz, perm)
}

// Kvminit builds the kernel page table.
func Kvminit() Pagetable_t {
	pm := mem.Physmem
	pa, ok := pm.AllocZero()
	if !ok {
		panic("kvminit: no mem")
	}
	kpmap = pa

	// uart registers
	kvmmap(UART0, UART0, mem.PGSIZE, PTE_R|PTE_W)
	// virtio mmio disk interface
	kvmmap(VIRTIO0, VIRTIO0, mem.PGSIZE, PTE_R|PTE_W)
	// PLIC
	kvmmap(PLIC, PLIC, PLICSIZE, PTE_R|PTE_W)

	// kernel text, then data and the rest of RAM
	ktext := ktextpgs * mem.PGSIZE
	kvmmap(uintptr(mem.KERNBASE), mem.KERNBASE, ktext, PTE_R|PTE_X)
	kvmmap(uintptr(mem.KERNBASE)+uintptr(ktext), mem.KERNBASE+mem.Pa_t(ktext),
		int(pm.Phystop()-mem.KERNBASE)-ktext, PTE_R|PTE_W)

	// the trampoline page, shared by every address space
	tpa, ok := pm.Alloc()
	if !ok {
		panic("kvminit: no mem")
	}
	trampoline = tpa
	kvmmap(TRAMPOLINE, trampoline, mem.PGSIZE, PTE_R|PTE_X)

	return kpmap
}
