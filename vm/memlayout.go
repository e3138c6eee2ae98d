package vm

import "github.com/shimomura1004/xv6-riscv/mem"

// Physical memory layout, matching qemu's -machine virt
// (hw/riscv/virt.c):
//
// 00001000 -- boot ROM
// 02000000 -- CLINT
// 0C000000 -- PLIC
// 10000000 -- uart0
// 10001000 -- virtio disk
// 80000000 -- kernel loads here; RAM above

const (
	UART0      = 0x10000000
	UART0_IRQ  = 10
	VIRTIO0    = 0x10001000
	VIRTIO0_IRQ = 1

	PLIC     = 0x0c000000
	PLICSIZE = 0x400000

	CLINT = 0x2000000
)

// the trampoline page sits at the highest address in both user and
// kernel space; the trap-frame page is just below it in user space.
const (
	TRAMPOLINE = MAXVA - mem.PGSIZE
	TRAPFRAME  = TRAMPOLINE - mem.PGSIZE
)

// Kstack returns the fixed kernel-stack virtual address for process
// table slot n. each stack is one page with an unmapped guard page
// below it.
func Kstack(n int) uintptr {
	return TRAMPOLINE - uintptr(n+1)*2*mem.PGSIZE
}
