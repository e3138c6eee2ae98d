package kernel

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fd"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/proc"
import "github.com/shimomura1004/xv6-riscv/vm"

// Kernel_t ties the subsystems together: one per booted machine.
type Kernel_t struct {
	Fs      *fs.Fs_t
	Cons    *Console_t
	machine Machine_i
	ncpu    int

	tickslock proc.Spinlock_t
	ticks     int
}

// Bootkernel brings the machine up the way main() does on hardware:
// physical memory, kernel page table, process table, file system,
// devices, the first process, and finally the per-hart scheduler
// loops.
func Bootkernel(npages int, disk fs.Disk_i, machine Machine_i, ncpu int) *Kernel_t {
	mem.Bootmem(npages)
	vm.Kvminit()
	proc.Procinit()

	k := &Kernel_t{}
	k.machine = machine
	k.ncpu = ncpu
	k.tickslock.Name = "time"
	k.Fs = fs.StartFS(disk)

	k.Cons = mkConsole()
	fd.Devsw[defs.D_CONSOLE].Read = k.Cons.Read
	fd.Devsw[defs.D_CONSOLE].Write = k.Cons.Write

	// the first process gets one page of user memory: the initcode
	// image that execs /init
	cwd := &fd.Cwd_t{Fs: k.Fs, Ip: k.Fs.Root()}
	proc.Userinit(k.run, cwd, make([]uint8, 64))

	proc.StartHarts(ncpu)
	return k
}

// Shutdown stops the scheduler loops and flushes the disk. Only the
// hosted harness calls this; real kernels don't return.
func (k *Kernel_t) Shutdown() {
	proc.StopHarts(k.ncpu)
	k.Fs.StopFS()
}

// Uptime returns the timer tick count.
func (k *Kernel_t) Uptime() int {
	k.tickslock.Acquire()
	t := k.ticks
	k.tickslock.Release()
	return t
}

func (k *Kernel_t) clockintr() {
	k.tickslock.Acquire()
	k.ticks++
	proc.Wakeup(&k.ticks)
	k.tickslock.Release()
}
