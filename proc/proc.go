package proc

import "runtime"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/vm"

type Procstate_t int

const (
	UNUSED Procstate_t = iota
	USED
	SLEEPING
	RUNNABLE
	RUNNING
	ZOMBIE
)

// File_i is an open file as the process layer sees it: something that
// can be duplicated into a child and closed at exit. The fd layer
// provides the real type.
type File_i interface {
	Dup() File_i
	Close()
}

// Cwd_i is a working-directory reference; Put releases it inside its
// own filesystem transaction.
type Cwd_i interface {
	Dup() Cwd_i
	Put()
}

type Proc_t struct {
	Lock Spinlock_t

	// p->lock must be held when using these:
	State  Procstate_t
	Chan   interface{} // sleeping on this, non-nil iff SLEEPING
	killed bool
	Xstate int // exit status, read by wait
	Pid    int

	// Wait_lock must be held when using this:
	parent *Proc_t

	// these are private to the process, so p->lock need not be held:
	Kstack      uintptr       // fixed per-slot kernel stack va
	Sz          int           // size of user memory in bytes
	Pagetable   vm.Pagetable_t
	TrapframePa mem.Pa_t
	Tf          *Trapframe_t
	Context     Context_t
	Ofile       [defs.NOFILE]File_i
	Cwd         Cwd_i
	Name        string

	entry func(*Proc_t) // kernel thread body, entered after first schedule
}

var ptable [defs.NPROC]Proc_t

// Wait_lock serializes parent/child bookkeeping: it must be held when
// using Proc_t.parent, and it is acquired before any p->lock.
var Wait_lock = Spinlock_t{Name: "wait_lock"}

var pidlock = Spinlock_t{Name: "nextpid"}
var nextpid = 1

var initproc *Proc_t

func allocpid() int {
	pidlock.Acquire()
	pid := nextpid
	nextpid++
	pidlock.Release()
	return pid
}

// Procinit maps a kernel stack for every table slot; the mapping is
// immutable for the life of the kernel.
func Procinit() {
	for i := range ptable {
		p := &ptable[i]
		p.Lock.Name = "proc"
		p.State = UNUSED
		pa, ok := mem.Physmem.Alloc()
		if !ok {
			panic("procinit: kstack")
		}
		va := vm.Kstack(i)
		vm.Kvmmap(va, pa, mem.PGSIZE, vm.PTE_R|vm.PTE_W)
		p.Kstack = va
	}
}

// procPagetable builds a fresh user page table with only the
// trampoline and the process's trap-frame page mapped.
func procPagetable(p *Proc_t) (vm.Pagetable_t, defs.Err_t) {
	pt, err := vm.Uvmcreate()
	if err != 0 {
		return 0, err
	}
	if err := vm.Mappages(pt, vm.TRAMPOLINE, mem.PGSIZE, vm.Trampoline(), vm.PTE_R|vm.PTE_X); err != 0 {
		vm.Uvmfree(pt, 0)
		return 0, err
	}
	if err := vm.Mappages(pt, vm.TRAPFRAME, mem.PGSIZE, p.TrapframePa, vm.PTE_R|vm.PTE_W); err != 0 {
		vm.Unmap(pt, vm.TRAMPOLINE, 1, false)
		vm.Uvmfree(pt, 0)
		return 0, err
	}
	return pt, 0
}

// ProcPagetable is procPagetable for exec, which builds the new
// image before committing to it.
func ProcPagetable(p *Proc_t) (vm.Pagetable_t, defs.Err_t) {
	return procPagetable(p)
}

// ProcFreepagetable tears down a user page table and the user memory
// it maps; the trampoline and trap-frame pages are shared or owned
// elsewhere and only unmapped.
func ProcFreepagetable(pt vm.Pagetable_t, sz int) {
	vm.Unmap(pt, vm.TRAMPOLINE, 1, false)
	vm.Unmap(pt, vm.TRAPFRAME, 1, false)
	vm.Uvmfree(pt, sz)
}

// allocproc finds an unused slot and initializes it: pid, trap-frame
// page, empty user page table, and a parked kernel thread whose first
// run enters entry. Returns with p->lock held.
func allocproc(entry func(*Proc_t)) *Proc_t {
	var p *Proc_t
	found := false
	for i := range ptable {
		p = &ptable[i]
		p.Lock.Acquire()
		if p.State == UNUSED {
			found = true
			break
		}
		p.Lock.Release()
	}
	if !found {
		return nil
	}
	p.Pid = allocpid()
	p.State = USED

	tfpa, ok := mem.Physmem.AllocZero()
	if !ok {
		freeproc(p)
		p.Lock.Release()
		return nil
	}
	p.TrapframePa = tfpa
	p.Tf = &Trapframe_t{mem.Physmem.Pg(tfpa)}

	pt, err := procPagetable(p)
	if err != 0 {
		freeproc(p)
		p.Lock.Release()
		return nil
	}
	p.Pagetable = pt

	p.entry = entry
	p.Context = mkContext()
	go p.kthread()
	return p
}

// kthread is the parked kernel side of a new process. The first
// schedule drops it into forkret duty (release p->lock) and then the
// process body.
func (p *Proc_t) kthread() {
	defer clearCurrent()
	c := <-p.Context.ch
	if c == nil {
		// freed before it ever ran
		return
	}
	setCurrent(c)
	// still holding p->lock from the scheduler
	p.Lock.Release()
	p.entry(p)
	panic("kthread returned")
}

// freeproc releases everything a dead or half-built process holds.
// p->lock must be held.
func freeproc(p *Proc_t) {
	if p.TrapframePa != 0 {
		mem.Physmem.Free(p.TrapframePa)
		p.TrapframePa = 0
		p.Tf = nil
	}
	if p.Pagetable != 0 {
		ProcFreepagetable(p.Pagetable, p.Sz)
		p.Pagetable = 0
	}
	if p.State == USED && p.Context.ch != nil {
		// unpark the never-run kernel thread so it can exit
		close(p.Context.ch)
	}
	p.Context = Context_t{}
	p.Sz = 0
	p.Pid = 0
	p.parent = nil
	p.Name = ""
	p.Chan = nil
	p.killed = false
	p.Xstate = 0
	p.entry = nil
	p.State = UNUSED
}

// Userinit creates the first process. The caller provides the kernel
// thread body (the user-run loop) and the root working directory.
func Userinit(entry func(*Proc_t), cwd Cwd_i, initcode []uint8) *Proc_t {
	p := allocproc(entry)
	if p == nil {
		panic("userinit")
	}
	initproc = p

	if len(initcode) > 0 {
		vm.Uvmfirst(p.Pagetable, initcode)
		p.Sz = mem.PGSIZE
	}
	// user program counter and stack pointer
	p.Tf.Set(defs.TF_EPC, 0)
	p.Tf.Set(defs.TF_SP, mem.PGSIZE)

	p.Name = "initcode"
	p.Cwd = cwd
	p.State = RUNNABLE
	p.Lock.Release()
	return p
}

// Fork clones the calling process. The child's kernel thread starts
// at the same body as the parent's; its trap frame is a copy with a0
// forced to 0, so the user program observes fork() == 0.
func Fork() int {
	p := Myproc()

	np := allocproc(p.entry)
	if np == nil {
		return -1
	}

	if err := vm.Uvmcopy(p.Pagetable, np.Pagetable, p.Sz); err != 0 {
		freeproc(np)
		np.Lock.Release()
		return -1
	}
	np.Sz = p.Sz

	np.Tf.Copy(p.Tf)
	np.Tf.Set(defs.TF_A0, 0)

	for i, f := range p.Ofile {
		if f != nil {
			np.Ofile[i] = f.Dup()
		}
	}
	if p.Cwd != nil {
		np.Cwd = p.Cwd.Dup()
	}

	np.Name = p.Name
	pid := np.Pid
	np.Lock.Release()

	Wait_lock.Acquire()
	np.parent = p
	Wait_lock.Release()

	np.Lock.Acquire()
	np.State = RUNNABLE
	np.Lock.Release()

	return pid
}

// reparent gives p's abandoned children to init. Caller holds
// Wait_lock.
func reparent(p *Proc_t) {
	for i := range ptable {
		pp := &ptable[i]
		if pp.parent == p {
			pp.parent = initproc
			Wakeup(initproc)
		}
	}
}

// Exit terminates the calling process; it does not return. The
// process stays a zombie until its parent calls Wait.
func Exit(status int) {
	p := Myproc()
	if p == initproc {
		panic("init exiting")
	}

	for i, f := range p.Ofile {
		if f != nil {
			f.Close()
			p.Ofile[i] = nil
		}
	}
	if p.Cwd != nil {
		p.Cwd.Put()
		p.Cwd = nil
	}

	Wait_lock.Acquire()
	reparent(p)
	Wakeup(p.parent)

	p.Lock.Acquire()
	p.Xstate = status
	p.State = ZOMBIE
	Wait_lock.Release()

	// give the hart back for the last time; the scheduler releases
	// p->lock
	c := Current()
	c.Context.ch <- c
	runtime.Goexit()
}

// Wait blocks until a child exits, frees it, and returns its pid. If
// addr is non-zero the child's exit status is copied out there.
// Returns -1 if the caller has no children or was killed.
func Wait(addr uintptr) int {
	p := Myproc()

	Wait_lock.Acquire()
	for {
		havekids := false
		for i := range ptable {
			pp := &ptable[i]
			if pp.parent != p {
				continue
			}
			// make sure the child isn't still in Exit or Swtch
			pp.Lock.Acquire()
			havekids = true
			if pp.State == ZOMBIE {
				pid := pp.Pid
				if addr != 0 {
					var b [4]uint8
					util.Writen(b[:], 4, 0, pp.Xstate)
					if err := vm.Copyout(p.Pagetable, addr, b[:]); err != 0 {
						pp.Lock.Release()
						Wait_lock.Release()
						return -1
					}
				}
				freeproc(pp)
				pp.Lock.Release()
				Wait_lock.Release()
				return pid
			}
			pp.Lock.Release()
		}

		if !havekids || p.Killed() {
			Wait_lock.Release()
			return -1
		}

		// wait for a child to exit
		Sleep(p, &Wait_lock)
	}
}

// Grow adjusts the user memory size by n bytes (sbrk). Shrinking
// frees pages; failure leaves the old size intact.
func Grow(n int) defs.Err_t {
	p := Myproc()
	sz := p.Sz
	if n > 0 {
		if uintptr(sz+n) >= vm.TRAPFRAME {
			return -defs.ENOMEM
		}
		nsz, err := vm.Uvmalloc(p.Pagetable, sz, sz+n, vm.PTE_W)
		if err != 0 {
			return err
		}
		sz = nsz
	} else if n < 0 {
		if sz+n < 0 {
			return -defs.EINVAL
		}
		sz = vm.Uvmdealloc(p.Pagetable, sz, sz+n)
	}
	p.Sz = sz
	return 0
}

// Kill marks the target; it will exit at its next crossing of the
// user-return boundary. A sleeping target is made runnable so it can
// observe the flag.
func Kill(pid int) int {
	for i := range ptable {
		p := &ptable[i]
		p.Lock.Acquire()
		if p.Pid == pid {
			p.killed = true
			if p.State == SLEEPING {
				p.State = RUNNABLE
			}
			p.Lock.Release()
			return 0
		}
		p.Lock.Release()
	}
	return -1
}

func (p *Proc_t) Setkilled() {
	p.Lock.Acquire()
	p.killed = true
	p.Lock.Release()
}

func (p *Proc_t) Killed() bool {
	p.Lock.Acquire()
	k := p.killed
	p.Lock.Release()
	return k
}
