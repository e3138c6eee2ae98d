package kernel

import "fmt"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fd"
import "github.com/shimomura1004/xv6-riscv/proc"
import "github.com/shimomura1004/xv6-riscv/ustr"
import "github.com/shimomura1004/xv6-riscv/vm"

// System-call dispatch. Arguments arrive in the trap frame's argument
// registers; the result goes back in a0.

func argraw(p *proc.Proc_t, n int) uintptr {
	switch n {
	case 0:
		return p.Tf.Get(defs.TF_A0)
	case 1:
		return p.Tf.Get(defs.TF_A1)
	case 2:
		return p.Tf.Get(defs.TF_A2)
	case 3:
		return p.Tf.Get(defs.TF_A3)
	case 4:
		return p.Tf.Get(defs.TF_A4)
	case 5:
		return p.Tf.Get(defs.TF_A5)
	}
	panic("argraw")
}

func argint(p *proc.Proc_t, n int) int {
	return int(argraw(p, n))
}

func argaddr(p *proc.Proc_t, n int) uintptr {
	return argraw(p, n)
}

// argstr fetches the n'th argument as a NUL-terminated string from
// user memory.
func argstr(p *proc.Proc_t, n int) (ustr.Ustr, defs.Err_t) {
	return vm.Copyinstr(p.Pagetable, argaddr(p, n), defs.MAXPATH)
}

// argfd fetches the n'th argument as a file descriptor.
func argfd(p *proc.Proc_t, n int) (*fd.File_t, int, defs.Err_t) {
	fdn := argint(p, n)
	if fdn < 0 || fdn >= defs.NOFILE || p.Ofile[fdn] == nil {
		return nil, 0, -defs.EBADF
	}
	return p.Ofile[fdn].(*fd.File_t), fdn, 0
}

// fdalloc installs f in the process's descriptor table.
func fdalloc(p *proc.Proc_t, f *fd.File_t) (int, defs.Err_t) {
	for i := 0; i < defs.NOFILE; i++ {
		if p.Ofile[i] == nil {
			p.Ofile[i] = f
			return i, 0
		}
	}
	return 0, -defs.EMFILE
}

func cwdip(p *proc.Proc_t) *fd.Cwd_t {
	return p.Cwd.(*fd.Cwd_t)
}

func (k *Kernel_t) syscall(p *proc.Proc_t) {
	var ret int
	num := int(p.Tf.Get(defs.TF_A7))
	switch num {
	case defs.SYS_FORK:
		ret = proc.Fork()
	case defs.SYS_EXIT:
		proc.Exit(argint(p, 0))
	case defs.SYS_WAIT:
		ret = proc.Wait(argaddr(p, 0))
	case defs.SYS_PIPE:
		ret = k.sys_pipe(p)
	case defs.SYS_READ:
		ret = k.sys_read(p)
	case defs.SYS_KILL:
		ret = proc.Kill(argint(p, 0))
	case defs.SYS_EXEC:
		ret = k.sys_exec(p)
	case defs.SYS_FSTAT:
		ret = k.sys_fstat(p)
	case defs.SYS_CHDIR:
		ret = k.sys_chdir(p)
	case defs.SYS_DUP:
		ret = k.sys_dup(p)
	case defs.SYS_GETPID:
		ret = p.Pid
	case defs.SYS_SBRK:
		ret = k.sys_sbrk(p)
	case defs.SYS_SLEEP:
		ret = k.sys_sleep(p)
	case defs.SYS_UPTIME:
		ret = k.Uptime()
	case defs.SYS_OPEN:
		ret = k.sys_open(p)
	case defs.SYS_WRITE:
		ret = k.sys_write(p)
	case defs.SYS_MKNOD:
		ret = k.sys_mknod(p)
	case defs.SYS_UNLINK:
		ret = k.sys_unlink(p)
	case defs.SYS_LINK:
		ret = k.sys_link(p)
	case defs.SYS_MKDIR:
		ret = k.sys_mkdir(p)
	case defs.SYS_CLOSE:
		ret = k.sys_close(p)
	default:
		fmt.Printf("%d %s: unknown sys call %d\n", p.Pid, p.Name, num)
		ret = -1
	}
	p.Tf.Set(defs.TF_A0, uintptr(ret))
}

func (k *Kernel_t) sys_sbrk(p *proc.Proc_t) int {
	n := argint(p, 0)
	addr := p.Sz
	if proc.Grow(n) != 0 {
		return -1
	}
	return addr
}

func (k *Kernel_t) sys_sleep(p *proc.Proc_t) int {
	n := argint(p, 0)
	k.tickslock.Acquire()
	t0 := k.ticks
	for k.ticks-t0 < n {
		if p.Killed() {
			k.tickslock.Release()
			return -1
		}
		proc.Sleep(&k.ticks, &k.tickslock)
	}
	k.tickslock.Release()
	return 0
}
