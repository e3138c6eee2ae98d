package kernel

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fd"
import "github.com/shimomura1004/xv6-riscv/proc"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/vm"

// File system calls.

func (k *Kernel_t) sys_read(p *proc.Proc_t) int {
	f, _, err := argfd(p, 0)
	if err != 0 {
		return -1
	}
	addr := argaddr(p, 1)
	n := argint(p, 2)
	if n < 0 {
		return -1
	}
	ub := vm.MkUserbuf(p.Pagetable, addr, n)
	r, rerr := f.Read(ub, n)
	if rerr != 0 {
		return -1
	}
	return r
}

func (k *Kernel_t) sys_write(p *proc.Proc_t) int {
	f, _, err := argfd(p, 0)
	if err != 0 {
		return -1
	}
	addr := argaddr(p, 1)
	n := argint(p, 2)
	if n < 0 {
		return -1
	}
	ub := vm.MkUserbuf(p.Pagetable, addr, n)
	r, werr := f.Write(ub, n)
	if werr != 0 {
		return -1
	}
	return r
}

func (k *Kernel_t) sys_close(p *proc.Proc_t) int {
	f, fdn, err := argfd(p, 0)
	if err != 0 {
		return -1
	}
	p.Ofile[fdn] = nil
	f.Close()
	return 0
}

func (k *Kernel_t) sys_dup(p *proc.Proc_t) int {
	f, _, err := argfd(p, 0)
	if err != 0 {
		return -1
	}
	fdn, ferr := fdalloc(p, f)
	if ferr != 0 {
		return -1
	}
	f.Fdup()
	return fdn
}

func (k *Kernel_t) sys_fstat(p *proc.Proc_t) int {
	f, _, err := argfd(p, 0)
	if err != 0 {
		return -1
	}
	addr := argaddr(p, 1)
	st := &stat.Stat_t{}
	if f.Stat(st) != 0 {
		return -1
	}
	if vm.Copyout(p.Pagetable, addr, st.Bytes()) != 0 {
		return -1
	}
	return 0
}

func (k *Kernel_t) sys_open(p *proc.Proc_t) int {
	path, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	omode := defs.Fdopt_t(argint(p, 1))

	ip, oerr := k.Fs.Fs_open(cwdip(p).Ip, path, omode, 0, 0)
	if oerr != 0 {
		return -1
	}

	readable := omode&defs.O_WRONLY == 0
	writable := omode&defs.O_WRONLY != 0 || omode&defs.O_RDWR != 0
	f := fd.MkInodefile(k.Fs, ip, readable, writable)
	if f == nil {
		k.Fs.IputOp(ip)
		return -1
	}
	fdn, ferr := fdalloc(p, f)
	if ferr != 0 {
		f.Close()
		return -1
	}
	return fdn
}

func (k *Kernel_t) sys_mkdir(p *proc.Proc_t) int {
	path, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	if k.Fs.Fs_mkdir(cwdip(p).Ip, path) != 0 {
		return -1
	}
	return 0
}

func (k *Kernel_t) sys_mknod(p *proc.Proc_t) int {
	path, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	major := argint(p, 1)
	minor := argint(p, 2)
	if k.Fs.Fs_mknod(cwdip(p).Ip, path, major, minor) != 0 {
		return -1
	}
	return 0
}

func (k *Kernel_t) sys_link(p *proc.Proc_t) int {
	old, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	new, err := argstr(p, 1)
	if err != 0 {
		return -1
	}
	if k.Fs.Fs_link(cwdip(p).Ip, old, new) != 0 {
		return -1
	}
	return 0
}

func (k *Kernel_t) sys_unlink(p *proc.Proc_t) int {
	path, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	if k.Fs.Fs_unlink(cwdip(p).Ip, path) != 0 {
		return -1
	}
	return 0
}

func (k *Kernel_t) sys_chdir(p *proc.Proc_t) int {
	path, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	cwd := cwdip(p)
	nip, cerr := k.Fs.Fs_chdir(cwd.Ip, path)
	if cerr != 0 {
		return -1
	}
	p.Cwd = &fd.Cwd_t{Fs: k.Fs, Ip: nip}
	return 0
}

func (k *Kernel_t) sys_pipe(p *proc.Proc_t) int {
	fdarray := argaddr(p, 0)
	rf, wf, err := fd.MkPipefiles()
	if err != 0 {
		return -1
	}
	rfd, err := fdalloc(p, rf)
	if err != 0 {
		rf.Close()
		wf.Close()
		return -1
	}
	wfd, err := fdalloc(p, wf)
	if err != 0 {
		p.Ofile[rfd] = nil
		rf.Close()
		wf.Close()
		return -1
	}
	var b [8]uint8
	util.Writen(b[:], 4, 0, rfd)
	util.Writen(b[:], 4, 4, wfd)
	if vm.Copyout(p.Pagetable, fdarray, b[:]) != 0 {
		p.Ofile[rfd] = nil
		p.Ofile[wfd] = nil
		rf.Close()
		wf.Close()
		return -1
	}
	return 0
}
