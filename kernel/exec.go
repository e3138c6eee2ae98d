package kernel

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/proc"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/ustr"
import "github.com/shimomura1004/xv6-riscv/vm"

// ELF64 loader. Field offsets into the file header and program
// headers; all fields are little-endian.
const (
	elfMagic = 0x464c457f

	ehEntry     = 24
	ehPhoff     = 32
	ehPhentsize = 54
	ehPhnum     = 56
	ehSize      = 64

	phType   = 0
	phFlags  = 4
	phOff    = 8
	phVaddr  = 16
	phFilesz = 32
	phMemsz  = 40
	phSize   = 56

	elfProgLoad = 1
	elfProgFlagX = 0x1
	elfProgFlagW = 0x2
)

func flags2perm(flags int) vm.Pte_t {
	var perm vm.Pte_t
	if flags&elfProgFlagX != 0 {
		perm |= vm.PTE_X
	}
	if flags&elfProgFlagW != 0 {
		perm |= vm.PTE_W
	}
	return perm
}

// loadseg loads filesz bytes of segment data at off in ip into the
// already-mapped pages at va, which must be page aligned.
func (k *Kernel_t) loadseg(pt vm.Pagetable_t, va uintptr, ip *fs.Inode_t, off, filesz int) defs.Err_t {
	if va%mem.PGSIZE != 0 {
		panic("loadseg: va must be page aligned")
	}
	for i := 0; i < filesz; i += mem.PGSIZE {
		pa, ok := vm.Walkaddr(pt, va+uintptr(i))
		if !ok {
			panic("loadseg: address should exist")
		}
		n := util.Min(filesz-i, mem.PGSIZE)
		ub := fdops.MkFakeubuf(mem.Physmem.Slice(pa, n))
		if r, err := k.Fs.Readi(ip, ub, off+i, n); err != 0 || r != n {
			return -defs.EIO
		}
	}
	return 0
}

// Exec replaces p's user image with the ELF at path and arranges the
// argument vector on the new stack. Returns argc (delivered in a0) or
// a negative error, leaving the process unchanged on failure.
func (k *Kernel_t) Exec(p *proc.Proc_t, path ustr.Ustr, argv []ustr.Ustr) int {
	if len(argv) > defs.MAXARG {
		return -1
	}

	k.Fs.Op_begin("exec")
	ip, err := k.Fs.Namei(cwdip(p).Ip, path)
	if err != 0 {
		k.Fs.Op_end()
		return -1
	}
	k.Fs.Ilock(ip)

	bad := func(pt vm.Pagetable_t, sz int) int {
		if pt != 0 {
			proc.ProcFreepagetable(pt, sz)
		}
		if ip != nil {
			k.Fs.IunlockPut(ip)
			k.Fs.Op_end()
		}
		return -1
	}

	// check ELF header
	var ehdr [ehSize]uint8
	if n, err := k.Fs.Readi(ip, fdops.MkFakeubuf(ehdr[:]), 0, ehSize); err != 0 || n != ehSize {
		return bad(0, 0)
	}
	if util.Readn(ehdr[:], 4, 0) != elfMagic {
		return bad(0, 0)
	}

	pt, perr := proc.ProcPagetable(p)
	if perr != 0 {
		return bad(0, 0)
	}

	// load each program segment
	sz := 0
	phoff := util.Readn(ehdr[:], 8, ehPhoff)
	phentsize := util.Readn(ehdr[:], 2, ehPhentsize)
	phnum := util.Readn(ehdr[:], 2, ehPhnum)
	var ph [phSize]uint8
	for i := 0; i < phnum; i++ {
		off := phoff + i*phentsize
		if n, err := k.Fs.Readi(ip, fdops.MkFakeubuf(ph[:]), off, phSize); err != 0 || n != phSize {
			return bad(pt, sz)
		}
		if util.Readn(ph[:], 4, phType) != elfProgLoad {
			continue
		}
		memsz := util.Readn(ph[:], 8, phMemsz)
		filesz := util.Readn(ph[:], 8, phFilesz)
		vaddr := util.Readn(ph[:], 8, phVaddr)
		if memsz < filesz {
			return bad(pt, sz)
		}
		if vaddr+memsz < vaddr {
			return bad(pt, sz)
		}
		if vaddr%mem.PGSIZE != 0 {
			return bad(pt, sz)
		}
		nsz, err := vm.Uvmalloc(pt, sz, vaddr+memsz, flags2perm(util.Readn(ph[:], 4, phFlags)))
		if err != 0 {
			return bad(pt, sz)
		}
		sz = nsz
		if k.loadseg(pt, uintptr(vaddr), ip, util.Readn(ph[:], 8, phOff), filesz) != 0 {
			return bad(pt, sz)
		}
	}
	entry := util.Readn(ehdr[:], 8, ehEntry)
	k.Fs.IunlockPut(ip)
	k.Fs.Op_end()
	ip = nil

	// allocate two pages at the next page boundary: the lower is the
	// inaccessible stack guard, the upper the user stack.
	sz = util.Roundup(sz, mem.PGSIZE)
	nsz, uerr := vm.Uvmalloc(pt, sz, sz+2*mem.PGSIZE, vm.PTE_W)
	if uerr != 0 {
		return bad(pt, sz)
	}
	sz = nsz
	vm.Uvmclear(pt, uintptr(sz-2*mem.PGSIZE))
	sp := sz
	stackbase := sp - mem.PGSIZE

	// push argument strings, then the array of argv pointers
	ustack := make([]uintptr, 0, defs.MAXARG+1)
	for _, arg := range argv {
		sp -= len(arg) + 1
		sp -= sp % 16 // riscv sp must be 16-byte aligned
		if sp < stackbase {
			return bad(pt, sz)
		}
		buf := make([]uint8, len(arg)+1)
		copy(buf, arg)
		if vm.Copyout(pt, uintptr(sp), buf) != 0 {
			return bad(pt, sz)
		}
		ustack = append(ustack, uintptr(sp))
	}
	ustack = append(ustack, 0)

	sp -= len(ustack) * 8
	sp -= sp % 16
	if sp < stackbase {
		return bad(pt, sz)
	}
	pbuf := make([]uint8, len(ustack)*8)
	for i, v := range ustack {
		util.Writen(pbuf, 8, i*8, int(v))
	}
	if vm.Copyout(pt, uintptr(sp), pbuf) != 0 {
		return bad(pt, sz)
	}

	// commit to the new image
	oldpt := p.Pagetable
	oldsz := p.Sz
	p.Pagetable = pt
	p.Sz = sz
	p.Tf.Set(defs.TF_EPC, uintptr(entry))
	p.Tf.Set(defs.TF_SP, uintptr(sp))
	p.Tf.Set(defs.TF_A1, uintptr(sp)) // argv
	p.Name = lastelem(path).String()
	proc.ProcFreepagetable(oldpt, oldsz)

	return len(argv) // this ends up in a0, the first argument to main(argc, argv)
}

func lastelem(path ustr.Ustr) ustr.Ustr {
	last := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			last = path[i+1:]
			break
		}
	}
	return last
}

// sys_exec fetches the path and argv strings from user memory.
func (k *Kernel_t) sys_exec(p *proc.Proc_t) int {
	path, err := argstr(p, 0)
	if err != 0 {
		return -1
	}
	uargv := argaddr(p, 1)

	argv := make([]ustr.Ustr, 0, 8)
	for i := 0; ; i++ {
		if i >= defs.MAXARG {
			return -1
		}
		var b [8]uint8
		if vm.Copyin(p.Pagetable, b[:], uargv+uintptr(i*8)) != 0 {
			return -1
		}
		uarg := uintptr(util.Readn(b[:], 8, 0))
		if uarg == 0 {
			break
		}
		arg, aerr := vm.Copyinstr(p.Pagetable, uarg, defs.MAXPATH)
		if aerr != 0 {
			return -1
		}
		argv = append(argv, arg)
	}
	return k.Exec(p, path, argv)
}
