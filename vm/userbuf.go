package vm

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/ustr"

// Copies between a user address space and kernel memory, one page
// fragment at a time.

func translate(pt Pagetable_t, va uintptr, needuser bool) (mem.Pa_t, bool) {
	if va >= MAXVA {
		return 0, false
	}
	pr, ok := Walk(pt, va, false)
	if !ok {
		return 0, false
	}
	pte := pr.Load()
	if pte&PTE_V == 0 {
		return 0, false
	}
	if needuser && pte&PTE_U == 0 {
		return 0, false
	}
	return Pte2pa(pte) + mem.Pa_t(va%mem.PGSIZE), true
}

// Copyout copies src to dstva in the user address space. The
// destination leaves must be valid and user-accessible.
func Copyout(pt Pagetable_t, dstva uintptr, src []uint8) defs.Err_t {
	for len(src) > 0 {
		pa, ok := translate(pt, dstva, true)
		if !ok {
			return -defs.EFAULT
		}
		n := mem.PGSIZE - int(dstva%mem.PGSIZE)
		n = util.Min(n, len(src))
		copy(mem.Physmem.Slice(pa, n), src[:n])
		src = src[n:]
		dstva += uintptr(n)
	}
	return 0
}

// Copyin copies len(dst) bytes at srcva in the user address space into
// dst.
func Copyin(pt Pagetable_t, dst []uint8, srcva uintptr) defs.Err_t {
	for len(dst) > 0 {
		pa, ok := translate(pt, srcva, false)
		if !ok {
			return -defs.EFAULT
		}
		n := mem.PGSIZE - int(srcva%mem.PGSIZE)
		n = util.Min(n, len(dst))
		copy(dst[:n], mem.Physmem.Slice(pa, n))
		dst = dst[n:]
		srcva += uintptr(n)
	}
	return 0
}

// Copyinstr copies a NUL-terminated string of at most max bytes from
// srcva; the source leaves must be user-accessible.
func Copyinstr(pt Pagetable_t, srcva uintptr, max int) (ustr.Ustr, defs.Err_t) {
	ret := make(ustr.Ustr, 0, 16)
	for max > 0 {
		pa, ok := translate(pt, srcva, true)
		if !ok {
			return nil, -defs.EFAULT
		}
		n := mem.PGSIZE - int(srcva%mem.PGSIZE)
		n = util.Min(n, max)
		frag := mem.Physmem.Slice(pa, n)
		for _, c := range frag {
			if c == 0 {
				return ret, 0
			}
			ret = append(ret, c)
		}
		max -= n
		srcva += uintptr(n)
	}
	return nil, -defs.ENAMETOOLONG
}

// Userbuf_t adapts a span of user memory to the Userio interface used
// by the fs and device layers.
type Userbuf_t struct {
	pt  Pagetable_t
	va  uintptr
	len int
}

func MkUserbuf(pt Pagetable_t, va uintptr, len int) *Userbuf_t {
	return &Userbuf_t{pt: pt, va: va, len: len}
}

func (ub *Userbuf_t) Remain() int {
	return ub.len
}

func (ub *Userbuf_t) Totalsz() int {
	return ub.len
}

// Uioread fills dst from the user buffer.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := util.Min(len(dst), ub.len)
	if n == 0 {
		return 0, 0
	}
	if err := Copyin(ub.pt, dst[:n], ub.va); err != 0 {
		return 0, err
	}
	ub.va += uintptr(n)
	ub.len -= n
	return n, 0
}

// Uiowrite copies src into the user buffer.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := util.Min(len(src), ub.len)
	if n == 0 {
		return 0, 0
	}
	if err := Copyout(ub.pt, ub.va, src[:n]); err != 0 {
		return 0, err
	}
	ub.va += uintptr(n)
	ub.len -= n
	return n, 0
}
