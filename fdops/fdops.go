package fdops

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/util"

// Userio_i moves bytes between a kernel producer/consumer and some
// buffer — user memory during a system call, or a plain kernel buffer
// in tests and in-kernel callers.
type Userio_i interface {
	Remain() int
	// Uioread copies from the buffer into dst
	Uioread(dst []uint8) (int, defs.Err_t)
	// Uiowrite copies src into the buffer
	Uiowrite(src []uint8) (int, defs.Err_t)
}

// Fakeubuf_t is a Userio over a kernel byte slice.
type Fakeubuf_t struct {
	buf []uint8
	off int
}

func MkFakeubuf(buf []uint8) *Fakeubuf_t {
	return &Fakeubuf_t{buf: buf}
}

func (fb *Fakeubuf_t) Remain() int {
	return len(fb.buf) - fb.off
}

func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := util.Min(len(dst), fb.Remain())
	copy(dst, fb.buf[fb.off:fb.off+n])
	fb.off += n
	return n, 0
}

func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := util.Min(len(src), fb.Remain())
	copy(fb.buf[fb.off:fb.off+n], src)
	fb.off += n
	return n, 0
}
