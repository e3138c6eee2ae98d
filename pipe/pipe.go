package pipe

import "github.com/shimomura1004/xv6-riscv/circbuf"
import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/proc"

const PIPESIZE = 512

// Pipe_t is a byte ring shared by a read end and a write end. The
// addresses of the two open flags double as the wait channels:
// readers sleep on readopen, writers on writeopen.
type Pipe_t struct {
	lock      proc.Spinlock_t
	cb        circbuf.Circbuf_t
	readopen  bool
	writeopen bool
}

func MkPipe() *Pipe_t {
	pi := &Pipe_t{}
	pi.lock.Name = "pipe"
	pi.cb.Cb_init(PIPESIZE)
	pi.readopen = true
	pi.writeopen = true
	return pi
}

// readch and writech are the rendezvous keys for sleep/wakeup.
func (pi *Pipe_t) readch() interface{}  { return &pi.readopen }
func (pi *Pipe_t) writech() interface{} { return &pi.writeopen }

// Write moves n bytes from src into the ring, a byte at a time,
// sleeping whenever the ring fills. Fails once the read end closes or
// the writer is killed.
func (pi *Pipe_t) Write(src fdops.Userio_i, n int) (int, defs.Err_t) {
	p := proc.Myproc()
	var b [1]uint8

	pi.lock.Acquire()
	i := 0
	for i < n {
		if !pi.readopen || (p != nil && p.Killed()) {
			pi.lock.Release()
			return 0, -defs.EPIPE
		}
		if pi.cb.Full() {
			proc.Wakeup(pi.readch())
			proc.Sleep(pi.writech(), &pi.lock)
			continue
		}
		if r, err := src.Uioread(b[:]); err != 0 || r != 1 {
			break
		}
		pi.cb.Push(b[0])
		i++
	}
	proc.Wakeup(pi.readch())
	pi.lock.Release()
	return i, 0
}

// Read drains up to n bytes, sleeping while the ring is empty and the
// write end is still open. A drained ring with a closed write end is
// end-of-file.
func (pi *Pipe_t) Read(dst fdops.Userio_i, n int) (int, defs.Err_t) {
	p := proc.Myproc()
	var b [1]uint8

	pi.lock.Acquire()
	for pi.cb.Empty() && pi.writeopen {
		if p != nil && p.Killed() {
			pi.lock.Release()
			return 0, -defs.EINTR
		}
		proc.Sleep(pi.readch(), &pi.lock)
	}
	i := 0
	for i < n {
		if pi.cb.Empty() {
			break
		}
		b[0] = pi.cb.Peek()
		if r, err := dst.Uiowrite(b[:]); err != 0 || r != 1 {
			break
		}
		pi.cb.Pop()
		i++
	}
	proc.Wakeup(pi.writech())
	pi.lock.Release()
	return i, 0
}

// Close shuts one end and wakes the other; the ring itself is
// reclaimed once both ends are gone.
func (pi *Pipe_t) Close(writable bool) {
	pi.lock.Acquire()
	if writable {
		pi.writeopen = false
		proc.Wakeup(pi.readch())
	} else {
		pi.readopen = false
		proc.Wakeup(pi.writech())
	}
	pi.lock.Release()
}
