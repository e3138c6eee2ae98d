package kernel

import "sync"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"

// Console_t is the hosted console device: writes accumulate in a
// buffer the harness can inspect, reads drain bytes the harness has
// queued (the line discipline itself is the driver's business, not
// the kernel's).
type Console_t struct {
	sync.Mutex
	out []uint8
	in  []uint8
}

func mkConsole() *Console_t {
	return &Console_t{}
}

func (c *Console_t) Write(src fdops.Userio_i, n int) (int, defs.Err_t) {
	buf := make([]uint8, n)
	r, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	c.Lock()
	c.out = append(c.out, buf[:r]...)
	c.Unlock()
	return r, 0
}

func (c *Console_t) Read(dst fdops.Userio_i, n int) (int, defs.Err_t) {
	c.Lock()
	defer c.Unlock()
	m := n
	if m > len(c.in) {
		m = len(c.in)
	}
	if m == 0 {
		return 0, 0
	}
	r, err := dst.Uiowrite(c.in[:m])
	c.in = c.in[r:]
	return r, err
}

// Output returns everything written to the console so far.
func (c *Console_t) Output() string {
	c.Lock()
	defer c.Unlock()
	return string(c.out)
}

// Input queues bytes for console reads.
func (c *Console_t) Input(b []uint8) {
	c.Lock()
	c.in = append(c.in, b...)
	c.Unlock()
}
