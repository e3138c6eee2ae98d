package proc

import "runtime"
import "sync/atomic"

// Spinlock with the interrupt discipline: acquiring disables
// interrupts on this hart and bumps the nesting depth; the hart's
// pre-push interrupt state is restored when the depth returns to
// zero. Interrupts are a flag on the hosted hart rather than a CSR.

type Spinlock_t struct {
	locked uint32
	cpu    *Cpu_t
	Name   string
}

func (lk *Spinlock_t) Acquire() {
	Push_off()
	if lk.Holding() {
		panic("acquire " + lk.Name)
	}
	for !atomic.CompareAndSwapUint32(&lk.locked, 0, 1) {
		// let the holder run; the hosted machine has fewer real
		// cpus than harts
		runtime.Gosched()
	}
	lk.cpu = Current()
}

func (lk *Spinlock_t) Release() {
	if !lk.Holding() {
		panic("release " + lk.Name)
	}
	lk.cpu = nil
	atomic.StoreUint32(&lk.locked, 0)
	Pop_off()
}

// Holding reports whether this hart holds the lock.
func (lk *Spinlock_t) Holding() bool {
	return atomic.LoadUint32(&lk.locked) == 1 && lk.cpu == Current()
}

// Push_off/Pop_off are like Intr_off/Intr_on except that they are
// matched: it takes two Pop_off()s to undo two Push_off()s, and if
// interrupts were initially off then Pop_off leaves them off.

func Push_off() {
	c := Current()
	old := c.intron
	c.intron = false
	if c.noff == 0 {
		c.intena = old
	}
	c.noff++
}

func Pop_off() {
	c := Current()
	if c.intron {
		panic("pop_off: interruptible")
	}
	if c.noff < 1 {
		panic("pop_off")
	}
	c.noff--
	if c.noff == 0 && c.intena {
		c.intron = true
	}
}

func Intr_on() {
	Current().intron = true
}

func Intr_off() {
	Current().intron = false
}
