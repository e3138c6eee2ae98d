package proc

import "time"

import "github.com/shimomura1004/xv6-riscv/defs"

// Per-hart scheduling. Each hart runs an infinite scheduler loop that
// hands the hart to one runnable process at a time. A context is a
// rendezvous channel; Swtch is a synchronous handoff carrying the
// hart, the hosted analogue of saving one register set and loading
// another.

type Cpu_t struct {
	Id      int
	Proc    *Proc_t
	Context Context_t
	noff    int  // depth of Push_off nesting
	intena  bool // were interrupts enabled before Push_off?
	intron  bool // hosted interrupt-enable flag
	stop    chan bool
}

var Cpus [defs.NCPU]Cpu_t

type Context_t struct {
	ch chan *Cpu_t
}

func mkContext() Context_t {
	return Context_t{ch: make(chan *Cpu_t)}
}

// Swtch gives the hart to target and blocks until some thread gives
// it back through my. The receiving thread registers the hart as its
// own; a process may come back on a different hart than it left.
func Swtch(my, target *Context_t) {
	c := Current()
	target.ch <- c
	c = <-my.ch
	setCurrent(c)
}

// Scheduler is hart c's loop: scan the table round-robin, run each
// runnable process until it yields the hart back.
func Scheduler(c *Cpu_t) {
	setCurrent(c)
	for {
		// interrupts stay on between processes so a device can't
		// deadlock a fully-loaded machine
		Intr_on()
		ran := false
		for i := range ptable {
			p := &ptable[i]
			p.Lock.Acquire()
			if p.State == RUNNABLE {
				// the process releases its lock and reacquires it
				// before handing the hart back
				p.State = RUNNING
				c.Proc = p
				Swtch(&c.Context, &p.Context)
				c.Proc = nil
				ran = true
			}
			p.Lock.Release()
		}
		select {
		case <-c.stop:
			clearCurrent()
			return
		default:
		}
		if !ran {
			time.Sleep(50 * time.Microsecond)
		}
	}
}

// StartHarts launches n scheduler loops.
func StartHarts(n int) {
	if n <= 0 || n > defs.NCPU {
		panic("startharts")
	}
	for i := 0; i < n; i++ {
		c := &Cpus[i]
		c.Id = i
		c.Context = mkContext()
		c.stop = make(chan bool, 1)
		go Scheduler(c)
	}
}

// StopHarts asks every scheduler loop to exit after its current pass.
// Parked processes stay parked; only tests use this.
func StopHarts(n int) {
	for i := 0; i < n; i++ {
		Cpus[i].stop <- true
	}
}

// Sched hands the hart back to the scheduler. The caller must hold
// only p->lock and must already have changed its state.
func Sched() {
	p := Myproc()
	c := Current()
	if !p.Lock.Holding() {
		panic("sched p->lock")
	}
	if c.noff != 1 {
		panic("sched locks")
	}
	if p.State == RUNNING {
		panic("sched running")
	}
	if c.intron {
		panic("sched interruptible")
	}
	// intena is a property of this kernel thread, not this hart
	intena := c.intena
	Swtch(&p.Context, &c.Context)
	Current().intena = intena
}

// Yield gives up the hart for one scheduling round.
func Yield() {
	p := Myproc()
	p.Lock.Acquire()
	p.State = RUNNABLE
	Sched()
	p.Lock.Release()
}

// Sleep atomically releases lk and suspends on chn, then reacquires
// lk. Callers loop on their condition: wakeups are broadcast.
func Sleep(chn interface{}, lk *Spinlock_t) {
	p := Myproc()
	if p == nil {
		panic("sleep")
	}
	if lk == &p.Lock {
		panic("sleep p->lock")
	}
	// holding p->lock while releasing lk guarantees no wakeup is
	// lost: a waker must hold both to find us not yet sleeping
	p.Lock.Acquire()
	lk.Release()

	p.Chan = chn
	p.State = SLEEPING
	Sched()

	p.Chan = nil
	p.Lock.Release()
	lk.Acquire()
}

// Wakeup makes every process sleeping on chn runnable.
func Wakeup(chn interface{}) {
	mp := Myproc()
	for i := range ptable {
		p := &ptable[i]
		if p == mp {
			continue
		}
		p.Lock.Acquire()
		if p.State == SLEEPING && p.Chan == chn {
			p.State = RUNNABLE
		}
		p.Lock.Release()
	}
}
