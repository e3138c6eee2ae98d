package proc

// Long-term lock for process-context objects: holders may block.
// Built from a spinlock and a wait channel.

type Sleeplock_t struct {
	lk     Spinlock_t
	locked bool
	Name   string
	pid    int
}

func (slk *Sleeplock_t) Acquire() {
	slk.lk.Acquire()
	for slk.locked {
		Sleep(slk, &slk.lk)
	}
	slk.locked = true
	if p := Myproc(); p != nil {
		slk.pid = p.Pid
	}
	slk.lk.Release()
}

func (slk *Sleeplock_t) Release() {
	slk.lk.Acquire()
	slk.locked = false
	slk.pid = 0
	Wakeup(slk)
	slk.lk.Release()
}

func (slk *Sleeplock_t) Holding() bool {
	slk.lk.Acquire()
	r := slk.locked && Myproc() != nil && slk.pid == Myproc().Pid
	slk.lk.Release()
	return r
}
