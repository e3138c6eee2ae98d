package proc

import "runtime"
import "strconv"
import "sync"

// Each kernel thread (a goroutine: a hart's scheduler loop or a
// process's kernel side) needs to know which hart it is running on.
// The mapping is keyed by goroutine; a goroutine that was never
// handed a hart gets a detached host context so lock bookkeeping
// still works during boot and in tests.

var curlock sync.Mutex
var curs = make(map[int64]*Cpu_t)

func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:"
	s := buf[len("goroutine "):n]
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	id, err := strconv.ParseInt(string(s[:i]), 10, 64)
	if err != nil {
		panic("goid")
	}
	return id
}

func setCurrent(c *Cpu_t) {
	if c == nil {
		panic("nuts")
	}
	curlock.Lock()
	curs[goid()] = c
	curlock.Unlock()
}

func clearCurrent() {
	curlock.Lock()
	delete(curs, goid())
	curlock.Unlock()
}

// Current returns the hart this kernel thread runs on.
func Current() *Cpu_t {
	id := goid()
	curlock.Lock()
	c, ok := curs[id]
	curlock.Unlock()
	if !ok {
		c = &Cpu_t{Id: -1, intron: true}
		c.Context = mkContext()
		setCurrent(c)
	}
	return c
}

// Myproc returns the process running on this hart, or nil from a
// scheduler or host context.
func Myproc() *Proc_t {
	return Current().Proc
}
