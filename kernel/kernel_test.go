package kernel

import "strings"
import "sync"
import "testing"
import "time"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/proc"
import "github.com/shimomura1004/xv6-riscv/ufs"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/vm"

// The integration tests boot the whole kernel against a scripted
// machine: each "user program" is a step table selected by process
// name and indexed by the user program counter. The kernel's normal
// epc handling (+4 per system call) advances the script exactly as it
// would advance real code, so fork and exec behave as on hardware:
// a forked child resumes at its parent's next instruction with a0 ==
// 0, and exec restarts at the new image's entry point.

type progfn_t func(p *proc.Proc_t, tf *proc.Trapframe_t, step int) int

type machine_t struct {
	progs map[string]progfn_t
}

func (m *machine_t) Userrun(p *proc.Proc_t, tf *proc.Trapframe_t) int {
	fn, ok := m.progs[p.Name]
	if !ok {
		panic("no user program named " + p.Name)
	}
	return fn(p, tf, int(tf.Get(defs.TF_EPC))/4)
}

// script helpers: user-mode loads, stores, branches and ecalls

func poke(p *proc.Proc_t, va uintptr, b []uint8) {
	if err := vm.Copyout(p.Pagetable, va, b); err != 0 {
		panic("poke")
	}
}

func pokestr(p *proc.Proc_t, va uintptr, s string) {
	poke(p, va, append([]uint8(s), 0))
}

func pokeptrs(p *proc.Proc_t, va uintptr, ptrs ...uintptr) {
	b := make([]uint8, len(ptrs)*8)
	for i, v := range ptrs {
		util.Writen(b, 8, i*8, int(v))
	}
	poke(p, va, b)
}

func peek(p *proc.Proc_t, va uintptr, n int) []uint8 {
	b := make([]uint8, n)
	if err := vm.Copyin(p.Pagetable, b, va); err != 0 {
		panic("peek")
	}
	return b
}

func sc(tf *proc.Trapframe_t, num int, args ...uintptr) int {
	tf.Set(defs.TF_A7, uintptr(num))
	for i, a := range args {
		tf.Set(defs.TF_A0+i, a)
	}
	return defs.TRAP_SYSCALL
}

// jmp makes the next step land at the given script index.
func jmp(tf *proc.Trapframe_t, step int) {
	tf.Set(defs.TF_EPC, uintptr(step*4-4))
}

// mkElf builds a minimal ELF64 image: one RWX LOAD segment at va 0,
// entry 0.
func mkElf() []uint8 {
	b := make([]uint8, 192)
	util.Writen(b, 4, 0, 0x464c457f) // \x7fELF
	util.Writen(b, 8, 24, 0)         // entry
	util.Writen(b, 8, 32, 64)        // phoff
	util.Writen(b, 2, 54, 56)        // phentsize
	util.Writen(b, 2, 56, 1)         // phnum
	util.Writen(b, 4, 64+0, 1)       // PT_LOAD
	util.Writen(b, 4, 64+4, 7)       // flags: rwx
	util.Writen(b, 8, 64+8, 128)     // offset
	util.Writen(b, 8, 64+16, 0)      // vaddr
	util.Writen(b, 8, 64+32, 64)     // filesz
	util.Writen(b, 8, 64+40, 4096)   // memsz
	return b
}

// scratch addresses in the user page
const (
	vaInitPath = 512
	vaInitArgv = 552
	vaConsole  = 600
	vaBanner   = 700
	vaPipefds  = 800
	vaReadbuf  = 900
	vaStatus   = 904
	vaXY       = 940
	vaNope     = 1000
	vaNopeArgv = 1008
	vaEchoPath = 1100
	vaEchoArg  = 1110
	vaEchoArgv = 1120
	vaStatbuf  = 1200
)

type results_t struct {
	sync.Mutex
	argc        int
	openfd      int
	dupfd       int
	bannerlen   int
	pipefds     [2]int
	read1       int
	read1data   string
	read2       int
	forkpid     int
	waitpid1    int
	status1     int
	sbrkOld     int
	sbrkWrite   bool
	shrinkDeny  bool
	killpid     int
	waitpid2    int
	status2     int
	execfail    int
	fstatType   int
	initpid     int
	echoArg     string
}

var res results_t
var done = make(chan bool)

const banner = "init: starting\n"

func initcodeProg(p *proc.Proc_t, tf *proc.Trapframe_t, step int) int {
	switch step {
	case 0:
		pokestr(p, vaInitPath, "/init")
		pokeptrs(p, vaInitArgv, vaInitPath, 0)
		return sc(tf, defs.SYS_EXEC, vaInitPath, vaInitArgv)
	}
	panic("initcode: exec of /init failed")
}

func initProg(p *proc.Proc_t, tf *proc.Trapframe_t, step int) int {
	res.Lock()
	defer res.Unlock()
	switch step {
	case 0:
		res.argc = int(tf.Get(defs.TF_A0))
		pokestr(p, vaConsole, "console")
		return sc(tf, defs.SYS_MKNOD, vaConsole, uintptr(defs.D_CONSOLE), 0)
	case 1:
		return sc(tf, defs.SYS_OPEN, vaConsole, uintptr(defs.O_RDWR))
	case 2:
		res.openfd = int(tf.Get(defs.TF_A0))
		return sc(tf, defs.SYS_DUP, uintptr(res.openfd))
	case 3:
		res.dupfd = int(tf.Get(defs.TF_A0))
		pokestr(p, vaBanner, banner)
		return sc(tf, defs.SYS_WRITE, uintptr(res.dupfd), vaBanner, uintptr(len(banner)))
	case 4:
		res.bannerlen = int(tf.Get(defs.TF_A0))
		return sc(tf, defs.SYS_PIPE, vaPipefds)
	case 5:
		b := peek(p, vaPipefds, 8)
		res.pipefds[0] = util.Readn(b, 4, 0)
		res.pipefds[1] = util.Readn(b, 4, 4)
		return sc(tf, defs.SYS_FORK)
	case 6:
		if tf.Get(defs.TF_A0) == 0 {
			// child: close the read end, jump to the child code
			jmp(tf, 40)
			return sc(tf, defs.SYS_CLOSE, uintptr(res.pipefds[0]))
		}
		res.forkpid = int(tf.Get(defs.TF_A0))
		return sc(tf, defs.SYS_CLOSE, uintptr(res.pipefds[1]))
	case 7:
		return sc(tf, defs.SYS_READ, uintptr(res.pipefds[0]), vaReadbuf, 2)
	case 8:
		res.read1 = int(tf.Get(defs.TF_A0))
		res.read1data = string(peek(p, vaReadbuf, 2))
		return sc(tf, defs.SYS_READ, uintptr(res.pipefds[0]), vaReadbuf, 2)
	case 9:
		res.read2 = int(tf.Get(defs.TF_A0))
		return sc(tf, defs.SYS_WAIT, vaStatus)
	case 10:
		res.waitpid1 = int(tf.Get(defs.TF_A0))
		res.status1 = util.Readn(peek(p, vaStatus, 4), 4, 0)
		return sc(tf, defs.SYS_SBRK, 8192)
	case 11:
		res.sbrkOld = int(tf.Get(defs.TF_A0))
		poke(p, uintptr(res.sbrkOld), []uint8{7}) // new memory is writable
		res.sbrkWrite = true
		shrink := uintptr(8192)
		return sc(tf, defs.SYS_SBRK, uintptr(0)-shrink)
	case 12:
		// shrunk memory must be inaccessible again
		if vm.Copyout(p.Pagetable, uintptr(res.sbrkOld), []uint8{7}) != 0 {
			res.shrinkDeny = true
		}
		return sc(tf, defs.SYS_FORK)
	case 13:
		if tf.Get(defs.TF_A0) == 0 {
			// child: sleep until killed
			jmp(tf, 50)
			return sc(tf, defs.SYS_SLEEP, 1<<30)
		}
		res.killpid = int(tf.Get(defs.TF_A0))
		return sc(tf, defs.SYS_KILL, uintptr(res.killpid))
	case 14:
		return sc(tf, defs.SYS_WAIT, vaStatus)
	case 15:
		res.waitpid2 = int(tf.Get(defs.TF_A0))
		res.status2 = int(int32(util.Readn(peek(p, vaStatus, 4), 4, 0)))
		pokestr(p, vaNope, "/nope")
		pokeptrs(p, vaNopeArgv, vaNope, 0)
		return sc(tf, defs.SYS_EXEC, vaNope, vaNopeArgv)
	case 16:
		res.execfail = int(tf.Get(defs.TF_A0))
		return sc(tf, defs.SYS_FSTAT, 0, vaStatbuf)
	case 17:
		if tf.Get(defs.TF_A0) == 0 {
			b := peek(p, vaStatbuf, 12)
			res.fstatType = util.Readn(b, 2, 8)
		}
		return sc(tf, defs.SYS_GETPID)
	case 18:
		res.initpid = int(tf.Get(defs.TF_A0))
		close(done)
		return sc(tf, defs.SYS_SLEEP, 1<<30)

	// child of the first fork: feed the pipe, then become /echo
	case 40:
		pokestr(p, vaXY, "xy")
		return sc(tf, defs.SYS_WRITE, uintptr(res.pipefds[1]), vaXY, 2)
	case 41:
		pokestr(p, vaEchoPath, "/echo")
		pokestr(p, vaEchoArg, "hello")
		pokeptrs(p, vaEchoArgv, vaEchoPath, vaEchoArg, 0)
		return sc(tf, defs.SYS_EXEC, vaEchoPath, vaEchoArgv)
	case 42:
		one := uintptr(1)
		return sc(tf, defs.SYS_EXIT, uintptr(0)-one)

	// child of the second fork: only reached if the interrupted
	// sleep returned instead of exiting
	case 50:
		return sc(tf, defs.SYS_EXIT, 2)
	}
	panic("init: bad step")
}

func echoProg(p *proc.Proc_t, tf *proc.Trapframe_t, step int) int {
	switch step {
	case 0:
		// write argv[1] plus a newline to fd 1
		argv := tf.Get(defs.TF_A1)
		pp := peek(p, argv+8, 8)
		strp := uintptr(util.Readn(pp, 8, 0))
		s, err := vm.Copyinstr(p.Pagetable, strp, 32)
		if err != 0 {
			return sc(tf, defs.SYS_EXIT, 3)
		}
		res.Lock()
		res.echoArg = s.String()
		res.Unlock()
		msg := s.String() + "\n"
		pokestr(p, 300, msg)
		return sc(tf, defs.SYS_WRITE, 1, 300, uintptr(len(msg)))
	case 1:
		return sc(tf, defs.SYS_EXIT, 0)
	}
	panic("echo: bad step")
}

func TestKernelScenarios(t *testing.T) {
	img := ufs.MkImage(4, 200)
	u := ufs.BootMemFS(img)
	elf := mkElf()
	if e := u.MkFile("init", elf); e != 0 {
		t.Fatalf("mkfile init: %v", e)
	}
	if e := u.MkFile("echo", elf); e != 0 {
		t.Fatalf("mkfile echo: %v", e)
	}
	disk := u.Disk()
	ufs.ShutdownFS(u)

	m := &machine_t{progs: map[string]progfn_t{
		"initcode": initcodeProg,
		"init":     initProg,
		"echo":     echoProg,
	}}
	k := Bootkernel(2048, disk, m, 1)

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatalf("scenario script did not finish")
	}

	res.Lock()
	defer res.Unlock()

	// scenario: init launch
	if res.argc != 1 {
		t.Errorf("exec argc %d, want 1", res.argc)
	}
	if res.openfd != 0 || res.dupfd != 1 {
		t.Errorf("console fds %d %d, want 0 1", res.openfd, res.dupfd)
	}
	if res.bannerlen != len(banner) {
		t.Errorf("banner write %d", res.bannerlen)
	}
	if res.initpid != 1 {
		t.Errorf("init pid %d", res.initpid)
	}
	out := k.Cons.Output()
	if !strings.Contains(out, banner) {
		t.Errorf("console output %q missing banner", out)
	}

	// scenario: fork-exec-wait
	if res.waitpid1 != res.forkpid {
		t.Errorf("wait returned %d, want child %d", res.waitpid1, res.forkpid)
	}
	if res.status1 != 0 {
		t.Errorf("echo child status %d", res.status1)
	}
	if res.echoArg != "hello" {
		t.Errorf("echo argv[1] %q", res.echoArg)
	}
	if !strings.Contains(out, "hello\n") {
		t.Errorf("console output %q missing hello", out)
	}

	// scenario: pipe
	if res.read1 != 2 || res.read1data != "xy" {
		t.Errorf("pipe read %d %q", res.read1, res.read1data)
	}
	if res.read2 != 0 {
		t.Errorf("pipe read after close %d, want 0", res.read2)
	}

	// sbrk grow and shrink
	if !res.sbrkWrite || !res.shrinkDeny {
		t.Errorf("sbrk write %v shrink-denied %v", res.sbrkWrite, res.shrinkDeny)
	}

	// kill of a sleeping process
	if res.waitpid2 != res.killpid {
		t.Errorf("wait after kill %d, want %d", res.waitpid2, res.killpid)
	}
	if res.status2 != -1 {
		t.Errorf("killed child status %d, want -1", res.status2)
	}

	// exec of a missing binary fails, process survives
	if res.execfail != -1 {
		t.Errorf("exec /nope returned %d", res.execfail)
	}

	// fstat of the console reports a device inode
	if res.fstatType != 3 {
		t.Errorf("fstat type %d, want device", res.fstatType)
	}

	k.Shutdown()
}
