package kernel

import "fmt"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/proc"

// Machine_i is the privilege-transition machinery the kernel runs on:
// the trampoline saves user registers into the trap frame, switches
// page tables and delivers the trap cause. The hosted machine scripts
// the user side instead of executing instructions.
type Machine_i interface {
	Userrun(p *proc.Proc_t, tf *proc.Trapframe_t) int
}

// run is every process's kernel thread body: resume user execution,
// field the trap, repeat. It enters user space through the machine
// layer and never returns (Exit ends the thread).
func (k *Kernel_t) run(p *proc.Proc_t) {
	for {
		cause := k.machine.Userrun(p, p.Tf)
		k.usertrap(p, cause)
	}
}

// usertrap handles one trap from user space: a system call, a device
// interrupt, or a fault. On the way back it checks for a pending
// kill and preempts on timer ticks.
func (k *Kernel_t) usertrap(p *proc.Proc_t, cause int) {
	switch cause {
	case defs.TRAP_SYSCALL:
		if p.Killed() {
			proc.Exit(-1)
		}
		// return to the instruction after the ecall
		p.Tf.Set(defs.TF_EPC, p.Tf.Get(defs.TF_EPC)+4)
		k.syscall(p)
	case defs.TRAP_TIMER:
		if proc.Current().Id == 0 {
			k.clockintr()
		}
	case defs.TRAP_EXTERN:
		// device interrupts are delivered by the hosted drivers
		// themselves; the PLIC claim is a no-op here
	default:
		fmt.Printf("usertrap(): unexpected scause %#x pid=%d\n", cause, p.Pid)
		fmt.Printf("            epc=%#x\n", p.Tf.Get(defs.TF_EPC))
		p.Setkilled()
	}

	if p.Killed() {
		proc.Exit(-1)
	}

	// give up the hart if this was a timer interrupt
	if cause == defs.TRAP_TIMER {
		proc.Yield()
	}
}
