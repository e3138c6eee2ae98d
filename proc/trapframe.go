package proc

import "github.com/shimomura1004/xv6-riscv/mem"
import "github.com/shimomura1004/xv6-riscv/util"

// Trapframe_t views the per-process trap-frame page as an array of
// 8-byte register slots (indices in defs.TF_*). The trampoline spills
// every user register here on a trap.
type Trapframe_t struct {
	Data *mem.Bytepg_t
}

func (tf *Trapframe_t) Get(r int) uintptr {
	return uintptr(util.Readn(tf.Data[:], 8, r*8))
}

func (tf *Trapframe_t) Set(r int, v uintptr) {
	util.Writen(tf.Data[:], 8, r*8, int(v))
}

func (tf *Trapframe_t) Copy(src *Trapframe_t) {
	copy(tf.Data[:], src.Data[:])
}
