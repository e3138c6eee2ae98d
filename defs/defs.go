package defs

type Inum_t int

type Err_t int

// system-wide parameters
const (
	NPROC   = 64  // maximum number of processes
	NCPU    = 8   // maximum number of harts
	NOFILE  = 16  // open files per process
	NFILE   = 100 // open files per system
	NINODE  = 50  // maximum number of active i-nodes
	NDEV    = 10  // maximum major device number
	ROOTDEV = 1   // device number of file system root disk
	MAXARG  = 32  // max exec arguments
	MAXPATH = 128 // maximum file path name

	MAXOPBLOCKS = 10              // max # of blocks any FS op writes
	LOGSIZE     = MAXOPBLOCKS * 3 // max data blocks in on-disk log
	NBUF        = MAXOPBLOCKS * 3 // size of disk block cache
)

// trap causes delivered by the machine layer to the trap handler
const (
	TRAP_SYSCALL = 8  // environment call from U-mode
	TRAP_TIMER   = 1  // supervisor timer interrupt
	TRAP_EXTERN  = 9  // supervisor external interrupt (PLIC)
	TRAP_PGFAULT = 13 // load/store page fault
)

// trap frame layout: 8-byte slots within the trap-frame page. the
// trampoline saves every user register here on a trap; the slots
// up to kernel_hartid hold the kernel state the trampoline needs to
// get back into the kernel.
const (
	TF_KSATP   = 0 // kernel page table
	TF_KSP     = 1 // top of process's kernel stack
	TF_KTRAP   = 2 // trap handler entry
	TF_EPC     = 3 // saved user program counter
	TF_KHARTID = 4
	TF_RA      = 5
	TF_SP      = 6
	TF_GP      = 7
	TF_TP      = 8
	TF_T0      = 9
	TF_T1      = 10
	TF_T2      = 11
	TF_S0      = 12
	TF_S1      = 13
	TF_A0      = 14
	TF_A1      = 15
	TF_A2      = 16
	TF_A3      = 17
	TF_A4      = 18
	TF_A5      = 19
	TF_A6      = 20
	TF_A7      = 21
	TF_S2      = 22
	TF_S3      = 23
	TF_S4      = 24
	TF_S5      = 25
	TF_S6      = 26
	TF_S7      = 27
	TF_S8      = 28
	TF_S9      = 29
	TF_S10     = 30
	TF_S11     = 31
	TF_T3      = 32
	TF_T4      = 33
	TF_T5      = 34
	TF_T6      = 35
	TFSIZE     = 36
)
