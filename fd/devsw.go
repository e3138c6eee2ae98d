package fd

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/proc"

// Devsw maps a device inode's major number to its handlers; drivers
// register themselves at boot.
var Devsw [defs.NDEV]struct {
	Read  func(dst fdops.Userio_i, n int) (int, defs.Err_t)
	Write func(src fdops.Userio_i, n int) (int, defs.Err_t)
}

// Cwd_t is a process's working directory: an inode reference released
// inside its own transaction.
type Cwd_t struct {
	Fs *fs.Fs_t
	Ip *fs.Inode_t
}

func (c *Cwd_t) Dup() proc.Cwd_i {
	return &Cwd_t{Fs: c.Fs, Ip: c.Fs.Idup(c.Ip)}
}

func (c *Cwd_t) Put() {
	c.Fs.IputOp(c.Ip)
}
