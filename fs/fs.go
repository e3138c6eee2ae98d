package fs

import "fmt"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/ustr"

const fs_debug = false

type Fs_t struct {
	disk   Disk_i
	bcache *bcache_t
	fslog  *log_t
	itable itable_t
	superb Superblock_t
}

// StartFS reads and checks the superblock, replays any committed log
// left by a crash, and returns the ready filesystem.
func StartFS(disk Disk_i) *Fs_t {
	fs := &Fs_t{}
	fs.disk = disk
	fs.bcache = mkBcache(disk)

	// the superblock is never modified, so hold the buffer's copy
	b := fs.bcache.Bread(defs.ROOTDEV, 1)
	data := &Datablk_t{}
	copy(data[:], b.Data[:])
	fs.bcache.Brelse(b)
	fs.superb = Superblock_t{data}
	if fs.superb.Magic() != FSMAGIC {
		panic("invalid file system")
	}
	if fs_debug {
		fmt.Printf("fs: size %v nblocks %v ninodes %v nlog %v logstart %v inodestart %v bmapstart %v\n",
			fs.superb.Size(), fs.superb.Nblocks(), fs.superb.Ninodes(), fs.superb.Nlog(),
			fs.superb.Logstart(), fs.superb.Inodestart(), fs.superb.Bmapstart())
	}

	fs.fslog = mkLog(fs.superb.Logstart(), fs.superb.Nlog(), defs.ROOTDEV, fs.bcache)
	return fs
}

// StopFS pushes everything to the backing store; with a synchronous
// write-through log there is nothing buffered, so this is a flush.
func (fs *Fs_t) StopFS() {
	req := MkRequest(nil, BDEV_FLUSH, true)
	if fs.disk.Start(req) {
		<-req.AckCh
	}
}

func (fs *Fs_t) Op_begin(s string) {
	fs.fslog.Op_begin(s)
}

func (fs *Fs_t) Op_end() {
	fs.fslog.Op_end()
}

// Root returns a reference to the root directory inode.
func (fs *Fs_t) Root() *Inode_t {
	return fs.iget(defs.ROOTDEV, ROOTINO)
}

// IputOp is Iput bracketed by its own transaction, for callers that
// don't hold one (file close, exit's cwd release).
func (fs *Fs_t) IputOp(ip *Inode_t) {
	fs.Op_begin("iput")
	fs.Iput(ip)
	fs.Op_end()
}

// create makes a new inode of the given type linked at path. Must be
// called inside a transaction; returns the new inode locked. Opening
// an existing regular file with O_CREATE succeeds.
func (fs *Fs_t) create(cwd *Inode_t, path ustr.Ustr, typ, major, minor int) (*Inode_t, defs.Err_t) {
	dp, name, err := fs.Nameiparent(cwd, path)
	if err != 0 {
		return nil, err
	}
	fs.Ilock(dp)

	if ip, _, err := fs.Dirlookup(dp, name); err == 0 {
		fs.IunlockPut(dp)
		fs.Ilock(ip)
		if typ == stat.T_FILE && (ip.Type == stat.T_FILE || ip.Type == stat.T_DEVICE) {
			return ip, 0
		}
		fs.IunlockPut(ip)
		return nil, -defs.EEXIST
	}

	ip, err := fs.ialloc(dp.Dev, typ)
	if err != 0 {
		fs.IunlockPut(dp)
		return nil, err
	}

	fs.Ilock(ip)
	ip.Major = major
	ip.Minor = minor
	ip.Nlink = 1
	fs.Iupdate(ip)

	ok := true
	if typ == stat.T_DIR {
		// no ip->nlink++ for ".": avoid a cyclic ref count
		ok = fs.Dirlink(ip, ustr.Dot, ip.Inum) == 0 &&
			fs.Dirlink(ip, ustr.DotDot, dp.Inum) == 0
	}
	if ok {
		ok = fs.Dirlink(dp, name, ip.Inum) == 0
	}
	if !ok {
		// something went wrong; de-allocate ip
		ip.Nlink = 0
		fs.Iupdate(ip)
		fs.IunlockPut(ip)
		fs.IunlockPut(dp)
		return nil, -defs.ENOSPC
	}

	if typ == stat.T_DIR {
		// now that success is guaranteed:
		dp.Nlink++ // for ".."
		fs.Iupdate(dp)
	}
	fs.IunlockPut(dp)
	return ip, 0
}

// Fs_open resolves (or creates) path and returns a referenced,
// unlocked inode ready to be wrapped in an open file. Truncation of
// an existing regular file happens here, inside the transaction.
func (fs *Fs_t) Fs_open(cwd *Inode_t, path ustr.Ustr, flags defs.Fdopt_t, major, minor int) (*Inode_t, defs.Err_t) {
	fs.Op_begin("open")
	defer fs.Op_end()

	var ip *Inode_t
	if flags&defs.O_CREATE != 0 {
		nip, err := fs.create(cwd, path, stat.T_FILE, major, minor)
		if err != 0 {
			return nil, err
		}
		ip = nip
	} else {
		nip, err := fs.Namei(cwd, path)
		if err != 0 {
			return nil, err
		}
		ip = nip
		fs.Ilock(ip)
		if ip.Type == stat.T_DIR && flags&(defs.O_WRONLY|defs.O_RDWR) != 0 {
			fs.IunlockPut(ip)
			return nil, -defs.EISDIR
		}
	}

	if ip.Type == stat.T_DEVICE && (ip.Major < 0 || ip.Major >= defs.NDEV) {
		fs.IunlockPut(ip)
		return nil, -defs.ENODEV
	}

	if flags&defs.O_TRUNC != 0 && ip.Type == stat.T_FILE {
		fs.itrunc(ip)
	}

	fs.Iunlock(ip)
	return ip, 0
}

// Fs_mkdir creates a directory.
func (fs *Fs_t) Fs_mkdir(cwd *Inode_t, path ustr.Ustr) defs.Err_t {
	fs.Op_begin("mkdir")
	defer fs.Op_end()
	ip, err := fs.create(cwd, path, stat.T_DIR, 0, 0)
	if err != 0 {
		return err
	}
	fs.IunlockPut(ip)
	return 0
}

// Fs_mknod creates a device inode.
func (fs *Fs_t) Fs_mknod(cwd *Inode_t, path ustr.Ustr, major, minor int) defs.Err_t {
	fs.Op_begin("mknod")
	defer fs.Op_end()
	ip, err := fs.create(cwd, path, stat.T_DEVICE, major, minor)
	if err != 0 {
		return err
	}
	fs.IunlockPut(ip)
	return 0
}

// Fs_link makes new refer to old's inode. Hard links to directories
// are refused.
func (fs *Fs_t) Fs_link(cwd *Inode_t, old, new ustr.Ustr) defs.Err_t {
	fs.Op_begin("link")
	defer fs.Op_end()

	ip, err := fs.Namei(cwd, old)
	if err != 0 {
		return err
	}
	fs.Ilock(ip)
	if ip.Type == stat.T_DIR {
		fs.IunlockPut(ip)
		return -defs.EPERM
	}
	ip.Nlink++
	fs.Iupdate(ip)
	fs.Iunlock(ip)

	dp, name, nerr := fs.Nameiparent(cwd, new)
	if nerr == 0 {
		fs.Ilock(dp)
		if dp.Dev != ip.Dev || fs.Dirlink(dp, name, ip.Inum) != 0 {
			fs.IunlockPut(dp)
			nerr = -defs.ENOSPC
		} else {
			fs.IunlockPut(dp)
			fs.Iput(ip)
			return 0
		}
	}

	// undo the link count bump
	fs.Ilock(ip)
	ip.Nlink--
	fs.Iupdate(ip)
	fs.IunlockPut(ip)
	return nerr
}

// Fs_unlink removes path's directory entry and drops the inode's link
// count. A directory must be empty; its removal also drops the
// parent's link count for "..".
func (fs *Fs_t) Fs_unlink(cwd *Inode_t, path ustr.Ustr) defs.Err_t {
	fs.Op_begin("unlink")
	defer fs.Op_end()

	dp, name, err := fs.Nameiparent(cwd, path)
	if err != 0 {
		return err
	}
	fs.Ilock(dp)

	// cannot unlink "." or "..".
	if name.Isdot() || name.Isdotdot() {
		fs.IunlockPut(dp)
		return -defs.EINVAL
	}

	ip, off, err := fs.Dirlookup(dp, name)
	if err != 0 {
		fs.IunlockPut(dp)
		return err
	}
	fs.Ilock(ip)

	if ip.Nlink < 1 {
		panic("unlink: nlink < 1")
	}
	if ip.Type == stat.T_DIR && !fs.isdirempty(ip) {
		fs.IunlockPut(ip)
		fs.IunlockPut(dp)
		return -defs.ENOTEMPTY
	}

	var de [DESIZE]uint8
	ub := fdops.MkFakeubuf(de[:])
	if n, err := fs.Writei(dp, ub, off, DESIZE); err != 0 || n != DESIZE {
		panic("unlink: writei")
	}
	if ip.Type == stat.T_DIR {
		dp.Nlink-- // the removed directory's ".."
		fs.Iupdate(dp)
	}
	fs.IunlockPut(dp)

	ip.Nlink--
	fs.Iupdate(ip)
	fs.IunlockPut(ip)
	return 0
}

// Fs_stat resolves path and fills st.
func (fs *Fs_t) Fs_stat(cwd *Inode_t, path ustr.Ustr, st *stat.Stat_t) defs.Err_t {
	fs.Op_begin("stat")
	defer fs.Op_end()
	ip, err := fs.Namei(cwd, path)
	if err != 0 {
		return err
	}
	fs.Ilock(ip)
	fs.Stati(ip, st)
	fs.IunlockPut(ip)
	return 0
}

// Fs_chdir resolves path to a directory inode and releases the old
// working directory, returning the new one.
func (fs *Fs_t) Fs_chdir(cwd *Inode_t, path ustr.Ustr) (*Inode_t, defs.Err_t) {
	fs.Op_begin("chdir")
	defer fs.Op_end()

	ip, err := fs.Namei(cwd, path)
	if err != 0 {
		return nil, err
	}
	fs.Ilock(ip)
	if ip.Type != stat.T_DIR {
		fs.IunlockPut(ip)
		return nil, -defs.ENOTDIR
	}
	fs.Iunlock(ip)
	if cwd != nil {
		fs.Iput(cwd)
	}
	return ip, 0
}

// Fs_read reads from a regular file or directory inode.
func (fs *Fs_t) Fs_read(ip *Inode_t, dst fdops.Userio_i, off, n int) (int, defs.Err_t) {
	fs.Ilock(ip)
	r, err := fs.Readi(ip, dst, off, n)
	fs.Iunlock(ip)
	return r, err
}

// Fs_write writes to a regular file inode, splitting large writes
// into several transactions so each fits in the log.
func (fs *Fs_t) Fs_write(ip *Inode_t, src fdops.Userio_i, off, n int) (int, defs.Err_t) {
	// write a few blocks at a time to avoid exceeding the maximum
	// log transaction size, including i-node, indirect block,
	// allocation blocks, and 2 blocks of slop for non-aligned
	// writes.
	max := ((defs.MAXOPBLOCKS - 1 - 1 - 2) / 2) * BSIZE
	i := 0
	for i < n {
		n1 := util.Min(n-i, max)
		fs.Op_begin("write")
		fs.Ilock(ip)
		r, err := fs.Writei(ip, src, off, n1)
		fs.Iunlock(ip)
		fs.Op_end()
		if err != 0 {
			if i > 0 {
				break
			}
			return 0, err
		}
		off += r
		i += r
		if r != n1 {
			break
		}
	}
	return i, 0
}
