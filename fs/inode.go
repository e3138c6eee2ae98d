package fs

import "fmt"
import "sync"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/util"

const (
	ROOTINO = 1 // root directory inode number

	NDIRECT   = 12
	NINDIRECT = BSIZE / 4
	MAXFILE   = NDIRECT + NINDIRECT

	ISIZE = 64 // on-disk inode record size
	IPB   = BSIZE / ISIZE
)

// on-disk inode field offsets: type, major, minor and nlink are
// 2-byte; size is 4-byte; then NDIRECT+1 4-byte block numbers.
const (
	diType  = 0
	diMajor = 2
	diMinor = 4
	diNlink = 6
	diSize  = 8
	diAddrs = 12
)

// Inode_t is the in-memory copy of a disk inode. Identity and ref are
// protected by the inode-table lock; everything below valid is
// protected by the inode's own lock and mirrors the disk once valid.
type Inode_t struct {
	Dev  int
	Inum int
	ref  int
	lock sync.Mutex
	valid bool

	Type  int
	Major int
	Minor int
	Nlink int
	Size  int
	addrs [NDIRECT + 1]int
}

// itable_t is a content-addressed cache of in-memory inodes: at most
// one entry per (dev, inum), pinned while ref > 0.
type itable_t struct {
	sync.Mutex
	inodes [defs.NINODE]Inode_t
}

func dislice(bp *Bdev_block_t, inum int) []uint8 {
	off := (inum % IPB) * ISIZE
	return bp.Data[off : off+ISIZE]
}

// ialloc allocates a free on-disk inode with the given type. Must be
// called inside a transaction.
func (fs *Fs_t) ialloc(dev, typ int) (*Inode_t, defs.Err_t) {
	ninodes := fs.superb.Ninodes()
	for inum := 1; inum < ninodes; inum++ {
		bp := fs.bcache.Bread(dev, fs.superb.Iblock(inum))
		di := dislice(bp, inum)
		if util.Readn(di, 2, diType) == 0 { // a free inode
			for i := range di {
				di[i] = 0
			}
			util.Writen(di, 2, diType, typ)
			fs.fslog.Write(bp) // mark it allocated on the disk
			fs.bcache.Brelse(bp)
			return fs.iget(dev, inum), 0
		}
		fs.bcache.Brelse(bp)
	}
	fmt.Printf("ialloc: no inodes\n")
	return nil, -defs.ENOSPC
}

// Iupdate copies a modified in-memory inode to disk, through the log.
// Caller holds ip's lock and a transaction.
func (fs *Fs_t) Iupdate(ip *Inode_t) {
	bp := fs.bcache.Bread(ip.Dev, fs.superb.Iblock(ip.Inum))
	di := dislice(bp, ip.Inum)
	util.Writen(di, 2, diType, ip.Type)
	util.Writen(di, 2, diMajor, ip.Major)
	util.Writen(di, 2, diMinor, ip.Minor)
	util.Writen(di, 2, diNlink, ip.Nlink)
	util.Writen(di, 4, diSize, ip.Size)
	for i := 0; i <= NDIRECT; i++ {
		util.Writen(di, 4, diAddrs+4*i, ip.addrs[i])
	}
	fs.fslog.Write(bp)
	fs.bcache.Brelse(bp)
}

// iget returns the in-memory inode for (dev, inum), with its ref
// bumped but without locking it or reading it from disk.
func (fs *Fs_t) iget(dev, inum int) *Inode_t {
	it := &fs.itable
	it.Lock()

	var empty *Inode_t
	for i := range it.inodes {
		ip := &it.inodes[i]
		if ip.ref > 0 && ip.Dev == dev && ip.Inum == inum {
			ip.ref++
			it.Unlock()
			return ip
		}
		if empty == nil && ip.ref == 0 {
			empty = ip
		}
	}

	if empty == nil {
		panic("iget: no inodes")
	}
	ip := empty
	ip.Dev = dev
	ip.Inum = inum
	ip.ref = 1
	ip.valid = false
	it.Unlock()
	return ip
}

// Idup bumps the reference count.
func (fs *Fs_t) Idup(ip *Inode_t) *Inode_t {
	fs.itable.Lock()
	ip.ref++
	fs.itable.Unlock()
	return ip
}

// Ilock locks the inode, reading it from disk on first use. An
// allocated inode must have a non-zero type on disk.
func (fs *Fs_t) Ilock(ip *Inode_t) {
	if ip == nil || ip.ref < 1 {
		panic("ilock")
	}
	ip.lock.Lock()
	if !ip.valid {
		bp := fs.bcache.Bread(ip.Dev, fs.superb.Iblock(ip.Inum))
		di := dislice(bp, ip.Inum)
		ip.Type = util.Readn(di, 2, diType)
		ip.Major = util.Readn(di, 2, diMajor)
		ip.Minor = util.Readn(di, 2, diMinor)
		ip.Nlink = util.Readn(di, 2, diNlink)
		ip.Size = util.Readn(di, 4, diSize)
		for i := 0; i <= NDIRECT; i++ {
			ip.addrs[i] = util.Readn(di, 4, diAddrs+4*i)
		}
		fs.bcache.Brelse(bp)
		ip.valid = true
		if ip.Type == 0 {
			panic("ilock: no type")
		}
	}
}

func (fs *Fs_t) Iunlock(ip *Inode_t) {
	if ip == nil || ip.ref < 1 {
		panic("iunlock")
	}
	ip.lock.Unlock()
}

// Iput drops a reference. The last reference to an unlinked inode
// frees it on disk, so such callers must hold a transaction.
func (fs *Fs_t) Iput(ip *Inode_t) {
	it := &fs.itable
	it.Lock()

	if ip.ref == 1 && ip.valid && ip.Nlink == 0 {
		// ip->ref == 1 means no other process can have ip locked,
		// so this lock won't block or deadlock
		ip.lock.Lock()
		it.Unlock()

		fs.itrunc(ip)
		ip.Type = 0
		fs.Iupdate(ip)
		ip.valid = false

		ip.lock.Unlock()
		it.Lock()
	}

	ip.ref--
	it.Unlock()
}

func (fs *Fs_t) IunlockPut(ip *Inode_t) {
	fs.Iunlock(ip)
	fs.Iput(ip)
}

// bmap returns the disk block holding the bn'th block of ip's data,
// allocating it (and the single-indirect block) if needed.
func (fs *Fs_t) bmap(ip *Inode_t, bn int) (int, defs.Err_t) {
	if bn < NDIRECT {
		addr := ip.addrs[bn]
		if addr == 0 {
			na, err := fs.balloc(ip.Dev)
			if err != 0 {
				return 0, err
			}
			ip.addrs[bn] = na
			addr = na
		}
		return addr, 0
	}
	bn -= NDIRECT

	if bn < NINDIRECT {
		// load the indirect block, allocating if necessary
		addr := ip.addrs[NDIRECT]
		if addr == 0 {
			na, err := fs.balloc(ip.Dev)
			if err != 0 {
				return 0, err
			}
			ip.addrs[NDIRECT] = na
			addr = na
		}
		bp := fs.bcache.Bread(ip.Dev, addr)
		a := util.Readn(bp.Data[:], 4, 4*bn)
		if a == 0 {
			na, err := fs.balloc(ip.Dev)
			if err != 0 {
				fs.bcache.Brelse(bp)
				return 0, err
			}
			util.Writen(bp.Data[:], 4, 4*bn, na)
			fs.fslog.Write(bp)
			a = na
		}
		fs.bcache.Brelse(bp)
		return a, 0
	}

	panic("bmap: out of range")
}

// itrunc discards all of ip's data blocks. Caller holds ip's lock and
// a transaction.
func (fs *Fs_t) itrunc(ip *Inode_t) {
	for i := 0; i < NDIRECT; i++ {
		if ip.addrs[i] != 0 {
			fs.bfree(ip.Dev, ip.addrs[i])
			ip.addrs[i] = 0
		}
	}

	if ip.addrs[NDIRECT] != 0 {
		bp := fs.bcache.Bread(ip.Dev, ip.addrs[NDIRECT])
		for j := 0; j < NINDIRECT; j++ {
			if a := util.Readn(bp.Data[:], 4, 4*j); a != 0 {
				fs.bfree(ip.Dev, a)
			}
		}
		fs.bcache.Brelse(bp)
		fs.bfree(ip.Dev, ip.addrs[NDIRECT])
		ip.addrs[NDIRECT] = 0
	}

	ip.Size = 0
	fs.Iupdate(ip)
}

// Stati fills st from ip. Caller holds ip's lock.
func (fs *Fs_t) Stati(ip *Inode_t, st *stat.Stat_t) {
	st.Wdev(ip.Dev)
	st.Wino(ip.Inum)
	st.Wtype(ip.Type)
	st.Wnlink(ip.Nlink)
	st.Wsize(ip.Size)
}

// Readi copies up to n bytes from ip starting at off into dst. Reads
// at or past the end return 0; reads crossing the end truncate.
func (fs *Fs_t) Readi(ip *Inode_t, dst fdops.Userio_i, off, n int) (int, defs.Err_t) {
	if off > ip.Size || off+n < off {
		return 0, 0
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}

	tot := 0
	for tot < n {
		bn, err := fs.bmap(ip, off/BSIZE)
		if err != 0 {
			break
		}
		bp := fs.bcache.Bread(ip.Dev, bn)
		m := util.Min(n-tot, BSIZE-off%BSIZE)
		wrote, err := dst.Uiowrite(bp.Data[off%BSIZE : off%BSIZE+m])
		fs.bcache.Brelse(bp)
		if err != 0 || wrote != m {
			if tot == 0 {
				return 0, -defs.EFAULT
			}
			break
		}
		tot += m
		off += m
	}
	return tot, 0
}

// Writei copies n bytes from src into ip starting at off, growing the
// file if needed. Writing past the largest possible file fails.
func (fs *Fs_t) Writei(ip *Inode_t, src fdops.Userio_i, off, n int) (int, defs.Err_t) {
	if off > ip.Size || off+n < off {
		return 0, -defs.EINVAL
	}
	if off+n > MAXFILE*BSIZE {
		return 0, -defs.EFBIG
	}

	tot := 0
	var reterr defs.Err_t
	for tot < n {
		bn, err := fs.bmap(ip, off/BSIZE)
		if err != 0 {
			reterr = err
			break
		}
		bp := fs.bcache.Bread(ip.Dev, bn)
		m := util.Min(n-tot, BSIZE-off%BSIZE)
		read, err := src.Uioread(bp.Data[off%BSIZE : off%BSIZE+m])
		if err != 0 || read != m {
			fs.bcache.Brelse(bp)
			reterr = -defs.EFAULT
			break
		}
		fs.fslog.Write(bp)
		fs.bcache.Brelse(bp)
		tot += m
		off += m
	}

	if off > ip.Size {
		ip.Size = off
	}
	// write the i-node back to disk even if the size didn't change
	// because bmap could have added a new block to ip->addrs
	fs.Iupdate(ip)

	if tot == 0 && reterr != 0 {
		return 0, reterr
	}
	return tot, 0
}
