package fs

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/ustr"

// A directory is an inode whose content is an array of fixed-size
// entries: a 2-byte inode number (0 marks a free slot) and a
// fixed-width name.

const (
	DIRSIZ  = 14
	DESIZE  = 2 + DIRSIZ // bytes per directory entry
)

// Dirdata_t decodes directory entries in a byte slice.
type Dirdata_t struct {
	Data []uint8
}

func (dd *Dirdata_t) Inum(off int) int {
	return util.Readn(dd.Data, 2, off)
}

func (dd *Dirdata_t) Name(off int) ustr.Ustr {
	return ustr.MkUstrSlice(dd.Data[off+2 : off+2+DIRSIZ])
}

func (dd *Dirdata_t) WEntry(off int, inum int, name ustr.Ustr) {
	util.Writen(dd.Data, 2, off, inum)
	sl := dd.Data[off+2 : off+2+DIRSIZ]
	for i := range sl {
		if i < len(name) {
			sl[i] = name[i]
		} else {
			sl[i] = 0
		}
	}
}

// Dirlookup scans directory dp for name; on a hit it returns the
// referenced inode and the entry's byte offset. Caller holds dp's
// lock.
func (fs *Fs_t) Dirlookup(dp *Inode_t, name ustr.Ustr) (*Inode_t, int, defs.Err_t) {
	if dp.Type != stat.T_DIR {
		panic("dirlookup not DIR")
	}
	if len(name) > DIRSIZ {
		name = name[:DIRSIZ]
	}

	var de [DESIZE]uint8
	for off := 0; off < dp.Size; off += DESIZE {
		ub := fdops.MkFakeubuf(de[:])
		n, err := fs.Readi(dp, ub, off, DESIZE)
		if err != 0 || n != DESIZE {
			panic("dirlookup read")
		}
		dd := Dirdata_t{de[:]}
		if dd.Inum(0) == 0 {
			continue
		}
		if dd.Name(0).Eq(name) {
			return fs.iget(dp.Dev, dd.Inum(0)), off, 0
		}
	}
	return nil, 0, -defs.ENOENT
}

// Dirlink writes a new entry (name, inum) into dp, refusing
// duplicates. Caller holds dp's lock and a transaction.
func (fs *Fs_t) Dirlink(dp *Inode_t, name ustr.Ustr, inum int) defs.Err_t {
	// check that name is not present
	if ip, _, err := fs.Dirlookup(dp, name); err == 0 {
		fs.Iput(ip)
		return -defs.EEXIST
	}

	if len(name) > DIRSIZ {
		name = name[:DIRSIZ]
	}

	// look for an empty dirent
	var de [DESIZE]uint8
	off := 0
	for ; off < dp.Size; off += DESIZE {
		ub := fdops.MkFakeubuf(de[:])
		n, err := fs.Readi(dp, ub, off, DESIZE)
		if err != 0 || n != DESIZE {
			panic("dirlink read")
		}
		dd := Dirdata_t{de[:]}
		if dd.Inum(0) == 0 {
			break
		}
	}

	dd := Dirdata_t{de[:]}
	dd.WEntry(0, inum, name)
	ub := fdops.MkFakeubuf(de[:])
	if n, err := fs.Writei(dp, ub, off, DESIZE); err != 0 || n != DESIZE {
		return -defs.ENOSPC
	}
	return 0
}

// isdirempty reports whether dp holds only "." and "..".
func (fs *Fs_t) isdirempty(dp *Inode_t) bool {
	var de [DESIZE]uint8
	for off := 2 * DESIZE; off < dp.Size; off += DESIZE {
		ub := fdops.MkFakeubuf(de[:])
		n, err := fs.Readi(dp, ub, off, DESIZE)
		if err != 0 || n != DESIZE {
			panic("isdirempty read")
		}
		dd := Dirdata_t{de[:]}
		if dd.Inum(0) != 0 {
			return false
		}
	}
	return true
}
