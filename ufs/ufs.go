package ufs

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/ustr"

// Ufs_t runs the file system in user space against a disk image, the
// way the kernel proper runs it against the virtio disk. mkfs and the
// tests drive it.
type Ufs_t struct {
	disk fs.Disk_i
	Fs   *fs.Fs_t
	root *fs.Inode_t
}

func BootFS(dst string) *Ufs_t {
	u := &Ufs_t{}
	fd := OpenDisk(dst)
	u.disk = fd
	u.Fs = fs.StartFS(fd)
	u.root = u.Fs.Root()
	return u
}

func BootMemFS(img []uint8) *Ufs_t {
	u := &Ufs_t{}
	md := MkMemdisk(img)
	u.disk = md
	u.Fs = fs.StartFS(md)
	u.root = u.Fs.Root()
	return u
}

func (u *Ufs_t) Disk() fs.Disk_i {
	return u.disk
}

func ShutdownFS(u *Ufs_t) {
	u.Fs.IputOp(u.root)
	u.Fs.StopFS()
	if fd, ok := u.disk.(*filedisk_t); ok {
		fd.Close()
	}
}

func (u *Ufs_t) MkFile(p string, data []uint8) defs.Err_t {
	ip, err := u.Fs.Fs_open(u.root, ustr.Ustr(p), defs.O_CREATE|defs.O_RDWR, 0, 0)
	if err != 0 {
		return err
	}
	if len(data) > 0 {
		ub := fdops.MkFakeubuf(data)
		if n, err := u.Fs.Fs_write(ip, ub, 0, len(data)); err != 0 || n != len(data) {
			u.Fs.IputOp(ip)
			if err == 0 {
				err = -defs.ENOSPC
			}
			return err
		}
	}
	u.Fs.IputOp(ip)
	return 0
}

func (u *Ufs_t) Append(p string, data []uint8) defs.Err_t {
	ip, err := u.Fs.Fs_open(u.root, ustr.Ustr(p), defs.O_RDWR, 0, 0)
	if err != 0 {
		return err
	}
	u.Fs.Ilock(ip)
	off := ip.Size
	u.Fs.Iunlock(ip)
	ub := fdops.MkFakeubuf(data)
	if n, werr := u.Fs.Fs_write(ip, ub, off, len(data)); werr != 0 || n != len(data) {
		u.Fs.IputOp(ip)
		return -defs.ENOSPC
	}
	u.Fs.IputOp(ip)
	return 0
}

func (u *Ufs_t) MkDir(p string) defs.Err_t {
	return u.Fs.Fs_mkdir(u.root, ustr.Ustr(p))
}

func (u *Ufs_t) Unlink(p string) defs.Err_t {
	return u.Fs.Fs_unlink(u.root, ustr.Ustr(p))
}

func (u *Ufs_t) Link(old, new string) defs.Err_t {
	return u.Fs.Fs_link(u.root, ustr.Ustr(old), ustr.Ustr(new))
}

func (u *Ufs_t) Stat(p string) (*stat.Stat_t, defs.Err_t) {
	st := &stat.Stat_t{}
	if err := u.Fs.Fs_stat(u.root, ustr.Ustr(p), st); err != 0 {
		return nil, err
	}
	return st, 0
}

func (u *Ufs_t) Read(p string) ([]uint8, defs.Err_t) {
	st, err := u.Stat(p)
	if err != 0 {
		return nil, err
	}
	ip, err := u.Fs.Namei(u.root, ustr.Ustr(p))
	if err != 0 {
		return nil, err
	}
	data := make([]uint8, st.Size())
	ub := fdops.MkFakeubuf(data)
	n, rerr := u.Fs.Fs_read(ip, ub, 0, len(data))
	u.Fs.IputOp(ip)
	if rerr != 0 || n != len(data) {
		return nil, -defs.EIO
	}
	return data, 0
}

// Ls returns the names in directory p, except "." and "..".
func (u *Ufs_t) Ls(p string) (map[string]*stat.Stat_t, defs.Err_t) {
	res := make(map[string]*stat.Stat_t)
	data, err := u.Read(p)
	if err != 0 {
		return nil, err
	}
	dd := fs.Dirdata_t{Data: data}
	for off := 0; off+fs.DESIZE <= len(data); off += fs.DESIZE {
		if dd.Inum(off) == 0 {
			continue
		}
		name := dd.Name(off)
		if name.Isdot() || name.Isdotdot() {
			continue
		}
		st, serr := u.Stat(p + "/" + name.String())
		if serr != 0 {
			return nil, serr
		}
		res[name.String()] = st
	}
	return res, 0
}
