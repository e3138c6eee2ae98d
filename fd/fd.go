package fd

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/pipe"
import "github.com/shimomura1004/xv6-riscv/proc"
import "github.com/shimomura1004/xv6-riscv/stat"

type Ftype_t int

const (
	FD_NONE Ftype_t = iota
	FD_PIPE
	FD_INODE
	FD_DEVICE
)

// File_t is one system-wide open file. ref counts the descriptors
// (and forked copies) that refer to it; the type selects which
// payload is live.
type File_t struct {
	Type     Ftype_t
	ref      int // protected by ftable's lock
	Readable bool
	Writable bool
	Pipe     *pipe.Pipe_t
	Ip       *fs.Inode_t
	Off      int // FD_INODE only
	Major    int // FD_DEVICE only
	fs       *fs.Fs_t
}

// ftable is the system-wide open-file table.
type ftable_t struct {
	lock  proc.Spinlock_t
	files [defs.NFILE]File_t
}

var ftable = ftable_t{lock: proc.Spinlock_t{Name: "ftable"}}

// Filealloc finds a free slot in the file table.
func Filealloc() *File_t {
	ftable.lock.Acquire()
	for i := range ftable.files {
		f := &ftable.files[i]
		if f.ref == 0 {
			f.ref = 1
			ftable.lock.Release()
			return f
		}
	}
	ftable.lock.Release()
	return nil
}

// Fdup bumps the reference count.
func (f *File_t) Fdup() *File_t {
	ftable.lock.Acquire()
	if f.ref < 1 {
		panic("filedup")
	}
	f.ref++
	ftable.lock.Release()
	return f
}

// Dup is Fdup through the process layer's interface.
func (f *File_t) Dup() proc.File_i {
	return f.Fdup()
}

// Close drops a reference; the last reference releases the payload.
// An inode payload is released inside a transaction.
func (f *File_t) Close() {
	ftable.lock.Acquire()
	if f.ref < 1 {
		panic("fileclose")
	}
	f.ref--
	if f.ref > 0 {
		ftable.lock.Release()
		return
	}
	ff := *f
	f.Type = FD_NONE
	f.Ip = nil
	f.Pipe = nil
	ftable.lock.Release()

	switch ff.Type {
	case FD_PIPE:
		ff.Pipe.Close(ff.Writable)
	case FD_INODE, FD_DEVICE:
		ff.fs.IputOp(ff.Ip)
	}
}

// Stat fills st for inode-backed files.
func (f *File_t) Stat(st *stat.Stat_t) defs.Err_t {
	if f.Type == FD_INODE || f.Type == FD_DEVICE {
		f.fs.Ilock(f.Ip)
		f.fs.Stati(f.Ip, st)
		f.fs.Iunlock(f.Ip)
		return 0
	}
	return -defs.EINVAL
}

// Read dispatches by file type and advances the offset by the number
// of bytes transferred.
func (f *File_t) Read(dst fdops.Userio_i, n int) (int, defs.Err_t) {
	if !f.Readable {
		return 0, -defs.EBADF
	}
	switch f.Type {
	case FD_PIPE:
		return f.Pipe.Read(dst, n)
	case FD_DEVICE:
		if f.Major < 0 || f.Major >= defs.NDEV || Devsw[f.Major].Read == nil {
			return 0, -defs.ENODEV
		}
		return Devsw[f.Major].Read(dst, n)
	case FD_INODE:
		r, err := f.fs.Fs_read(f.Ip, dst, f.Off, n)
		if err == 0 {
			f.Off += r
		}
		return r, err
	}
	panic("fileread")
}

// Write dispatches by file type.
func (f *File_t) Write(src fdops.Userio_i, n int) (int, defs.Err_t) {
	if !f.Writable {
		return 0, -defs.EBADF
	}
	switch f.Type {
	case FD_PIPE:
		return f.Pipe.Write(src, n)
	case FD_DEVICE:
		if f.Major < 0 || f.Major >= defs.NDEV || Devsw[f.Major].Write == nil {
			return 0, -defs.ENODEV
		}
		return Devsw[f.Major].Write(src, n)
	case FD_INODE:
		r, err := f.fs.Fs_write(f.Ip, src, f.Off, n)
		if err == 0 {
			f.Off += r
		}
		if err == 0 && r != n {
			return r, -defs.ENOSPC
		}
		return r, err
	}
	panic("filewrite")
}

// MkInodefile wraps an inode reference in an open file.
func MkInodefile(fsys *fs.Fs_t, ip *fs.Inode_t, readable, writable bool) *File_t {
	f := Filealloc()
	if f == nil {
		return nil
	}
	if ip.Type == stat.T_DEVICE {
		f.Type = FD_DEVICE
		f.Major = ip.Major
	} else {
		f.Type = FD_INODE
		f.Off = 0
	}
	f.Ip = ip
	f.fs = fsys
	f.Readable = readable
	f.Writable = writable
	return f
}

// MkPipefiles makes the two ends of a fresh pipe.
func MkPipefiles() (*File_t, *File_t, defs.Err_t) {
	rf := Filealloc()
	if rf == nil {
		return nil, nil, -defs.EMFILE
	}
	wf := Filealloc()
	if wf == nil {
		rf.Close()
		return nil, nil, -defs.EMFILE
	}
	pi := pipe.MkPipe()
	rf.Type = FD_PIPE
	rf.Readable = true
	rf.Writable = false
	rf.Pipe = pi
	wf.Type = FD_PIPE
	wf.Readable = false
	wf.Writable = true
	wf.Pipe = pi
	return rf, wf, 0
}
