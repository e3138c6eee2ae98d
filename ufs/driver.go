package ufs

import "os"
import "sync"

import "github.com/shimomura1004/xv6-riscv/fs"

// Hosted disk drivers. Requests complete synchronously, so Start
// always returns false (no interrupt to wait for).

// filedisk_t backs the disk with an image file.
type filedisk_t struct {
	sync.Mutex
	f *os.File
	t *tracef_t
}

func OpenDisk(d string) *filedisk_t {
	f, err := os.OpenFile(d, os.O_RDWR, 0755)
	if err != nil {
		panic(err)
	}
	return &filedisk_t{f: f}
}

// StartTrace records every subsequent write and sync to trace.json.
func (fd *filedisk_t) StartTrace() {
	fd.t = mkTrace()
}

func (fd *filedisk_t) seek(o int) {
	if _, err := fd.f.Seek(int64(o), 0); err != nil {
		panic(err)
	}
}

func (fd *filedisk_t) Start(req *fs.Bdev_req_t) bool {
	fd.Lock()
	defer fd.Unlock()

	switch req.Cmd {
	case fs.BDEV_READ:
		blk := req.Blk
		fd.seek(blk.Block * fs.BSIZE)
		if n, err := fd.f.Read(blk.Data[:]); n != fs.BSIZE || err != nil {
			panic(err)
		}
	case fs.BDEV_WRITE:
		blk := req.Blk
		fd.seek(blk.Block * fs.BSIZE)
		if n, err := fd.f.Write(blk.Data[:]); n != fs.BSIZE || err != nil {
			panic(err)
		}
		if fd.t != nil {
			fd.t.write(blk.Block, blk.Data)
		}
	case fs.BDEV_FLUSH:
		fd.f.Sync()
		if fd.t != nil {
			fd.t.sync()
		}
	}
	return false
}

func (fd *filedisk_t) Stats() string {
	return ""
}

func (fd *filedisk_t) Close() {
	if fd.t != nil {
		fd.t.close()
	}
	if err := fd.f.Close(); err != nil {
		panic(err)
	}
}

// memdisk_t keeps the image in memory; handy for tests that don't
// care about crash traces.
type memdisk_t struct {
	sync.Mutex
	data []uint8
}

func MkMemdisk(img []uint8) *memdisk_t {
	d := make([]uint8, len(img))
	copy(d, img)
	return &memdisk_t{data: d}
}

func (md *memdisk_t) Start(req *fs.Bdev_req_t) bool {
	md.Lock()
	defer md.Unlock()

	switch req.Cmd {
	case fs.BDEV_READ:
		blk := req.Blk
		copy(blk.Data[:], md.data[blk.Block*fs.BSIZE:(blk.Block+1)*fs.BSIZE])
	case fs.BDEV_WRITE:
		blk := req.Blk
		copy(md.data[blk.Block*fs.BSIZE:(blk.Block+1)*fs.BSIZE], blk.Data[:])
	case fs.BDEV_FLUSH:
	}
	return false
}

func (md *memdisk_t) Stats() string {
	return ""
}
