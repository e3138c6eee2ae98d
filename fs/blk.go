package fs

import "sync"

const BSIZE = 1024

type Datablk_t [BSIZE]uint8

type Bdevcmd_t uint

const (
	BDEV_READ  Bdevcmd_t = 1
	BDEV_WRITE Bdevcmd_t = 2
	BDEV_FLUSH Bdevcmd_t = 3
)

// Bdev_req_t is one synchronous block request. The driver wakes the
// caller through AckCh when Start returns true.
type Bdev_req_t struct {
	Cmd   Bdevcmd_t
	Blk   *Bdev_block_t
	Sync  bool
	AckCh chan bool
}

func MkRequest(b *Bdev_block_t, cmd Bdevcmd_t, sync bool) *Bdev_req_t {
	return &Bdev_req_t{Cmd: cmd, Blk: b, Sync: sync, AckCh: make(chan bool)}
}

type Disk_i interface {
	// Start submits a request; true means the caller must wait on
	// AckCh for completion.
	Start(*Bdev_req_t) bool
	Stats() string
}

// Bdev_block_t is one cache entry: a disk block's identity, its data,
// and a sleep lock guarding both data and valid. Identity and the
// refcnt are protected by the cache lock.
type Bdev_block_t struct {
	sync.Mutex
	Dev    int
	Block  int
	valid  bool
	refcnt int
	Data   *Datablk_t
	disk   Disk_i
}

func mkBlock(dev, block int, disk Disk_i) *Bdev_block_t {
	return &Bdev_block_t{Dev: dev, Block: block, Data: &Datablk_t{}, disk: disk}
}

// Read fills Data from the disk; caller holds the block's lock.
func (b *Bdev_block_t) Read() {
	req := MkRequest(b, BDEV_READ, true)
	if b.disk.Start(req) {
		<-req.AckCh
	}
}

// Write puts Data to the disk; caller holds the block's lock.
func (b *Bdev_block_t) Write() {
	if !b.valid {
		panic("bwrite: not valid")
	}
	req := MkRequest(b, BDEV_WRITE, true)
	if b.disk.Start(req) {
		<-req.AckCh
	}
}
