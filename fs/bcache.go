package fs

import "container/list"
import "sync"

import "github.com/shimomura1004/xv6-riscv/defs"

// Block cache: a bounded set of buffers holding cached copies of disk
// blocks, linked in recency order (front = most recently used). The
// cache lock protects identity, refcnt and list order; each buffer's
// own lock protects its data.
//
// The cache guarantees one buffer per (dev, block) so all users see
// each other's writes.

type bcache_t struct {
	sync.Mutex
	lru  *list.List // of *Bdev_block_t
	disk Disk_i
}

func mkBcache(disk Disk_i) *bcache_t {
	bc := &bcache_t{}
	bc.lru = list.New()
	bc.disk = disk
	for i := 0; i < defs.NBUF; i++ {
		bc.lru.PushBack(mkBlock(0, 0, disk))
	}
	return bc
}

// bget returns a locked buffer for (dev, blockno), recycling the
// least-recently-used free buffer on a miss. Running out of free
// buffers means the cache is over-subscribed, which is a
// configuration bug.
func (bc *bcache_t) bget(dev, blockno int) *Bdev_block_t {
	bc.Lock()

	// already cached?
	for e := bc.lru.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Bdev_block_t)
		if b.Dev == dev && b.Block == blockno {
			b.refcnt++
			bc.Unlock()
			b.Lock()
			return b
		}
	}

	// recycle the least recently used unreferenced buffer
	for e := bc.lru.Back(); e != nil; e = e.Prev() {
		b := e.Value.(*Bdev_block_t)
		if b.refcnt == 0 {
			b.Dev = dev
			b.Block = blockno
			b.valid = false
			b.refcnt = 1
			bc.Unlock()
			b.Lock()
			return b
		}
	}
	panic("bget: no buffers")
}

// Bread returns a locked buffer with the block's contents.
func (bc *bcache_t) Bread(dev, blockno int) *Bdev_block_t {
	b := bc.bget(dev, blockno)
	if !b.valid {
		b.Read()
		b.valid = true
	}
	return b
}

// Bwrite puts the buffer's contents to disk. Caller holds the
// buffer's lock. Only the log writes blocks directly.
func (bc *bcache_t) Bwrite(b *Bdev_block_t) {
	b.Write()
}

// Brelse unlocks the buffer and drops the reference; an unreferenced
// buffer moves to the head of the recency list.
func (bc *bcache_t) Brelse(b *Bdev_block_t) {
	b.Unlock()

	bc.Lock()
	b.refcnt--
	if b.refcnt < 0 {
		panic("brelse")
	}
	if b.refcnt == 0 {
		for e := bc.lru.Front(); e != nil; e = e.Next() {
			if e.Value.(*Bdev_block_t) == b {
				bc.lru.MoveToFront(e)
				break
			}
		}
	}
	bc.Unlock()
}

// Bpin keeps the buffer in the cache without re-reading it; the log
// pins dirty buffers until commit.
func (bc *bcache_t) Bpin(b *Bdev_block_t) {
	bc.Lock()
	b.refcnt++
	bc.Unlock()
}

func (bc *bcache_t) Bunpin(b *Bdev_block_t) {
	bc.Lock()
	b.refcnt--
	if b.refcnt < 0 {
		panic("bunpin")
	}
	bc.Unlock()
}
