package fs

import "github.com/shimomura1004/xv6-riscv/defs"

// Free-block bitmap: one bit per disk block, indexed by block number,
// 1 meaning in use. All updates go through the log.

const bitsPerBlock = BSIZE * 8

// bzero zeroes a freshly allocated data block, through the log.
func (fs *Fs_t) bzero(dev, bno int) {
	bp := fs.bcache.Bread(dev, bno)
	for i := range bp.Data {
		bp.Data[i] = 0
	}
	fs.fslog.Write(bp)
	fs.bcache.Brelse(bp)
}

// balloc allocates a zeroed data block, or returns an error if the
// disk is full.
func (fs *Fs_t) balloc(dev int) (int, defs.Err_t) {
	sz := fs.superb.Size()
	for b := 0; b < sz; b += bitsPerBlock {
		bp := fs.bcache.Bread(dev, fs.superb.Bblock(b))
		for bi := 0; bi < bitsPerBlock && b+bi < sz; bi++ {
			m := uint8(1) << uint(bi%8)
			if bp.Data[bi/8]&m == 0 { // is block free?
				bp.Data[bi/8] |= m
				fs.fslog.Write(bp)
				fs.bcache.Brelse(bp)
				fs.bzero(dev, b+bi)
				return b + bi, 0
			}
		}
		fs.bcache.Brelse(bp)
	}
	return 0, -defs.ENOSPC
}

// bfree releases a data block. Freeing a free block means the
// on-disk state is corrupt.
func (fs *Fs_t) bfree(dev, b int) {
	bp := fs.bcache.Bread(dev, fs.superb.Bblock(b))
	bi := b % bitsPerBlock
	m := uint8(1) << uint(bi%8)
	if bp.Data[bi/8]&m == 0 {
		panic("freeing free block")
	}
	bp.Data[bi/8] &^= m
	fs.fslog.Write(bp)
	fs.bcache.Brelse(bp)
}
