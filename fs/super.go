package fs

import "github.com/shimomura1004/xv6-riscv/util"

// Disk layout:
// [ boot block | super block | log | inode blocks | free bit map | data blocks ]
//
// The superblock describes the layout; mkfs computes it and it never
// changes afterwards.

const FSMAGIC = 0x10203040

// 4-byte superblock fields, in order
const (
	sbMagic      = 0
	sbSize       = 1
	sbNblocks    = 2
	sbNinodes    = 3
	sbNlog       = 4
	sbLogstart   = 5
	sbInodestart = 6
	sbBmapstart  = 7
)

type Superblock_t struct {
	Data *Datablk_t
}

func (sb *Superblock_t) field(n int) int {
	return util.Readn(sb.Data[:], 4, n*4)
}

func (sb *Superblock_t) setfield(n, v int) {
	util.Writen(sb.Data[:], 4, n*4, v)
}

func (sb *Superblock_t) Magic() int      { return sb.field(sbMagic) }
func (sb *Superblock_t) Size() int       { return sb.field(sbSize) }
func (sb *Superblock_t) Nblocks() int    { return sb.field(sbNblocks) }
func (sb *Superblock_t) Ninodes() int    { return sb.field(sbNinodes) }
func (sb *Superblock_t) Nlog() int       { return sb.field(sbNlog) }
func (sb *Superblock_t) Logstart() int   { return sb.field(sbLogstart) }
func (sb *Superblock_t) Inodestart() int { return sb.field(sbInodestart) }
func (sb *Superblock_t) Bmapstart() int  { return sb.field(sbBmapstart) }

func (sb *Superblock_t) SetMagic(v int)      { sb.setfield(sbMagic, v) }
func (sb *Superblock_t) SetSize(v int)       { sb.setfield(sbSize, v) }
func (sb *Superblock_t) SetNblocks(v int)    { sb.setfield(sbNblocks, v) }
func (sb *Superblock_t) SetNinodes(v int)    { sb.setfield(sbNinodes, v) }
func (sb *Superblock_t) SetNlog(v int)       { sb.setfield(sbNlog, v) }
func (sb *Superblock_t) SetLogstart(v int)   { sb.setfield(sbLogstart, v) }
func (sb *Superblock_t) SetInodestart(v int) { sb.setfield(sbInodestart, v) }
func (sb *Superblock_t) SetBmapstart(v int)  { sb.setfield(sbBmapstart, v) }

// Iblock returns the disk block holding inode inum.
func (sb *Superblock_t) Iblock(inum int) int {
	return inum/IPB + sb.Inodestart()
}

// Bblock returns the bitmap block covering data block b.
func (sb *Superblock_t) Bblock(b int) int {
	return b/bitsPerBlock + sb.Bmapstart()
}
