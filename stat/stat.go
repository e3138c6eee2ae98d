package stat

import "github.com/shimomura1004/xv6-riscv/util"

// file types, as stored in inodes and reported by fstat
const (
	T_DIR    = 1
	T_FILE   = 2
	T_DEVICE = 3
)

// Stat_t is the user-visible metadata record filled by fstat.
type Stat_t struct {
	_dev   int
	_ino   int
	_type  int
	_nlink int
	_size  int
}

func (st *Stat_t) Wdev(v int)   { st._dev = v }
func (st *Stat_t) Wino(v int)   { st._ino = v }
func (st *Stat_t) Wtype(v int)  { st._type = v }
func (st *Stat_t) Wnlink(v int) { st._nlink = v }
func (st *Stat_t) Wsize(v int)  { st._size = v }

func (st *Stat_t) Dev() int   { return st._dev }
func (st *Stat_t) Ino() int   { return st._ino }
func (st *Stat_t) Type() int  { return st._type }
func (st *Stat_t) Nlink() int { return st._nlink }
func (st *Stat_t) Size() int  { return st._size }

const Stsize = 4 + 4 + 2 + 2 + 4 + 8 // 4 bytes of padding align size

// Bytes serializes the record the way the C struct lays it out, for
// copying to user memory.
func (st *Stat_t) Bytes() []uint8 {
	b := make([]uint8, Stsize)
	util.Writen(b, 4, 0, st._dev)
	util.Writen(b, 4, 4, st._ino)
	util.Writen(b, 2, 8, st._type)
	util.Writen(b, 2, 10, st._nlink)
	util.Writen(b, 8, 16, st._size)
	return b
}
