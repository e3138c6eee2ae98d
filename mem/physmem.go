package mem

import "fmt"
import "sync"

import "github.com/shimomura1004/xv6-riscv/util"

const PGSIZE = 4096
const PGSHIFT = 12

// Pa_t is a physical address. Physical memory is hosted: an arena of
// page frames starting at KERNBASE, indexed by (pa - KERNBASE).
type Pa_t uintptr

type Bytepg_t [PGSIZE]uint8

// the machine expects RAM for kernel and user pages from KERNBASE up
// to PHYSTOP. MMIO windows sit below KERNBASE and have no backing in
// the arena; they may be mapped but never accessed through Pg.
const (
	KERNBASE Pa_t = 0x80000000
)

type Physmem_t struct {
	sync.Mutex
	pages    []uint8
	npages   int
	freelist Pa_t // pa of first free frame; 0 means empty
	nfree    int
}

// Physmem is the frame allocator singleton, set up once by Bootmem.
var Physmem *Physmem_t

func Bootmem(npages int) *Physmem_t {
	pm := &Physmem_t{}
	pm.npages = npages
	pm.pages = make([]uint8, npages*PGSIZE)
	for i := 0; i < npages; i++ {
		pm.free(KERNBASE + Pa_t(i*PGSIZE))
	}
	Physmem = pm
	return pm
}

func (pm *Physmem_t) Phystop() Pa_t {
	return KERNBASE + Pa_t(pm.npages*PGSIZE)
}

// Pg returns the frame at pa as a page-sized byte array.
func (pm *Physmem_t) Pg(pa Pa_t) *Bytepg_t {
	if pa < KERNBASE || pa >= pm.Phystop() || pa%PGSIZE != 0 {
		panic(fmt.Sprintf("bad pa %#x", uintptr(pa)))
	}
	off := int(pa - KERNBASE)
	return (*Bytepg_t)(pm.pages[off : off+PGSIZE])
}

// Slice returns n bytes of the frame holding pa, starting at pa itself
// (which need not be page aligned).
func (pm *Physmem_t) Slice(pa Pa_t, n int) []uint8 {
	base := pa &^ (PGSIZE - 1)
	off := int(pa - base)
	if off+n > PGSIZE {
		panic("slice crosses frame")
	}
	return pm.Pg(base)[off : off+n]
}

// Alloc returns one frame filled with junk, or ok == false if memory
// is exhausted.
func (pm *Physmem_t) Alloc() (Pa_t, bool) {
	pm.Lock()
	r := pm.freelist
	if r == 0 {
		pm.Unlock()
		return 0, false
	}
	pg := pm.Pg(r)
	pm.freelist = Pa_t(util.Readn(pg[:], 8, 0))
	pm.nfree--
	pm.Unlock()
	// fill with junk to catch dangling references
	for i := range pg {
		pg[i] = 5
	}
	return r, true
}

// AllocZero returns one zeroed frame.
func (pm *Physmem_t) AllocZero() (Pa_t, bool) {
	pa, ok := pm.Alloc()
	if !ok {
		return 0, false
	}
	pg := pm.Pg(pa)
	for i := range pg {
		pg[i] = 0
	}
	return pa, true
}

func (pm *Physmem_t) Free(pa Pa_t) {
	if pa%PGSIZE != 0 || pa < KERNBASE || pa >= pm.Phystop() {
		panic("free: bad pa")
	}
	// fill with junk to catch dangling references
	pg := pm.Pg(pa)
	for i := range pg {
		pg[i] = 1
	}
	pm.Lock()
	pm.free(pa)
	pm.Unlock()
}

func (pm *Physmem_t) free(pa Pa_t) {
	pg := pm.Pg(pa)
	util.Writen(pg[:], 8, 0, int(pm.freelist))
	pm.freelist = pa
	pm.nfree++
}

func (pm *Physmem_t) Nfree() int {
	pm.Lock()
	defer pm.Unlock()
	return pm.nfree
}
