package ufs

import "fmt"
import "os"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/util"
import "github.com/shimomura1004/xv6-riscv/ustr"

// Disk image layout:
//   block 0: boot block (unused by the file system)
//   block 1: superblock
//   log: header block plus LOGSIZE slots
//   inode blocks
//   free bitmap, one bit per block (metadata pre-marked in use)
//   data blocks
// The root directory is inode 1, holding "." and "..".

const image_debug = false

// MkImage builds a fresh file system image in memory.
func MkImage(ninodeblks, ndatablks int) []uint8 {
	nlog := defs.LOGSIZE + 1
	ninodes := ninodeblks * fs.IPB
	nbitmap := (2+nlog+ninodeblks+ndatablks)/(fs.BSIZE*8) + 1
	nmeta := 2 + nlog + ninodeblks + nbitmap
	size := nmeta + ndatablks

	img := make([]uint8, size*fs.BSIZE)
	blk := func(n int) []uint8 {
		return img[n*fs.BSIZE : (n+1)*fs.BSIZE]
	}

	// superblock
	sdata := &fs.Datablk_t{}
	sb := fs.Superblock_t{Data: sdata}
	sb.SetMagic(fs.FSMAGIC)
	sb.SetSize(size)
	sb.SetNblocks(ndatablks)
	sb.SetNinodes(ninodes)
	sb.SetNlog(nlog)
	sb.SetLogstart(2)
	sb.SetInodestart(2 + nlog)
	sb.SetBmapstart(2 + nlog + ninodeblks)
	copy(blk(1), sdata[:])
	if image_debug {
		fmt.Printf("mkimage: size %d nmeta %d (log %d inode %d bitmap %d) data %d\n",
			size, nmeta, nlog, ninodeblks, nbitmap, ndatablks)
	}

	// root inode
	rootino := fs.ROOTINO
	iblk := blk(sb.Inodestart() + rootino/fs.IPB)
	di := iblk[(rootino%fs.IPB)*fs.ISIZE : (rootino%fs.IPB+1)*fs.ISIZE]
	util.Writen(di, 2, 0, stat.T_DIR) // type
	util.Writen(di, 2, 6, 1)          // nlink
	util.Writen(di, 4, 8, 2*fs.DESIZE)
	util.Writen(di, 4, 12, nmeta) // first data block

	// root directory data: "." and ".."
	dblk := blk(nmeta)
	dd := fs.Dirdata_t{Data: dblk}
	dd.WEntry(0, rootino, ustr.Dot)
	dd.WEntry(fs.DESIZE, rootino, ustr.DotDot)

	// bitmap: metadata blocks and the root directory block are in use
	used := nmeta + 1
	bblk := blk(sb.Bmapstart())
	for b := 0; b < used; b++ {
		bblk[b/8] |= 1 << uint(b%8)
	}
	return img
}

// MkDisk writes a fresh image to a file.
func MkDisk(disk string, ninodeblks, ndatablks int) {
	img := MkImage(ninodeblks, ndatablks)
	f, err := os.Create(disk)
	if err != nil {
		panic(err)
	}
	if _, err := f.Write(img); err != nil {
		panic(err)
	}
	f.Sync()
	if err := f.Close(); err != nil {
		panic(err)
	}
}

// CopyDisk duplicates an image file, for crash-test reboots.
func CopyDisk(src, dst string) {
	in, err := os.ReadFile(src)
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(dst, in, 0755); err != nil {
		panic(err)
	}
}
