package fs_test

import "bytes"
import "testing"

import "github.com/google/go-cmp/cmp"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/fdops"
import "github.com/shimomura1004/xv6-riscv/fs"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/ufs"
import "github.com/shimomura1004/xv6-riscv/ustr"

const (
	ninodeblks = 4
	ndatablks  = 600
)

func bootmem(t *testing.T) *ufs.Ufs_t {
	t.Helper()
	return ufs.BootMemFS(ufs.MkImage(ninodeblks, ndatablks))
}

func mkData(v uint8, n int) []uint8 {
	d := make([]uint8, n)
	for i := range d {
		d[i] = v
	}
	return d
}

func TestWriteReadRoundtrip(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	data := mkData(1, 517)
	if e := u.MkFile("f1", data); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	got, e := u.Read("f1")
	if e != 0 {
		t.Fatalf("read: %v", e)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("roundtrip: %s", diff)
	}
}

func TestReadBounds(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	if e := u.MkFile("f", mkData(3, 100)); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	ip, err := u.Fs.Namei(nil, ustr.Ustr("/f"))
	if err != 0 {
		t.Fatalf("namei: %v", err)
	}
	defer u.Fs.IputOp(ip)

	// read at size returns 0
	buf := make([]uint8, 10)
	n, err := u.Fs.Fs_read(ip, fdops.MkFakeubuf(buf), 100, 10)
	if err != 0 || n != 0 {
		t.Fatalf("read at size: n %d err %v", n, err)
	}
	// read past size returns 0
	n, err = u.Fs.Fs_read(ip, fdops.MkFakeubuf(buf), 200, 10)
	if err != 0 || n != 0 {
		t.Fatalf("read past size: n %d err %v", n, err)
	}
	// read crossing size truncates to size-off
	n, err = u.Fs.Fs_read(ip, fdops.MkFakeubuf(buf), 95, 10)
	if err != 0 || n != 5 {
		t.Fatalf("read across size: n %d err %v", n, err)
	}
}

func TestLinkUnlinkLaw(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	if e := u.MkFile("a", mkData(7, 64)); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	st0, e := u.Stat("a")
	if e != 0 {
		t.Fatalf("stat: %v", e)
	}

	if e := u.Link("a", "b"); e != 0 {
		t.Fatalf("link: %v", e)
	}
	stb, e := u.Stat("b")
	if e != 0 || stb.Ino() != st0.Ino() {
		t.Fatalf("b not the same inode: %v %v", e, stb)
	}
	if e := u.Unlink("b"); e != 0 {
		t.Fatalf("unlink: %v", e)
	}

	// a unchanged, same inode, same nlink as before
	st1, e := u.Stat("a")
	if e != 0 {
		t.Fatalf("stat after: %v", e)
	}
	if st1.Ino() != st0.Ino() || st1.Nlink() != st0.Nlink() {
		t.Fatalf("link;unlink changed a: %+v -> %+v", st0, st1)
	}
	if _, e := u.Stat("b"); e == 0 {
		t.Fatalf("b still exists")
	}
}

func TestLinkToDirRefused(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)
	if e := u.MkDir("d"); e != 0 {
		t.Fatalf("mkdir: %v", e)
	}
	if e := u.Link("d", "d2"); e == 0 {
		t.Fatalf("hard link to directory allowed")
	}
}

func TestMkdirRmdir(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	root0, e := u.Stat("/")
	if e != 0 {
		t.Fatalf("stat /: %v", e)
	}
	if e := u.MkDir("d"); e != 0 {
		t.Fatalf("mkdir: %v", e)
	}
	st, e := u.Stat("d")
	if e != 0 || st.Type() != stat.T_DIR {
		t.Fatalf("d: %v %v", e, st)
	}
	root1, _ := u.Stat("/")
	if root1.Nlink() != root0.Nlink()+1 {
		t.Fatalf("mkdir didn't bump parent nlink: %d -> %d", root0.Nlink(), root1.Nlink())
	}

	// a populated directory refuses unlink
	if e := u.MkFile("d/f", nil); e != 0 {
		t.Fatalf("mkfile in d: %v", e)
	}
	if e := u.Unlink("d"); e == 0 {
		t.Fatalf("unlink of non-empty dir allowed")
	}
	if e := u.Unlink("d/f"); e != 0 {
		t.Fatalf("unlink d/f: %v", e)
	}

	if e := u.Unlink("d"); e != 0 {
		t.Fatalf("rmdir: %v", e)
	}
	root2, _ := u.Stat("/")
	if root2.Nlink() != root0.Nlink() {
		t.Fatalf("rmdir didn't restore parent nlink: %d", root2.Nlink())
	}
}

func TestSubdirPaths(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	for _, d := range []string{"a", "a/b", "a/b/c"} {
		if e := u.MkDir(d); e != 0 {
			t.Fatalf("mkdir %s: %v", d, e)
		}
	}
	data := mkData(9, 33)
	if e := u.MkFile("a/b/c/f", data); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	// runs of slashes and dot components via "." entries
	got, e := u.Read("/a//b/./c/f")
	if e != 0 {
		t.Fatalf("read: %v", e)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("content differs")
	}
	// an intermediate that is not a directory fails cleanly
	if _, e := u.Read("a/b/c/f/x"); e == 0 {
		t.Fatalf("walk through file succeeded")
	}
	// a missing intermediate fails cleanly
	if _, e := u.Read("a/nope/f"); e == 0 {
		t.Fatalf("walk through missing dir succeeded")
	}
}

func TestBigFileAndBmapBoundary(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	// exactly the largest representable file: NDIRECT direct blocks
	// plus a full single-indirect block
	if e := u.MkFile("big", nil); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	ip, err := u.Fs.Namei(nil, ustr.Ustr("/big"))
	if err != 0 {
		t.Fatalf("namei: %v", err)
	}
	defer u.Fs.IputOp(ip)

	chunk := mkData(5, fs.BSIZE)
	for i := 0; i < fs.MAXFILE; i++ {
		chunk[0] = uint8(i)
		n, werr := u.Fs.Fs_write(ip, fdops.MkFakeubuf(chunk), i*fs.BSIZE, fs.BSIZE)
		if werr != 0 || n != fs.BSIZE {
			t.Fatalf("write block %d: n %d err %v", i, n, werr)
		}
	}
	// one more byte exceeds the maximum file size
	if _, werr := u.Fs.Fs_write(ip, fdops.MkFakeubuf([]uint8{1}), fs.MAXFILE*fs.BSIZE, 1); werr == 0 {
		t.Fatalf("write past MAXFILE succeeded")
	}

	// spot-check the last block round-trips
	got := make([]uint8, fs.BSIZE)
	n, rerr := u.Fs.Fs_read(ip, fdops.MkFakeubuf(got), (fs.MAXFILE-1)*fs.BSIZE, fs.BSIZE)
	if rerr != 0 || n != fs.BSIZE {
		t.Fatalf("read last block: %v", rerr)
	}
	lastIdx := fs.MAXFILE - 1
	if got[0] != uint8(lastIdx) || got[1] != 5 {
		t.Fatalf("last block content %d %d", got[0], got[1])
	}
}

func TestUnlinkWhileOpen(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	if e := u.MkFile("a", mkData(1, fs.BSIZE)); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	free0 := freeblocks(t, u)

	// hold the inode open across the unlink
	ip, err := u.Fs.Fs_open(nil, ustr.Ustr("/a"), defs.O_RDWR, 0, 0)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}
	if e := u.Unlink("a"); e != 0 {
		t.Fatalf("unlink: %v", e)
	}

	// writes through the open reference still succeed
	if n, werr := u.Fs.Fs_write(ip, fdops.MkFakeubuf([]uint8("hi")), 0, 2); werr != 0 || n != 2 {
		t.Fatalf("write after unlink: n %d err %v", n, werr)
	}

	// the last close frees the inode and its blocks
	u.Fs.IputOp(ip)
	if _, e := u.Stat("a"); e == 0 {
		t.Fatalf("a still present")
	}
	if free1 := freeblocks(t, u); free1 <= free0 {
		t.Fatalf("blocks not returned to the bitmap: %d -> %d", free0, free1)
	}
}

// freeblocks probes how many data blocks are still allocatable by
// filling the disk with throwaway files and then removing them.
func freeblocks(t *testing.T, u *ufs.Ufs_t) int {
	t.Helper()
	chunk := mkData(0, fs.BSIZE)
	total := 0
	var probes []string
	for pi := 0; ; pi++ {
		name := "__p" + string([]byte{byte('a' + pi)})
		if e := u.MkFile(name, nil); e != 0 {
			break
		}
		probes = append(probes, name)
		ip, err := u.Fs.Namei(nil, ustr.Ustr("/"+name))
		if err != 0 {
			t.Fatalf("probe namei: %v", err)
		}
		n := 0
		for n < fs.MAXFILE {
			w, werr := u.Fs.Fs_write(ip, fdops.MkFakeubuf(chunk), n*fs.BSIZE, fs.BSIZE)
			if werr != 0 || w != fs.BSIZE {
				break
			}
			n++
		}
		u.Fs.IputOp(ip)
		total += n
		if n < fs.MAXFILE {
			break
		}
	}
	for _, name := range probes {
		if e := u.Unlink(name); e != 0 {
			t.Fatalf("probe unlink: %v", e)
		}
	}
	return total
}

func TestCreateExisting(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	if e := u.MkFile("f", mkData(1, 10)); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	// O_CREATE on an existing file opens it
	ip, err := u.Fs.Fs_open(nil, ustr.Ustr("/f"), defs.O_CREATE|defs.O_RDWR, 0, 0)
	if err != 0 {
		t.Fatalf("re-create: %v", err)
	}
	u.Fs.IputOp(ip)
	// mkdir over an existing name fails
	if e := u.MkDir("f"); e == 0 {
		t.Fatalf("mkdir over file succeeded")
	}
	// O_TRUNC empties it
	ip, err = u.Fs.Fs_open(nil, ustr.Ustr("/f"), defs.O_RDWR|defs.O_TRUNC, 0, 0)
	if err != 0 {
		t.Fatalf("open trunc: %v", err)
	}
	u.Fs.Ilock(ip)
	sz := ip.Size
	u.Fs.Iunlock(ip)
	u.Fs.IputOp(ip)
	if sz != 0 {
		t.Fatalf("O_TRUNC left size %d", sz)
	}
}

func TestOpenDirForWriting(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)
	if _, err := u.Fs.Fs_open(nil, ustr.Ustr("/"), defs.O_RDWR, 0, 0); err == 0 {
		t.Fatalf("opened / for writing")
	}
	ip, err := u.Fs.Fs_open(nil, ustr.Ustr("/"), defs.O_RDONLY, 0, 0)
	if err != 0 {
		t.Fatalf("read-only open of / failed: %v", err)
	}
	u.Fs.IputOp(ip)
}

func TestPersistenceAcrossReboot(t *testing.T) {
	dst := t.TempDir() + "/disk.img"
	ufs.MkDisk(dst, ninodeblks, ndatablks)

	u := ufs.BootFS(dst)
	if e := u.MkDir("d"); e != 0 {
		t.Fatalf("mkdir: %v", e)
	}
	data := mkData(8, 2000)
	if e := u.MkFile("d/f", data); e != 0 {
		t.Fatalf("mkfile: %v", e)
	}
	ufs.ShutdownFS(u)

	u = ufs.BootFS(dst)
	got, e := u.Read("d/f")
	if e != 0 {
		t.Fatalf("read after reboot: %v", e)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("content after reboot: %s", diff)
	}
	ufs.ShutdownFS(u)
}

func TestConcurrentFiles(t *testing.T) {
	u := bootmem(t)
	defer ufs.ShutdownFS(u)

	const n = 4
	c := make(chan string, n)
	for i := 0; i < n; i++ {
		go func(id int) {
			d := string([]byte{'w', byte('0' + id)})
			if e := u.MkDir(d); e != 0 {
				c <- "mkdir failed"
				return
			}
			for j := 0; j < 8; j++ {
				f := d + "/f" + string([]byte{byte('0' + j)})
				if e := u.MkFile(f, mkData(uint8(id), 300)); e != 0 {
					c <- "mkfile failed"
					return
				}
			}
			c <- ""
		}(i)
	}
	for i := 0; i < n; i++ {
		if s := <-c; s != "" {
			t.Fatalf("worker: %s", s)
		}
	}
	for i := 0; i < n; i++ {
		d := string([]byte{'w', byte('0' + i)})
		ls, e := u.Ls(d)
		if e != 0 || len(ls) != 8 {
			t.Fatalf("ls %s: %v %d", d, e, len(ls))
		}
	}
}
