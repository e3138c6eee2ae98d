package fs

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/stat"
import "github.com/shimomura1004/xv6-riscv/ustr"

// Hierarchical path resolution.

// skipelem splits "a//b/c" into the first element "a" and the rest
// "b/c", skipping runs of slashes.
func skipelem(path ustr.Ustr) (ustr.Ustr, ustr.Ustr, bool) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	if i == len(path) {
		return nil, nil, false
	}
	s := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	name := path[s:i]
	for i < len(path) && path[i] == '/' {
		i++
	}
	return name, path[i:], true
}

// namex walks path starting from the root (absolute) or cwd
// (relative). With parent set it stops one component early, returning
// the parent directory and the final component's name.
func (fs *Fs_t) namex(cwd *Inode_t, path ustr.Ustr, parent bool) (*Inode_t, ustr.Ustr, defs.Err_t) {
	var ip *Inode_t
	if path.IsAbsolute() {
		ip = fs.iget(defs.ROOTDEV, ROOTINO)
	} else {
		if cwd == nil {
			panic("namex: no cwd")
		}
		ip = fs.Idup(cwd)
	}

	name, rest, ok := skipelem(path)
	for ok {
		fs.Ilock(ip)
		if ip.Type != stat.T_DIR {
			fs.IunlockPut(ip)
			return nil, nil, -defs.ENOTDIR
		}
		if parent && len(rest) == 0 {
			// stop one level early, still holding the reference
			fs.Iunlock(ip)
			return ip, name, 0
		}
		next, _, err := fs.Dirlookup(ip, name)
		if err != 0 {
			fs.IunlockPut(ip)
			return nil, nil, -defs.ENOENT
		}
		fs.IunlockPut(ip)
		ip = next
		name, rest, ok = skipelem(rest)
	}
	if parent {
		fs.Iput(ip)
		return nil, nil, -defs.ENOENT
	}
	return ip, nil, 0
}

// Namei resolves path to an inode reference.
func (fs *Fs_t) Namei(cwd *Inode_t, path ustr.Ustr) (*Inode_t, defs.Err_t) {
	ip, _, err := fs.namex(cwd, path, false)
	return ip, err
}

// Nameiparent resolves path to its parent directory plus the final
// component name.
func (fs *Fs_t) Nameiparent(cwd *Inode_t, path ustr.Ustr) (*Inode_t, ustr.Ustr, defs.Err_t) {
	return fs.namex(cwd, path, true)
}
