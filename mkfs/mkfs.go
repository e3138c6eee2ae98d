package main

import "fmt"
import "os"
import "strconv"

import "github.com/shimomura1004/xv6-riscv/ufs"

// mkfs builds an empty file system image, optionally copying in
// files, and verifies the result by mounting it.

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: mkfs <output image> [files...]\n")
		os.Exit(1)
	}
	image := os.Args[1]

	ninodeblks, ndatablks := 10, 1000
	if v := os.Getenv("MKFS_NDATA"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		ndatablks = n
	}

	fmt.Printf("mkfs %s\n", image)
	ufs.MkDisk(image, ninodeblks, ndatablks)

	u := ufs.BootFS(image)
	for _, p := range os.Args[2:] {
		data, err := os.ReadFile(p)
		if err != nil {
			panic(err)
		}
		if ferr := u.MkFile(base(p), data); ferr != 0 {
			fmt.Printf("mkfs: copying %s failed: %v\n", p, ferr)
			os.Exit(1)
		}
	}

	st, err := u.Stat("/")
	if err != 0 {
		fmt.Printf("not a valid fs: no root inode\n")
		os.Exit(1)
	}
	fmt.Printf("root inode size %v\n", st.Size())
	dir, err := u.Ls("/")
	if err != 0 {
		fmt.Printf("not a valid fs: no root dir\n")
		os.Exit(1)
	}
	fmt.Printf("root dir: %v entries\n", len(dir))
	ufs.ShutdownFS(u)
}

func base(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
