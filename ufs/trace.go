package ufs

import "encoding/json"
import "fmt"
import "os"

import "github.com/shimomura1004/xv6-riscv/fs"

// Trace file of block writes and syncs, for crash-recovery testing:
// every prefix of the trace is a state the disk could have been left
// in by a power loss.

type tracef_t struct {
	file *os.File
	enc  *json.Encoder
}

type record_t struct {
	Cmd     string
	BlkNo   int
	BlkData []byte
}

type trace_t []record_t

func mkTrace() *tracef_t {
	t := &tracef_t{}
	f, err := os.Create("trace.json")
	if err != nil {
		panic(err)
	}
	t.file = f
	t.enc = json.NewEncoder(f)
	return t
}

func (t *tracef_t) write(n int, v *fs.Datablk_t) {
	r := record_t{Cmd: "write", BlkNo: n}
	r.BlkData = make([]byte, fs.BSIZE)
	copy(r.BlkData, v[:])
	if err := t.enc.Encode(&r); err != nil {
		panic(err)
	}
}

func (t *tracef_t) sync() {
	r := record_t{Cmd: "sync"}
	if err := t.enc.Encode(&r); err != nil {
		panic(err)
	}
}

func (t *tracef_t) close() {
	t.file.Sync()
	t.file.Close()
}

func ReadTrace(p string) trace_t {
	res := make([]record_t, 0)
	f, err := os.Open(p)
	if err != nil {
		panic(err)
	}
	dec := json.NewDecoder(f)
	for {
		var r record_t
		if err := dec.Decode(&r); err != nil {
			break
		}
		res = append(res, r)
	}
	f.Close()
	return res
}

func (trace trace_t) PrintTrace(start, end int) {
	fmt.Printf("trace (%d,%d):\n", start, end)
	for i, r := range trace {
		if i >= start && i < end {
			fmt.Printf("  %d: %v %v\n", i, r.Cmd, r.BlkNo)
		}
	}
}

// Writes returns the number of write records.
func (trace trace_t) Writes() int {
	n := 0
	for _, r := range trace {
		if r.Cmd == "write" {
			n++
		}
	}
	return n
}

// GenDisk applies the first crash write records of the trace to the
// image at dst, producing the disk a power loss would have left.
func (trace trace_t) GenDisk(crash int, dst string) {
	f, err := os.OpenFile(dst, os.O_RDWR, 0755)
	if err != nil {
		panic(err)
	}
	done := 0
	for _, r := range trace {
		if r.Cmd != "write" {
			continue
		}
		if done == crash {
			break
		}
		if _, err := f.Seek(int64(r.BlkNo*fs.BSIZE), 0); err != nil {
			panic(err)
		}
		if n, err := f.Write(r.BlkData); n != fs.BSIZE || err != nil {
			panic(err)
		}
		done++
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
}
