package fs

import "fmt"
import "sync"

import "github.com/shimomura1004/xv6-riscv/defs"
import "github.com/shimomura1004/xv6-riscv/util"

const log_debug = false

// File system journal. Filesystem calls bracket their disk updates
// with Op_begin and Op_end; the log makes each bracketed group atomic
// with respect to crashes. Concurrent ops share one transaction and
// commit together when the last one ends (group commit). All metadata
// writes go through Write instead of the cache's Bwrite.
//
// On-disk format, at sb.Logstart():
//   header block: count n, then n destination block numbers
//   n log slots holding the data of the logged blocks, in order
// The commit point is the synchronous write of a header with n > 0.

type logheader_t struct {
	n     int
	block [defs.LOGSIZE]int
}

type log_t struct {
	sync.Mutex
	cond        *sync.Cond
	start       int
	size        int
	outstanding int  // how many FS ops are executing
	committing  bool // in commit(), please wait
	dev         int
	lh          logheader_t
	bcache      *bcache_t

	// some stats
	ncommit     int
	nblkcommit  int
	nabsorption int
	maxoutst    int
}

func mkLog(start, size, dev int, bcache *bcache_t) *log_t {
	if size < 2 || size-1 > defs.LOGSIZE {
		panic("mklog: bad size")
	}
	l := &log_t{}
	l.cond = sync.NewCond(l)
	l.start = start
	l.size = size
	l.dev = dev
	l.bcache = bcache
	l.recover()
	return l
}

// Op_begin waits until this op is guaranteed log space, then joins
// the current transaction.
func (l *log_t) Op_begin(s string) {
	if log_debug {
		fmt.Printf("op_begin: %v\n", s)
	}
	l.Lock()
	for {
		if l.committing {
			l.cond.Wait()
		} else if l.lh.n+(l.outstanding+1)*defs.MAXOPBLOCKS > defs.LOGSIZE {
			// this op might exhaust log space; wait for commit
			l.cond.Wait()
		} else {
			l.outstanding++
			if l.outstanding > l.maxoutst {
				l.maxoutst = l.outstanding
			}
			break
		}
	}
	l.Unlock()
}

// Op_end retires one op; the last op out commits the transaction.
func (l *log_t) Op_end() {
	var docommit bool
	l.Lock()
	l.outstanding--
	if l.committing {
		panic("log: committing")
	}
	if l.outstanding == 0 {
		docommit = true
		l.committing = true
	} else {
		// Op_begin may be waiting for log space, and decrementing
		// outstanding has decreased the amount of reserved space
		l.cond.Broadcast()
	}
	l.Unlock()

	if docommit {
		// commit without holding locks, since Write is allowed to
		// block in Bread
		l.commit()
		l.Lock()
		l.committing = false
		l.cond.Broadcast()
		l.Unlock()
	}
}

// Write records the caller's modification of b in the current
// transaction. The buffer stays pinned in the cache until commit;
// repeated writes to the same block coalesce into one log slot.
//
//	bp := bcache.Bread(...)
//	modify bp.Data[]
//	log.Write(bp)
//	bcache.Brelse(bp)
func (l *log_t) Write(b *Bdev_block_t) {
	l.Lock()
	if l.lh.n >= defs.LOGSIZE || l.lh.n >= l.size-1 {
		panic("too big a transaction")
	}
	if l.outstanding < 1 {
		panic("log write outside of trans")
	}

	i := 0
	for ; i < l.lh.n; i++ {
		if l.lh.block[i] == b.Block { // log absorption
			l.nabsorption++
			break
		}
	}
	l.lh.block[i] = b.Block
	if i == l.lh.n { // add new block to log?
		l.bcache.Bpin(b)
		l.lh.n++
	}
	l.Unlock()
}

// read_head loads the on-disk header into the in-memory mirror.
func (l *log_t) read_head() {
	buf := l.bcache.Bread(l.dev, l.start)
	l.lh.n = util.Readn(buf.Data[:], 4, 0)
	for i := 0; i < l.lh.n; i++ {
		l.lh.block[i] = util.Readn(buf.Data[:], 4, 4+4*i)
	}
	l.bcache.Brelse(buf)
}

// write_head puts the in-memory header to disk. This is the real
// commit point when lh.n > 0.
func (l *log_t) write_head() {
	buf := l.bcache.Bread(l.dev, l.start)
	util.Writen(buf.Data[:], 4, 0, l.lh.n)
	for i := 0; i < l.lh.n; i++ {
		util.Writen(buf.Data[:], 4, 4+4*i, l.lh.block[i])
	}
	l.bcache.Bwrite(buf)
	l.bcache.Brelse(buf)
}

// write_log copies each pinned cache buffer into its log slot.
func (l *log_t) write_log() {
	for tail := 0; tail < l.lh.n; tail++ {
		to := l.bcache.Bread(l.dev, l.start+tail+1)
		from := l.bcache.Bread(l.dev, l.lh.block[tail])
		copy(to.Data[:], from.Data[:])
		l.bcache.Bwrite(to)
		l.bcache.Brelse(from)
		l.bcache.Brelse(to)
	}
}

// install_trans copies committed log slots to their home blocks.
func (l *log_t) install_trans(recovering bool) {
	for tail := 0; tail < l.lh.n; tail++ {
		lbuf := l.bcache.Bread(l.dev, l.start+tail+1)
		dbuf := l.bcache.Bread(l.dev, l.lh.block[tail])
		copy(dbuf.Data[:], lbuf.Data[:])
		l.bcache.Bwrite(dbuf)
		if !recovering {
			l.bcache.Bunpin(dbuf)
		}
		l.bcache.Brelse(lbuf)
		l.bcache.Brelse(dbuf)
	}
}

func (l *log_t) commit() {
	if l.lh.n > 0 {
		if log_debug {
			fmt.Printf("commit: %d blocks\n", l.lh.n)
		}
		l.ncommit++
		l.nblkcommit += l.lh.n
		l.write_log()           // modified blocks into the log slots
		l.write_head()          // the real commit
		l.install_trans(false)  // install writes to home locations
		l.lh.n = 0
		l.write_head()          // reboot must not re-run the trans
	}
}

// recover applies a committed but uninstalled transaction left by a
// crash, then clears the header. Running it twice is a no-op.
func (l *log_t) recover() {
	l.read_head()
	if l.lh.n > 0 {
		fmt.Printf("recovering log: %d blocks\n", l.lh.n)
	}
	l.install_trans(true)
	l.lh.n = 0
	l.write_head()
}

func (l *log_t) Stats() string {
	s := "log:"
	s += fmt.Sprintf("\n\tncommit %v", l.ncommit)
	s += fmt.Sprintf("\n\tnblkcommit %v", l.nblkcommit)
	s += fmt.Sprintf("\n\tnabsorb %v", l.nabsorption)
	s += fmt.Sprintf("\n\tmaxoutstanding %v", l.maxoutst)
	s += "\n"
	return s
}
