package reldb

// BufferPool caches pages read from disk and is the sole place pages
// are pinned, dirtied, flushed, and evicted. It is also where page
// level two-phase locking is enforced: every GetPage call first
// acquires the lock appropriate to the requested permission through
// the LockManager, blocking (and possibly aborting the caller on
// timeout) until it is granted.
//
// The pool runs NO-STEAL: a dirty page is never written to disk, nor
// evicted, until its transaction commits. Commit flushes every page
// the transaction dirtied (FORCE); abort discards those pages' changes
// by restoring each to the before-image captured when it was first
// pinned.

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

type BufferPool struct {
	catalog *Catalog
	locks   *LockManager
	log     *zap.SugaredLogger

	maxPages int

	mu      sync.Mutex
	frames  map[PageId]Page
	touched map[TransactionId]map[PageId]struct{}
}

// NewBufferPool creates a pool holding at most numPages frames at
// once, backed by catalog for resolving uncached pages and a
// LockManager built with the given per-lock timeout.
func NewBufferPool(numPages int, catalog *Catalog, lockTimeout time.Duration) *BufferPool {
	return &BufferPool{
		catalog:  catalog,
		locks:    NewLockManager(lockTimeout),
		log:      newNopLogger(),
		maxPages: numPages,
		frames:   make(map[PageId]Page),
		touched:  make(map[TransactionId]map[PageId]struct{}),
	}
}

func (bp *BufferPool) SetLogger(l *zap.SugaredLogger) {
	bp.log = l
}

// BeginTransaction records that tid is now active. The pool doesn't
// reject pages from a tid it hasn't seen begin -- GetPage starts the
// bookkeeping for any tid on first use -- but explicit callers use
// this to make intent clear and to pre-seed bookkeeping.
func (bp *BufferPool) BeginTransaction(tid TransactionId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.touched[tid]; !ok {
		bp.touched[tid] = make(map[PageId]struct{})
	}
	return nil
}

// GetPage returns the page pid, pinning it in the pool, fetching it
// from disk via the catalog if it is not already cached, and
// evicting a clean victim page first if the pool is full. With a
// non-nil tid, the caller holds perm on pid before this returns,
// acquired through the lock manager; a lock wait that exceeds the
// configured timeout aborts the request with a
// TransactionAbortedError. A nil tid skips locking entirely, for
// callers operating outside any transaction.
//
// A pid past the end of the on-disk file is not an error here: the
// pool pins a zeroed page instead, the path by which a heap file
// extends itself without touching disk until commit.
func (bp *BufferPool) GetPage(tid *TransactionId, pid PageId, perm RWPerm) (Page, error) {
	if tid != nil {
		var err error
		if perm == WritePerm {
			err = bp.locks.AcquireWrite(*tid, pid)
		} else {
			err = bp.locks.AcquireRead(*tid, pid)
		}
		if err != nil {
			bp.log.Warnw("lock acquisition failed", "tid", *tid, "page", pid, "err", err)
			return nil, err
		}
		bp.markTouched(*tid, pid)
	}

	bp.mu.Lock()
	if p, ok := bp.frames[pid]; ok {
		bp.mu.Unlock()
		return p, nil
	}
	bp.mu.Unlock()

	file, err := bp.catalog.ResolveTableId(pid.TableID)
	if err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if p, ok := bp.frames[pid]; ok {
		return p, nil
	}
	if len(bp.frames) >= bp.maxPages {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	page, err := file.readPage(int(pid.PageNo))
	if err != nil {
		ee, ok := err.(EngineError)
		if !ok || ee.Code != DBError {
			return nil, err
		}
		page = file.emptyPage(int(pid.PageNo))
		bp.log.Debugw("allocated zeroed page past end of file", "page", pid)
	} else {
		bp.log.Debugw("fetched page from disk", "page", pid)
	}
	bp.frames[pid] = page
	return page, nil
}

func (bp *BufferPool) markTouched(tid TransactionId, pid PageId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	set, ok := bp.touched[tid]
	if !ok {
		set = make(map[PageId]struct{})
		bp.touched[tid] = set
	}
	set[pid] = struct{}{}
}

// ReleasePage drops tid's lock on pid without waiting for commit or
// abort, used by HeapFile.insertTuple to give up a read lock on a page
// it has decided has no room.
func (bp *BufferPool) ReleasePage(tid *TransactionId, pid PageId) error {
	if tid == nil {
		return nil
	}
	return bp.locks.ReleasePage(*tid, pid)
}

// MarkDirty records that tid has modified pid's cached page.
func (bp *BufferPool) MarkDirty(pid PageId, tid TransactionId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if p, ok := bp.frames[pid]; ok {
		p.markDirty(true, tid)
	}
}

// evictLocked picks a clean cached page at random and drops it from
// the pool. Dirty pages can never be chosen -- NO-STEAL means a dirty
// page survives until its transaction ends -- so a pool entirely full
// of dirty pages makes eviction, and therefore any new GetPage, fail.
// Must be called with bp.mu held.
func (bp *BufferPool) evictLocked() error {
	candidates := make([]PageId, 0, len(bp.frames))
	for pid, p := range bp.frames {
		if !p.isDirty() {
			candidates = append(candidates, pid)
		}
	}
	if len(candidates) == 0 {
		return newError(DBError, "buffer pool full of dirty pages, nothing to evict")
	}
	victim := candidates[rand.Intn(len(candidates))]
	delete(bp.frames, victim)
	bp.log.Debugw("evicted page", "page", victim)
	return nil
}

// flushPageLocked writes pid's cached page to disk if dirty, clearing
// its dirty bit on success. Must be called with bp.mu held.
func (bp *BufferPool) flushPageLocked(pid PageId) error {
	p, ok := bp.frames[pid]
	if !ok || !p.isDirty() {
		return nil
	}
	if err := p.getFile().flushPage(p); err != nil {
		bp.log.Errorw("flush failed", "page", pid, "err", err)
		return err
	}
	p.markDirty(false, TransactionId(0))
	bp.log.Debugw("flushed page", "page", pid)
	return nil
}

// FlushPage flushes a single page to disk regardless of which
// transaction dirtied it.
func (bp *BufferPool) FlushPage(pid PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pid)
}

// FlushAllPages flushes every dirty cached page, irrespective of
// transaction. Intended for tests and clean shutdown, not for normal
// commit processing (which flushes only the committing transaction's
// own pages).
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	var errs error
	for pid := range bp.frames {
		if err := bp.flushPageLocked(pid); err != nil {
			errs = appendErr(errs, err)
		}
	}
	return errs
}

// DiscardPage drops pid from the pool without flushing it, used during
// abort to throw away an uncommitted page entirely when its
// before-image cannot be rebuilt.
func (bp *BufferPool) DiscardPage(pid PageId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.frames, pid)
}

// CommitTransaction flushes every page tid dirtied (FORCE) and then
// releases all of tid's locks.
func (bp *BufferPool) CommitTransaction(tid TransactionId) error {
	return bp.transactionComplete(tid, true)
}

// AbortTransaction rolls every page tid touched back to its
// before-image, resets any heap file tid extended, and releases all of
// tid's locks.
func (bp *BufferPool) AbortTransaction(tid TransactionId) error {
	return bp.transactionComplete(tid, false)
}

func (bp *BufferPool) transactionComplete(tid TransactionId, commit bool) error {
	bp.mu.Lock()
	pages := bp.touched[tid]
	pids := make([]PageId, 0, len(pages))
	for pid := range pages {
		pids = append(pids, pid)
	}
	delete(bp.touched, tid)
	bp.mu.Unlock()

	var errs error
	filesToReset := make(map[TableId]DBFile)

	for _, pid := range pids {
		bp.mu.Lock()
		p, ok := bp.frames[pid]
		bp.mu.Unlock()
		if !ok {
			continue
		}
		dirtyBy := p.dirtyTxn()
		if dirtyBy == nil || *dirtyBy != tid {
			continue
		}
		if commit {
			if err := bp.FlushPage(pid); err != nil {
				errs = appendErr(errs, err)
			}
			continue
		}

		before, err := p.getBeforeImage()
		if err != nil {
			errs = appendErr(errs, err)
			bp.DiscardPage(pid)
			continue
		}
		bp.mu.Lock()
		bp.frames[pid] = before
		bp.mu.Unlock()
		filesToReset[pid.TableID] = p.getFile()
	}

	if !commit {
		for _, f := range filesToReset {
			if hf, ok := f.(*HeapFile); ok {
				hf.resetNumPages()
			}
		}
	}

	if err := bp.locks.ReleaseAll(tid); err != nil {
		errs = appendErr(errs, err)
	}
	if commit {
		bp.log.Debugw("transaction committed", "tid", tid, "pages", len(pids))
	} else {
		bp.log.Debugw("transaction aborted", "tid", tid, "pages", len(pids))
	}

	bp.mu.Lock()
	delete(bp.touched, tid)
	bp.mu.Unlock()

	return errs
}
