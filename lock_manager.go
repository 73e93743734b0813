package reldb

import (
	"sync"
	"time"
)

// LockManager hands out page-granular read/write locks and tracks, per
// transaction, which pages it currently holds so the buffer pool can
// release them all at commit or abort. One rwLockState exists per page
// that has ever been locked; it is never removed, since heap files
// only grow.
type LockManager struct {
	timeout time.Duration

	mu    sync.Mutex
	pages map[PageId]*rwLockState
	held  map[TransactionId]map[PageId]RWPerm
}

func NewLockManager(timeout time.Duration) *LockManager {
	return &LockManager{
		timeout: timeout,
		pages:   make(map[PageId]*rwLockState),
		held:    make(map[TransactionId]map[PageId]RWPerm),
	}
}

func (lm *LockManager) stateFor(pid PageId) *rwLockState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	s, ok := lm.pages[pid]
	if !ok {
		s = newRWLockState(lm.timeout)
		lm.pages[pid] = s
	}
	return s
}

func (lm *LockManager) markHeld(tid TransactionId, pid PageId, perm RWPerm) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	set, ok := lm.held[tid]
	if !ok {
		set = make(map[PageId]RWPerm)
		lm.held[tid] = set
	}
	if _, ok := set[pid]; !ok || perm == WritePerm {
		set[pid] = perm
	}
}

func (lm *LockManager) forgetHeld(tid TransactionId, pid PageId) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if set, ok := lm.held[tid]; ok {
		delete(set, pid)
		if len(set) == 0 {
			delete(lm.held, tid)
		}
	}
}

// HoldsLock reports whether tid currently holds any lock on pid --
// AcquireRead uses this to skip a fresh acquisition when tid already
// holds a lock on the page.
func (lm *LockManager) HoldsLock(tid TransactionId, pid PageId) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	set, ok := lm.held[tid]
	if !ok {
		return false
	}
	_, ok = set[pid]
	return ok
}

// HoldsWriteLock reports whether tid currently holds the write lock on
// pid specifically.
func (lm *LockManager) HoldsWriteLock(tid TransactionId, pid PageId) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	set, ok := lm.held[tid]
	if !ok {
		return false
	}
	return set[pid] == WritePerm
}

// AcquireRead blocks until tid holds a read lock on pid, or returns a
// TransactionAbortedError on timeout. Already holding the write lock
// satisfies a read request without any additional bookkeeping.
func (lm *LockManager) AcquireRead(tid TransactionId, pid PageId) error {
	if lm.HoldsLock(tid, pid) {
		return nil
	}
	s := lm.stateFor(pid)
	if err := s.lockRead(tid); err != nil {
		return err
	}
	lm.markHeld(tid, pid, ReadPerm)
	return nil
}

// AcquireWrite blocks until tid holds the write lock on pid, or returns
// a TransactionAbortedError on timeout.
func (lm *LockManager) AcquireWrite(tid TransactionId, pid PageId) error {
	if lm.HoldsWriteLock(tid, pid) {
		return nil
	}
	s := lm.stateFor(pid)
	if err := s.lockWrite(tid); err != nil {
		return err
	}
	lm.markHeld(tid, pid, WritePerm)
	return nil
}

// ReleasePage releases whatever lock tid holds on pid. Used for the
// early-release pattern HeapFile.insertTuple relies on when it decides
// a page it peeked at under a read lock has no room.
func (lm *LockManager) ReleasePage(tid TransactionId, pid PageId) error {
	lm.mu.Lock()
	set, ok := lm.held[tid]
	perm, held := RWPerm(0), false
	if ok {
		perm, held = set[pid]
	}
	lm.mu.Unlock()
	if !held {
		return nil
	}

	s := lm.stateFor(pid)
	var err error
	if perm == WritePerm {
		err = s.unlockWrite(tid)
	} else {
		err = s.unlockRead(tid)
	}
	lm.forgetHeld(tid, pid)
	return err
}

// ReleaseAll releases every lock tid holds and withdraws any write
// request tid still has pending, used at commit and abort. It keeps
// going after an individual release fails so a single inconsistency
// can't strand the rest of the transaction's locks, and returns the
// per-page errors combined with multierr.
func (lm *LockManager) ReleaseAll(tid TransactionId) error {
	lm.mu.Lock()
	set := lm.held[tid]
	pids := make([]PageId, 0, len(set))
	for pid := range set {
		pids = append(pids, pid)
	}
	states := make([]*rwLockState, 0, len(lm.pages))
	for _, s := range lm.pages {
		states = append(states, s)
	}
	lm.mu.Unlock()

	var errs error
	for _, pid := range pids {
		if err := lm.ReleasePage(tid, pid); err != nil {
			errs = appendErr(errs, err)
		}
	}
	for _, s := range states {
		s.cancelLockRequests(tid)
	}
	return errs
}

// HeldPages returns the set of pages tid currently holds a lock on.
func (lm *LockManager) HeldPages(tid TransactionId) []PageId {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	set, ok := lm.held[tid]
	if !ok {
		return nil
	}
	out := make([]PageId, 0, len(set))
	for pid := range set {
		out = append(out, pid)
	}
	return out
}
