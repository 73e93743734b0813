package reldb

import (
	"sync"
	"time"
)

// rwLockState is the monitor backing a single page's lock: any number
// of concurrent readers, or one writer, with writers given priority
// over new readers so a steady stream of readers can't starve a
// waiting writer out forever. Deadlocks aren't detected with a
// waits-for graph; any transaction that waits longer than timeout on
// this lock is simply aborted.
type rwLockState struct {
	mu   sync.Mutex
	cond *sync.Cond

	readers       map[TransactionId]struct{}
	writer        *TransactionId
	writeRequests map[TransactionId]struct{}

	timeout time.Duration
}

func newRWLockState(timeout time.Duration) *rwLockState {
	s := &rwLockState{
		readers:       make(map[TransactionId]struct{}),
		writeRequests: make(map[TransactionId]struct{}),
		timeout:       timeout,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// canGrantReadAccess must be called with s.mu held.
func (s *rwLockState) canGrantReadAccess(tid TransactionId) bool {
	if s.writer != nil {
		return *s.writer == tid
	}
	if _, ok := s.readers[tid]; ok {
		return true
	}
	return len(s.writeRequests) == 0
}

// canGrantWriteAccess must be called with s.mu held.
func (s *rwLockState) canGrantWriteAccess(tid TransactionId) bool {
	if len(s.readers) > 0 {
		_, onlyReader := s.readers[tid]
		return onlyReader && len(s.readers) == 1
	}
	return s.writer == nil || *s.writer == tid
}

// waitOnce blocks on the condition variable until woken by a release,
// a cancellation, or the deadline timer, then reports whether the
// deadline has now passed. Must be called with s.mu held; re-acquires
// it before returning, per sync.Cond.Wait's contract.
func (s *rwLockState) waitOnce(deadline time.Time) (timedOut bool) {
	timer := time.AfterFunc(time.Until(deadline), func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()
	s.cond.Wait()
	return !time.Now().Before(deadline)
}

func (s *rwLockState) lockRead(tid TransactionId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(s.timeout)
	for !s.canGrantReadAccess(tid) {
		if !time.Now().Before(deadline) {
			return newError(TransactionAbortedError, "timed out waiting for read lock")
		}
		if s.waitOnce(deadline) && !s.canGrantReadAccess(tid) {
			return newError(TransactionAbortedError, "timed out waiting for read lock")
		}
	}
	s.readers[tid] = struct{}{}
	return nil
}

func (s *rwLockState) unlockRead(tid TransactionId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.readers[tid]; !ok {
		return newError(IllegalMonitorStateError, "transaction %d does not hold a read lock", tid)
	}
	delete(s.readers, tid)
	s.cond.Broadcast()
	return nil
}

func (s *rwLockState) lockWrite(tid TransactionId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeRequests[tid] = struct{}{}
	deadline := time.Now().Add(s.timeout)
	for !s.canGrantWriteAccess(tid) {
		if !time.Now().Before(deadline) {
			delete(s.writeRequests, tid)
			s.cond.Broadcast()
			return newError(TransactionAbortedError, "timed out waiting for write lock")
		}
		if s.waitOnce(deadline) && !s.canGrantWriteAccess(tid) {
			delete(s.writeRequests, tid)
			s.cond.Broadcast()
			return newError(TransactionAbortedError, "timed out waiting for write lock")
		}
	}
	delete(s.writeRequests, tid)
	// An upgrade consumes the shared lock: the transaction now holds
	// the page exclusively, and releasing the write lock later must
	// not leave a phantom reader behind.
	delete(s.readers, tid)
	s.writer = &tid
	return nil
}

func (s *rwLockState) unlockWrite(tid TransactionId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil || *s.writer != tid {
		return newError(IllegalMonitorStateError, "transaction %d does not hold the write lock", tid)
	}
	s.writer = nil
	s.cond.Broadcast()
	return nil
}

// cancelLockRequests withdraws tid's pending write request, used when
// a blocked caller is being aborted out from under its own wait.
func (s *rwLockState) cancelLockRequests(tid TransactionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.writeRequests, tid)
	s.cond.Broadcast()
}

// holders reports the current reader set and writer, for tests and
// invariant checks.
func (s *rwLockState) holders() (readers map[TransactionId]struct{}, writer *TransactionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[TransactionId]struct{}, len(s.readers))
	for k := range s.readers {
		out[k] = struct{}{}
	}
	return out, s.writer
}
