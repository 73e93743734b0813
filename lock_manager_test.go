package reldb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManagerAcquireReleaseAll(t *testing.T) {
	lm := NewLockManager(time.Second)
	pid1 := PageId{TableID: 1, PageNo: 0}
	pid2 := PageId{TableID: 1, PageNo: 1}

	require.NoError(t, lm.AcquireRead(1, pid1))
	require.NoError(t, lm.AcquireWrite(1, pid2))

	assert.True(t, lm.HoldsLock(1, pid1))
	assert.True(t, lm.HoldsWriteLock(1, pid2))

	require.NoError(t, lm.ReleaseAll(1))
	assert.False(t, lm.HoldsLock(1, pid1))
	assert.False(t, lm.HoldsLock(1, pid2))
}

func TestLockManagerTimeoutAborts(t *testing.T) {
	lm := NewLockManager(50 * time.Millisecond)
	pid := PageId{TableID: 1, PageNo: 0}

	require.NoError(t, lm.AcquireWrite(1, pid))
	err := lm.AcquireRead(2, pid)
	require.Error(t, err)
	assert.True(t, IsAborted(err))
}

func TestLockManagerReleasePageIsIdempotent(t *testing.T) {
	lm := NewLockManager(time.Second)
	pid := PageId{TableID: 1, PageNo: 0}
	require.NoError(t, lm.AcquireRead(1, pid))
	require.NoError(t, lm.ReleasePage(1, pid))
	require.NoError(t, lm.ReleasePage(1, pid))
}
