package reldb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.BufferPoolPages = 50
	cfg.LockTimeout = 200 * time.Millisecond
	return NewEngine(cfg, nil)
}

// Create table T(a,b), insert three rows, scan, expect them back in
// insertion order.
func TestEndToEndInsertAndScan(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "a", Ftype: IntType},
		{Fname: "b", Ftype: IntType},
	}}
	hf, err := e.OpenTable("T", filepath.Join(dir, "T.dat"), td)
	require.NoError(t, err)

	tid, err := e.NewTransaction()
	require.NoError(t, err)
	rows := [][2]int32{{1, 10}, {2, 20}, {3, 30}}
	for _, r := range rows {
		tup := &Tuple{Desc: *td, Fields: []DBValue{IntField{Value: r[0]}, IntField{Value: r[1]}}}
		require.NoError(t, hf.insertTuple(tup, tid))
	}
	require.NoError(t, e.Commit(tid))

	scanTid, err := e.NewTransaction()
	require.NoError(t, err)
	scan := NewSequentialScan(hf, "T")
	require.NoError(t, scan.Open(scanTid))
	got, err := drain(scan)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range rows {
		assert.Equal(t, IntField{Value: r[0]}, got[i].Fields[0])
		assert.Equal(t, IntField{Value: r[1]}, got[i].Fields[1])
	}
	require.NoError(t, e.Commit(scanTid))
}

// Insert dirties p0, then abort; a scan afterward returns nothing and
// the backing file's on-disk length is unchanged (never created).
func TestEndToEndAbortLeavesFileUnchanged(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "T.dat")
	td := &TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	hf, err := e.OpenTable("T", path, td)
	require.NoError(t, err)

	tid, err := e.NewTransaction()
	require.NoError(t, err)
	tup := &Tuple{Desc: *td, Fields: []DBValue{IntField{Value: 1}}}
	require.NoError(t, hf.insertTuple(tup, tid))
	require.NoError(t, e.Abort(tid))

	scanTid, err := e.NewTransaction()
	require.NoError(t, err)
	scan := NewSequentialScan(hf, "T")
	require.NoError(t, scan.Open(scanTid))
	got, err := drain(scan)
	require.NoError(t, err)
	assert.Len(t, got, 0)
	require.NoError(t, e.Commit(scanTid))

	assert.Equal(t, 0, hf.onDiskPageCount())
}

// Two transactions both read the same page concurrently, then one of
// them requests a write and blocks until the other releases its read.
func TestEndToEndConcurrentReadersThenBlockingWriter(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	td := &TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	hf, err := e.OpenTable("T", filepath.Join(dir, "T.dat"), td)
	require.NoError(t, err)

	seedTid, err := e.NewTransaction()
	require.NoError(t, err)
	require.NoError(t, hf.insertTuple(&Tuple{Desc: *td, Fields: []DBValue{IntField{Value: 1}}}, seedTid))
	require.NoError(t, e.Commit(seedTid))

	pid := hf.pageKey(0)
	t1, err := e.NewTransaction()
	require.NoError(t, err)
	t2, err := e.NewTransaction()
	require.NoError(t, err)

	_, err = e.Pool.GetPage(&t1, pid, ReadPerm)
	require.NoError(t, err)
	_, err = e.Pool.GetPage(&t2, pid, ReadPerm)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Pool.GetPage(&t1, pid, WritePerm)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("write should still be blocked on t2's read lock")
	default:
	}

	require.NoError(t, e.Pool.ReleasePage(&t2, pid))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write never granted")
	}
	require.NoError(t, e.Commit(t1))
	require.NoError(t, e.Commit(t2))
}

// A writer holds the page; a reader waits past the timeout and aborts.
func TestEndToEndReaderTimesOutOnHeldWrite(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	td := &TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	hf, err := e.OpenTable("T", filepath.Join(dir, "T.dat"), td)
	require.NoError(t, err)

	seedTid, err := e.NewTransaction()
	require.NoError(t, err)
	require.NoError(t, hf.insertTuple(&Tuple{Desc: *td, Fields: []DBValue{IntField{Value: 1}}}, seedTid))
	require.NoError(t, e.Commit(seedTid))

	pid := hf.pageKey(0)
	writerTid, err := e.NewTransaction()
	require.NoError(t, err)
	_, err = e.Pool.GetPage(&writerTid, pid, WritePerm)
	require.NoError(t, err)

	readerTid, err := e.NewTransaction()
	require.NoError(t, err)
	_, err = e.Pool.GetPage(&readerTid, pid, ReadPerm)
	require.Error(t, err)
	assert.True(t, IsAborted(err))
}
