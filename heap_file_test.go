package reldb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeapFile(t *testing.T) (*HeapFile, *BufferPool) {
	t.Helper()
	dir := t.TempDir()
	catalog := NewCatalog()
	bp := NewBufferPool(100, catalog, 500*time.Millisecond)
	hf, err := NewHeapFile(filepath.Join(dir, "t.dat"), testDesc(), bp)
	require.NoError(t, err)
	catalog.AddTable("t", hf, "")
	return hf, bp
}

func TestHeapFileInsertThenScan(t *testing.T) {
	hf, bp := newTestHeapFile(t)
	tid := NewTransactionId()
	require.NoError(t, bp.BeginTransaction(tid))

	rows := [][2]interface{}{{int32(1), "10"}, {int32(2), "20"}, {int32(3), "30"}}
	for _, r := range rows {
		tup := &Tuple{Desc: *hf.Descriptor(), Fields: []DBValue{
			IntField{Value: r[0].(int32)}, StringField{Value: r[1].(string)},
		}}
		require.NoError(t, hf.insertTuple(tup, tid))
	}
	require.NoError(t, bp.CommitTransaction(tid))

	tid2 := NewTransactionId()
	require.NoError(t, bp.BeginTransaction(tid2))
	it, err := hf.Iterator(tid2)
	require.NoError(t, err)
	var got []*Tuple
	for {
		tup, err := it()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		got = append(got, tup)
	}
	require.Len(t, got, 3)
	for i, r := range rows {
		assert.Equal(t, IntField{Value: r[0].(int32)}, got[i].Fields[0])
		assert.Equal(t, StringField{Value: r[1].(string)}, got[i].Fields[1])
	}
	require.NoError(t, bp.CommitTransaction(tid2))
}

func TestHeapFileLoadFromCSV(t *testing.T) {
	hf, bp := newTestHeapFile(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n1,x\n2,y\n"), 0644))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, hf.LoadFromCSV(f, true, ",", false))

	tid := NewTransactionId()
	require.NoError(t, bp.BeginTransaction(tid))
	it, err := hf.Iterator(tid)
	require.NoError(t, err)
	got, err := drainIter(it)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, IntField{Value: 1}, got[0].Fields[0])
	assert.Equal(t, StringField{Value: "x"}, got[0].Fields[1])
	require.NoError(t, bp.CommitTransaction(tid))
}

func TestHeapFileLoadFromCSVRejectsBadRow(t *testing.T) {
	hf, _ := newTestHeapFile(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("notanint,x\n"), 0644))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	err = hf.LoadFromCSV(f, false, ",", false)
	require.Error(t, err)
	ee, ok := err.(EngineError)
	require.True(t, ok)
	assert.Equal(t, IllegalArgumentError, ee.Code)
}

// After commit the on-disk bytes must hold the committed tuples: a
// fresh deserialization of the raw file, bypassing the buffer pool,
// sees exactly what the transaction wrote.
func TestHeapFileCommitForcesPageToDisk(t *testing.T) {
	hf, bp := newTestHeapFile(t)
	tid := NewTransactionId()
	require.NoError(t, bp.BeginTransaction(tid))
	tup := &Tuple{Desc: *hf.Descriptor(), Fields: []DBValue{IntField{Value: 7}, StringField{Value: "seven"}}}
	require.NoError(t, hf.insertTuple(tup, tid))
	require.NoError(t, bp.CommitTransaction(tid))

	raw, err := os.ReadFile(hf.BackingFile())
	require.NoError(t, err)
	require.Len(t, raw, PageSize)

	page, err := deserializeHeapPage(raw, hf.pageKey(0), hf.Descriptor(), hf)
	require.NoError(t, err)
	it := page.tupleIter()
	got, err := it()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, tup.equals(got))
}

func TestHeapFileAbortRollsBackInsert(t *testing.T) {
	hf, bp := newTestHeapFile(t)
	tid := NewTransactionId()
	require.NoError(t, bp.BeginTransaction(tid))

	tup := &Tuple{Desc: *hf.Descriptor(), Fields: []DBValue{IntField{Value: 1}, StringField{Value: "x"}}}
	require.NoError(t, hf.insertTuple(tup, tid))
	require.NoError(t, bp.AbortTransaction(tid))

	tid2 := NewTransactionId()
	require.NoError(t, bp.BeginTransaction(tid2))
	it, err := hf.Iterator(tid2)
	require.NoError(t, err)
	first, err := it()
	require.NoError(t, err)
	assert.Nil(t, first)
	require.NoError(t, bp.CommitTransaction(tid2))

	assert.Equal(t, 0, hf.onDiskPageCount())
}
