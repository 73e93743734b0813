package reldb

import (
	"hash/fnv"
	"path/filepath"
	"sync/atomic"
)

// TableId names a table's backing file. It is derived once, from the
// absolute path of the file, and is stable for the lifetime of the
// catalog entry.
type TableId int32

// TableIdForPath hashes the absolute form of path into a TableId the
// way the catalog assigns ids to newly registered tables.
func TableIdForPath(path string) (TableId, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, newError(IOError, "resolve absolute path for %s: %v", path, err)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(abs))
	return TableId(int32(h.Sum32())), nil
}

// PageId names a single page within a table's file.
type PageId struct {
	TableID TableId
	PageNo  int32
}

// RecordId names a tuple's slot within a page.
type RecordId struct {
	PID    PageId
	SlotNo int32
}

// TransactionId is a monotonically allocated transaction identifier.
// The zero value is never issued by NewTransactionId, so it is safe to
// use as a "no id yet" sentinel internally.
type TransactionId int64

var nextTransactionId int64

// NewTransactionId allocates the next transaction id. Safe for
// concurrent use by multiple workers starting transactions at once.
func NewTransactionId() TransactionId {
	return TransactionId(atomic.AddInt64(&nextTransactionId, 1))
}
