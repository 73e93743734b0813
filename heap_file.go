package reldb

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DBFile is the storage-layer contract the buffer pool and operators
// drive: something page-addressable, on disk, with a fixed schema.
// HeapFile is the only implementation the core ships, but the
// interface is kept narrow enough that an external collaborator could
// add another physical organization behind it.
type DBFile interface {
	readPage(pageNo int) (Page, error)
	emptyPage(pageNo int) Page
	flushPage(p Page) error
	pageKey(pageNo int) PageId
	Descriptor() *TupleDesc
	insertTuple(t *Tuple, tid TransactionId) error
	deleteTuple(t *Tuple, tid TransactionId) error
	Iterator(tid TransactionId) (func() (*Tuple, error), error)
	TableId() TableId
}

// HeapFile is an unordered collection of tuples backed by a single
// disk file whose length is always a multiple of PageSize.
type HeapFile struct {
	backingFile string
	tableID     TableId
	tupleDesc   *TupleDesc
	bufPool     *BufferPool

	numPagesMu sync.Mutex
	numPages   int // in-memory page count; may exceed the on-disk count under NO-STEAL
}

// NewHeapFile uses fromFile as the backing store for a table with the
// given schema, fetching its pages through bp for caching and
// locking. The file need not exist yet; it is created on the first
// page write.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	tid, err := TableIdForPath(fromFile)
	if err != nil {
		return nil, err
	}
	f := &HeapFile{
		backingFile: fromFile,
		tableID:     tid,
		tupleDesc:   td,
		bufPool:     bp,
	}
	f.numPages = f.onDiskPageCount()
	return f, nil
}

func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

func (f *HeapFile) TableId() TableId {
	return f.tableID
}

// onDiskPageCount inspects the file on disk directly, bypassing the
// in-memory numPages bookkeeping -- used only to initialize it and by
// resetNumPages to roll it back on abort.
func (f *HeapFile) onDiskPageCount() int {
	info, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	size := info.Size()
	n := int(size / int64(PageSize))
	if size%int64(PageSize) != 0 {
		n++
	}
	return n
}

// NumPages returns the file's current page count, including pages
// appended by uncommitted transactions but not yet flushed to disk.
func (f *HeapFile) NumPages() int {
	f.numPagesMu.Lock()
	defer f.numPagesMu.Unlock()
	return f.numPages
}

// resetNumPages rolls the in-memory page count back to what is
// actually on disk. Called on abort to undo a page-extending insert
// that was never flushed under NO-STEAL.
func (f *HeapFile) resetNumPages() {
	f.numPagesMu.Lock()
	defer f.numPagesMu.Unlock()
	f.numPages = f.onDiskPageCount()
}

func (f *HeapFile) incrementNumPages() int {
	f.numPagesMu.Lock()
	defer f.numPagesMu.Unlock()
	f.numPages++
	return f.numPages - 1
}

// readPage reads page pageNo directly from disk. Called by the buffer
// pool when the page is not already cached; fails if the requested
// page lies outside the file's on-disk length.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	offset := int64(pageNo) * int64(PageSize)
	info, err := os.Stat(f.backingFile)
	if err != nil || offset+int64(PageSize) > info.Size() {
		return nil, newError(DBError, "page %d of %s is outside the file's on-disk range", pageNo, f.backingFile)
	}
	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, newError(IOError, "open %s: %v", f.backingFile, err)
	}
	defer file.Close()

	data := make([]byte, PageSize)
	if _, err := file.ReadAt(data, offset); err != nil {
		return nil, newError(IOError, "read page %d of %s: %v", pageNo, f.backingFile, err)
	}

	pid := PageId{TableID: f.tableID, PageNo: int32(pageNo)}
	page, err := deserializeHeapPage(data, pid, f.tupleDesc, f)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// emptyPage fabricates an all-zero page for pageNo, the buffer pool's
// fallback when a requested page lies past the on-disk end of the
// file. The page exists only in memory until its transaction commits.
func (f *HeapFile) emptyPage(pageNo int) Page {
	return newHeapPage(f.pageKey(pageNo), f.tupleDesc, f)
}

// writePage writes page's current bytes to its slot on disk, creating
// or extending the file as needed.
func (f *HeapFile) writePage(p *heapPage) error {
	data, err := p.serialize()
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return newError(IOError, "open %s: %v", f.backingFile, err)
	}
	defer file.Close()

	offset := int64(p.pid.PageNo) * int64(PageSize)
	if _, err := file.WriteAt(data, offset); err != nil {
		return newError(IOError, "write page %v: %v", p.pid, err)
	}
	return nil
}

// flushPage is the DBFile hook the buffer pool calls when it
// wants page written back to the backing file.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return newError(IllegalArgumentError, "flushPage: not a heap page")
	}
	if err := f.writePage(hp); err != nil {
		return err
	}
	if err := hp.captureBeforeImage(); err != nil {
		return err
	}
	return nil
}

// insertTuple finds room for t: it scans existing pages under a READ
// lock, releasing each as soon as it is known to be full, then
// re-fetches the first page with room under a WRITE lock. If no page
// has room, a fresh page is appended -- allocated directly into the
// buffer pool without touching disk, per NO-STEAL.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionId) error {
	if len(t.Fields) != len(f.tupleDesc.Fields) {
		return newError(IllegalArgumentError, "tuple has %d fields, table has %d", len(t.Fields), len(f.tupleDesc.Fields))
	}

	n := f.NumPages()
	for pageNo := 0; pageNo < n; pageNo++ {
		pid := f.pageKey(pageNo)
		page, err := f.bufPool.GetPage(&tid, pid, ReadPerm)
		if err != nil {
			return err
		}
		hp := page.(*heapPage)
		if hp.emptySlots() == 0 {
			if err := f.bufPool.ReleasePage(&tid, pid); err != nil {
				return err
			}
			continue
		}
		if err := f.bufPool.ReleasePage(&tid, pid); err != nil {
			return err
		}
		page, err = f.bufPool.GetPage(&tid, pid, WritePerm)
		if err != nil {
			return err
		}
		hp = page.(*heapPage)
		if hp.emptySlots() == 0 {
			// Lost the race to another writer; try the next page, or
			// append if none is left.
			continue
		}
		// Dirty first: a dirty frame can't be evicted out from under
		// the mutation.
		f.bufPool.MarkDirty(pid, tid)
		if err := hp.insertTuple(t); err != nil {
			return err
		}
		// The inserted page stays cached (it's dirty, so eviction
		// skips it) but the write lock itself is released now rather
		// than held until commit.
		return f.bufPool.ReleasePage(&tid, pid)
	}

	pageNo := f.incrementNumPages()
	pid := f.pageKey(pageNo)
	page, err := f.bufPool.GetPage(&tid, pid, WritePerm)
	if err != nil {
		return err
	}
	hp := page.(*heapPage)
	f.bufPool.MarkDirty(pid, tid)
	if err := hp.insertTuple(t); err != nil {
		return err
	}
	return f.bufPool.ReleasePage(&tid, pid)
}

// deleteTuple removes t, identified by t.Rid, via a WRITE-locked fetch
// of its page.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionId) error {
	if t.Rid == nil {
		return newError(IllegalArgumentError, "tuple has no record id to delete")
	}
	pid := t.Rid.PID
	page, err := f.bufPool.GetPage(&tid, pid, WritePerm)
	if err != nil {
		return err
	}
	hp := page.(*heapPage)
	f.bufPool.MarkDirty(pid, tid)
	if err := hp.deleteTuple(t); err != nil {
		return err
	}
	return nil
}

// Descriptor returns the table's schema.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// Iterator returns a lazy, page-order/slot-order closure over every
// tuple in the file, fetching each page through the buffer pool (so
// locking and caching apply) rather than reading the file directly.
func (f *HeapFile) Iterator(tid TransactionId) (func() (*Tuple, error), error) {
	pageNo := 0
	var cur func() (*Tuple, error)

	return func() (*Tuple, error) {
		for {
			if cur == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				pid := f.pageKey(pageNo)
				page, err := f.bufPool.GetPage(&tid, pid, ReadPerm)
				if err != nil {
					return nil, err
				}
				cur = page.(*heapPage).tupleIter()
			}
			t, err := cur()
			if err != nil {
				return nil, err
			}
			if t == nil {
				cur = nil
				pageNo++
				continue
			}
			out := *t
			out.Desc = *f.tupleDesc
			return &out, nil
		}
	}, nil
}

func (f *HeapFile) pageKey(pageNo int) PageId {
	return PageId{TableID: f.tableID, PageNo: int32(pageNo)}
}

// LoadFromCSV bulk-loads file's rows into the heap file inside
// their own committed transaction. hasHeader skips the first line;
// skipLastField drops a trailing separator some exports leave
// dangling.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	tid := NewTransactionId()
	if err := f.bufPool.BeginTransaction(tid); err != nil {
		return err
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(scanner.Text(), sep)
		if skipLastField && len(fields) > 0 {
			fields = fields[:len(fields)-1]
		}
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.tupleDesc.Fields) {
			f.bufPool.AbortTransaction(tid)
			return newError(IllegalArgumentError, "line %d: expected %d fields, got %d", lineNo, len(f.tupleDesc.Fields), len(fields))
		}

		values := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.tupleDesc.Fields[i].Ftype {
			case IntType:
				v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
				if err != nil {
					f.bufPool.AbortTransaction(tid)
					return newError(IllegalArgumentError, "line %d: %q is not an int: %v", lineNo, raw, err)
				}
				values[i] = IntField{Value: int32(v)}
			case StringType:
				values[i] = StringField{Value: raw}
			}
		}

		newTuple := &Tuple{Desc: *f.tupleDesc, Fields: values}
		if err := f.insertTuple(newTuple, tid); err != nil {
			f.bufPool.AbortTransaction(tid)
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		f.bufPool.AbortTransaction(tid)
		return newError(IOError, "scan csv: %v", err)
	}

	f.bufPool.CommitTransaction(tid)
	return nil
}

func (f *HeapFile) String() string {
	return fmt.Sprintf("HeapFile{%s, table=%d}", f.backingFile, f.tableID)
}
