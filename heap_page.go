package reldb

import (
	"bytes"
	"fmt"
)

// Page is the contract the buffer pool and heap file hold a loaded
// page through: it can report and flip its dirty owner, hand back the
// before-image taken when it was first pinned, and resolve back to
// the file it belongs to.
type Page interface {
	isDirty() bool
	dirtyTxn() *TransactionId
	markDirty(dirty bool, tid TransactionId)
	getFile() DBFile
	getBeforeImage() (Page, error)
	serialize() ([]byte, error)
}

// heapPage is a slotted page: a used-slot bitmap header followed by
// numSlots fixed-size tuple records. serialize and deserializeHeapPage
// are exact inverses; the on-disk layout is load-bearing, not just the
// tuple contents.
//
// heapPage is not safe for concurrent use -- callers reach it only
// after acquiring the page's write lock through the buffer pool.
type heapPage struct {
	pid    PageId
	desc   *TupleDesc
	file   *HeapFile
	header []byte // bitmap, bit k set => slot k occupied
	tuples []*Tuple

	numSlots  int
	tupleSize int

	dirtyBy     *TransactionId
	beforeImage []byte // raw bytes as loaded, for abort rollback
}

// numSlotsForTupleSize returns how many fixed-size tuple slots of size
// tupleSize fit on a PageSize page once the bitmap header -- which
// itself grows with the slot count -- is accounted for:
// N = floor((PageSize*8) / (tupleSize*8 + 1)).
func numSlotsForTupleSize(tupleSize int) int {
	if tupleSize <= 0 {
		return 0
	}
	return (PageSize * 8) / (tupleSize*8 + 1)
}

func headerSizeForSlots(numSlots int) int {
	return (numSlots + 7) / 8
}

// newHeapPage allocates a fresh, all-empty page -- used both when a
// HeapFile extends itself and when the buffer pool fabricates a page
// past the on-disk end of file under NO-STEAL.
func newHeapPage(pid PageId, desc *TupleDesc, f *HeapFile) *heapPage {
	tupleSize := tupleWireSize(desc)
	numSlots := numSlotsForTupleSize(tupleSize)
	hp := &heapPage{
		pid:       pid,
		desc:      desc,
		file:      f,
		numSlots:  numSlots,
		tupleSize: tupleSize,
		header:    make([]byte, headerSizeForSlots(numSlots)),
		tuples:    make([]*Tuple, numSlots),
	}
	return hp
}

// deserializeHeapPage parses a PageSize-byte buffer into a heapPage.
// It fails if data is not exactly PageSize bytes long.
func deserializeHeapPage(data []byte, pid PageId, desc *TupleDesc, f *HeapFile) (*heapPage, error) {
	if len(data) != PageSize {
		return nil, newError(DBError, "heap page must be exactly %d bytes, got %d", PageSize, len(data))
	}
	tupleSize := tupleWireSize(desc)
	numSlots := numSlotsForTupleSize(tupleSize)
	headerSize := headerSizeForSlots(numSlots)

	hp := &heapPage{
		pid:       pid,
		desc:      desc,
		file:      f,
		numSlots:  numSlots,
		tupleSize: tupleSize,
		header:    append([]byte(nil), data[:headerSize]...),
		tuples:    make([]*Tuple, numSlots),
	}

	buf := bytes.NewBuffer(data[headerSize:])
	for slot := 0; slot < numSlots; slot++ {
		raw := buf.Next(tupleSize)
		if !hp.slotOccupied(slot) {
			continue
		}
		tupBuf := bytes.NewBuffer(append([]byte(nil), raw...))
		tup, err := readTupleFrom(tupBuf, desc)
		if err != nil {
			return nil, err
		}
		tup.Rid = &RecordId{PID: pid, SlotNo: int32(slot)}
		hp.tuples[slot] = tup
	}

	hp.beforeImage = append([]byte(nil), data...)
	return hp, nil
}

func (p *heapPage) slotOccupied(slot int) bool {
	byteIdx, bit := slot/8, uint(slot%8)
	if byteIdx >= len(p.header) {
		return false
	}
	return p.header[byteIdx]&(1<<bit) != 0
}

func (p *heapPage) setSlotOccupied(slot int, occupied bool) {
	byteIdx, bit := slot/8, uint(slot%8)
	if occupied {
		p.header[byteIdx] |= 1 << bit
	} else {
		p.header[byteIdx] &^= 1 << bit
	}
}

func (p *heapPage) getNumSlots() int {
	return p.numSlots
}

func (p *heapPage) emptySlots() int {
	n := 0
	for i := 0; i < p.numSlots; i++ {
		if !p.slotOccupied(i) {
			n++
		}
	}
	return n
}

// insertTuple writes t into the first free slot, stamping its
// RecordId, or fails if the schema doesn't match or the page is full.
func (p *heapPage) insertTuple(t *Tuple) error {
	if !t.Desc.equals(p.desc) {
		return newError(IllegalArgumentError, "tuple schema does not match page schema")
	}
	for slot := 0; slot < p.numSlots; slot++ {
		if p.slotOccupied(slot) {
			continue
		}
		stored := &Tuple{Desc: *p.desc, Fields: append([]DBValue(nil), t.Fields...)}
		rid := &RecordId{PID: p.pid, SlotNo: int32(slot)}
		stored.Rid = rid
		p.tuples[slot] = stored
		p.setSlotOccupied(slot, true)
		t.Rid = rid
		return nil
	}
	return newError(DBError, "heap page %v has no free slots", p.pid)
}

// deleteTuple clears the slot named by t.Rid, failing if the rid does
// not belong to this page, the slot is already empty, or the slot's
// current contents don't match t.
func (p *heapPage) deleteTuple(t *Tuple) error {
	if t.Rid == nil || t.Rid.PID != p.pid {
		return newError(IllegalArgumentError, "tuple's record id does not belong to page %v", p.pid)
	}
	slot := int(t.Rid.SlotNo)
	if slot < 0 || slot >= p.numSlots || !p.slotOccupied(slot) {
		return newError(IllegalArgumentError, "slot %d is not occupied on page %v", slot, p.pid)
	}
	if !p.tuples[slot].equals(t) {
		return newError(IllegalArgumentError, "tuple does not match contents of slot %d", slot)
	}
	p.tuples[slot] = nil
	p.setSlotOccupied(slot, false)
	return nil
}

func (p *heapPage) isDirty() bool {
	return p.dirtyBy != nil
}

func (p *heapPage) dirtyTxn() *TransactionId {
	return p.dirtyBy
}

func (p *heapPage) markDirty(dirty bool, tid TransactionId) {
	if dirty {
		p.dirtyBy = &tid
	} else {
		p.dirtyBy = nil
	}
}

func (p *heapPage) getFile() DBFile {
	return p.file
}

// getBeforeImage reconstructs the page as it looked the instant it
// was first pinned into the buffer pool, for use on abort.
func (p *heapPage) getBeforeImage() (Page, error) {
	if p.beforeImage == nil {
		return deserializeHeapPage(mustSerializeEmpty(p), p.pid, p.desc, p.file)
	}
	return deserializeHeapPage(p.beforeImage, p.pid, p.desc, p.file)
}

func mustSerializeEmpty(p *heapPage) []byte {
	empty := newHeapPage(p.pid, p.desc, p.file)
	buf, _ := empty.serialize()
	return buf
}

// captureBeforeImage snapshots the page's current serialized bytes as
// its before-image. HeapFile.flushPage calls this after every write to
// disk, so a later abort rolls back to the last flushed contents. A
// page read from disk starts with the bytes it was loaded from; a
// freshly allocated page has none and rolls back to an empty page.
func (p *heapPage) captureBeforeImage() error {
	data, err := p.serialize()
	if err != nil {
		return err
	}
	p.beforeImage = data
	return nil
}

// serialize is the bit-exact inverse of deserializeHeapPage: header
// bitmap, then each slot's tuple bytes (zero-filled when empty), with
// the whole buffer padded to exactly PageSize.
func (p *heapPage) serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(p.header)
	for slot := 0; slot < p.numSlots; slot++ {
		if p.slotOccupied(slot) {
			if err := p.tuples[slot].writeTo(buf); err != nil {
				return nil, err
			}
			continue
		}
		buf.Write(make([]byte, p.tupleSize))
	}
	if buf.Len() > PageSize {
		return nil, newError(DBError, "serialized heap page %d exceeds page size %d", buf.Len(), PageSize)
	}
	if buf.Len() < PageSize {
		buf.Write(make([]byte, PageSize-buf.Len()))
	}
	return buf.Bytes(), nil
}

// tupleIter returns a closure yielding the page's occupied-slot
// tuples in ascending slot order, then nil forever.
func (p *heapPage) tupleIter() func() (*Tuple, error) {
	slot := 0
	return func() (*Tuple, error) {
		for slot < p.numSlots {
			cur := slot
			slot++
			if p.slotOccupied(cur) {
				return p.tuples[cur], nil
			}
		}
		return nil, nil
	}
}

func (p *heapPage) String() string {
	return fmt.Sprintf("heapPage{%v, slots=%d, used=%d}", p.pid, p.numSlots, p.numSlots-p.emptySlots())
}
