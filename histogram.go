package reldb

import (
	"math/rand"
	"sort"

	"github.com/tylertreat/BoomFilters"
)

// IntHistogram is an equi-width histogram over an int column: min/max
// define the range, split into numBuckets buckets of equal width
// except the last, which absorbs any remainder so every bucket
// boundary stays an integer.
type IntHistogram struct {
	buckets    []int64
	numBuckets int
	min, max   int32
	width      int32
	ntuples    int64
}

func NewIntHistogram(numBuckets int, min, max int32) *IntHistogram {
	if numBuckets < 1 {
		numBuckets = 1
	}
	span := int64(max) - int64(min) + 1
	width := int32((span + int64(numBuckets) - 1) / int64(numBuckets))
	if width < 1 {
		width = 1
	}
	return &IntHistogram{
		buckets:    make([]int64, numBuckets),
		numBuckets: numBuckets,
		min:        min,
		max:        max,
		width:      width,
	}
}

func (h *IntHistogram) bucketOf(v int32) int {
	if v <= h.min {
		return 0
	}
	if v >= h.max {
		return h.numBuckets - 1
	}
	idx := int(int64(v-h.min) / int64(h.width))
	if idx >= h.numBuckets {
		idx = h.numBuckets - 1
	}
	return idx
}

func (h *IntHistogram) bucketRange(idx int) (lo, hi int32) {
	lo = h.min + int32(idx)*h.width
	if idx == h.numBuckets-1 {
		hi = h.max
	} else {
		hi = lo + h.width - 1
	}
	return
}

func (h *IntHistogram) AddValue(v int32) {
	h.buckets[h.bucketOf(v)]++
	h.ntuples++
}

// EstimateSelectivity returns the fraction of values in the histogram
// expected to satisfy `field op v`, treating an empty histogram as
// fully unselective (selectivity 1.0, matching no evidence to narrow
// the estimate).
func (h *IntHistogram) EstimateSelectivity(op BoolOp, v int32) float64 {
	if h.ntuples == 0 {
		return 1.0
	}
	switch op {
	case OpEq:
		return h.estimateEquals(v)
	case OpGt:
		return h.estimateGreaterThan(v)
	case OpGe:
		return h.estimateGreaterThan(v) + h.estimateEquals(v)
	case OpLt:
		return 1.0 - h.estimateGreaterThan(v) - h.estimateEquals(v)
	case OpLe:
		return 1.0 - h.estimateGreaterThan(v)
	case OpNeq:
		return 1.0 - h.estimateEquals(v)
	}
	return 1.0
}

func (h *IntHistogram) estimateEquals(v int32) float64 {
	if v < h.min || v > h.max {
		return 0
	}
	idx := h.bucketOf(v)
	lo, hi := h.bucketRange(idx)
	width := float64(hi - lo + 1)
	if width < 1 {
		width = 1
	}
	return (float64(h.buckets[idx]) / width) / float64(h.ntuples)
}

func (h *IntHistogram) estimateGreaterThan(v int32) float64 {
	if v >= h.max {
		return 0
	}
	if v < h.min {
		return 1.0
	}
	idx := h.bucketOf(v)
	lo, hi := h.bucketRange(idx)
	width := float64(hi - lo + 1)
	fraction := float64(hi-v) / width
	sum := fraction * float64(h.buckets[idx])
	for i := idx + 1; i < h.numBuckets; i++ {
		sum += float64(h.buckets[i])
	}
	return sum / float64(h.ntuples)
}

func (h *IntHistogram) AvgSelectivity() float64 {
	return 1.0
}

// StringHistogram estimates string-column selectivity with a
// count-min sketch rather than lexicographic buckets: approximate
// counts cost nothing extra for EQUALS, and a sampled, sorted set of
// boundary values approximates range comparisons.
type StringHistogram struct {
	sketch    *boom.CountMinSketch
	ntuples   int64
	boundary  []string
	maxSample int
}

func NewStringHistogram(numBuckets int) *StringHistogram {
	return &StringHistogram{
		sketch:    boom.NewCountMinSketch(0.001, 0.99),
		maxSample: numBuckets * 32,
	}
}

func (h *StringHistogram) AddValue(v string) {
	h.sketch.Add([]byte(v))
	h.ntuples++
	h.insertSample(v)
}

// insertSample keeps a bounded, sorted reservoir of values seen, used
// only to approximate range-comparison selectivity; EQUALS never
// touches it.
func (h *StringHistogram) insertSample(v string) {
	if len(h.boundary) >= h.maxSample {
		// The n-th value seen replaces a random member with
		// probability maxSample/n.
		if h.maxSample == 0 || rand.Int63n(h.ntuples) >= int64(h.maxSample) {
			return
		}
		drop := rand.Intn(len(h.boundary))
		h.boundary = append(h.boundary[:drop], h.boundary[drop+1:]...)
	}
	idx := sort.SearchStrings(h.boundary, v)
	h.boundary = append(h.boundary, "")
	copy(h.boundary[idx+1:], h.boundary[idx:])
	h.boundary[idx] = v
}

func (h *StringHistogram) EstimateSelectivity(op BoolOp, v string) float64 {
	if h.ntuples == 0 {
		return 1.0
	}
	switch op {
	case OpEq:
		count := h.sketch.Count([]byte(v))
		return float64(count) / float64(h.ntuples)
	case OpNeq:
		count := h.sketch.Count([]byte(v))
		return 1.0 - float64(count)/float64(h.ntuples)
	default:
		if len(h.boundary) == 0 {
			return 0.5
		}
		idx := sort.SearchStrings(h.boundary, v)
		frac := float64(idx) / float64(len(h.boundary))
		switch op {
		case OpLt:
			return frac
		case OpLe:
			return frac
		case OpGt, OpGe:
			return 1.0 - frac
		}
	}
	return 0.5
}

func (h *StringHistogram) AvgSelectivity() float64 {
	return 1.0
}

// TableStats summarizes one table's cost-relevant statistics: the
// number of pages it occupies (for I/O cost) and, per field, a
// histogram used to estimate predicate selectivity.
type TableStats struct {
	numPages    int
	numTuples   int
	ioCostPerPg float64
	intHists    map[int]*IntHistogram
	strHists    map[int]*StringHistogram
}

// NewTableStats builds statistics for file by scanning it once under
// the given transaction to populate every column's histogram.
func NewTableStats(file *HeapFile, tid TransactionId, ioCostPerPage float64, numBuckets int) (*TableStats, error) {
	desc := file.Descriptor()
	mins := make([]int32, len(desc.Fields))
	maxs := make([]int32, len(desc.Fields))
	for i := range mins {
		mins[i] = int32(1<<31 - 1)
		maxs[i] = -(1 << 31)
	}

	it, err := file.Iterator(tid)
	if err != nil {
		return nil, err
	}
	var rows []*Tuple
	for {
		t, err := it()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		rows = append(rows, t)
		for i, f := range desc.Fields {
			if f.Ftype != IntType {
				continue
			}
			iv := t.Fields[i].(IntField).Value
			if iv < mins[i] {
				mins[i] = iv
			}
			if iv > maxs[i] {
				maxs[i] = iv
			}
		}
	}

	ts := &TableStats{
		numPages:    file.NumPages(),
		numTuples:   len(rows),
		ioCostPerPg: ioCostPerPage,
		intHists:    make(map[int]*IntHistogram),
		strHists:    make(map[int]*StringHistogram),
	}
	for i, f := range desc.Fields {
		switch f.Ftype {
		case IntType:
			lo, hi := mins[i], maxs[i]
			if lo > hi {
				lo, hi = 0, 0
			}
			ts.intHists[i] = NewIntHistogram(numBuckets, lo, hi)
		case StringType:
			ts.strHists[i] = NewStringHistogram(numBuckets)
		}
	}
	for _, t := range rows {
		for i, f := range desc.Fields {
			switch f.Ftype {
			case IntType:
				ts.intHists[i].AddValue(t.Fields[i].(IntField).Value)
			case StringType:
				ts.strHists[i].AddValue(t.Fields[i].(StringField).Value)
			}
		}
	}
	return ts, nil
}

// EstimateScanCost is the expected I/O cost of a full sequential scan:
// one read per page, no rereads (NO-STEAL buffers don't change this).
func (ts *TableStats) EstimateScanCost() float64 {
	return float64(ts.numPages) * ts.ioCostPerPg
}

func (ts *TableStats) EstimateTableCardinality(selectivity float64) int {
	return int(float64(ts.numTuples) * selectivity)
}

func (ts *TableStats) EstimateSelectivity(field int, op BoolOp, value DBValue) float64 {
	switch v := value.(type) {
	case IntField:
		if h, ok := ts.intHists[field]; ok {
			return h.EstimateSelectivity(op, v.Value)
		}
	case StringField:
		if h, ok := ts.strHists[field]; ok {
			return h.EstimateSelectivity(op, v.Value)
		}
	}
	return 1.0
}
