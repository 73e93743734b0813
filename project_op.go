package reldb

import (
	"github.com/tylertreat/BoomFilters"
)

// Project outputs a subset (or reordering) of its child's fields. When
// distinct is set it additionally suppresses rows it believes it has
// already emitted, using a stable bloom filter rather than an exact
// seen-set: at high volume this trades a small false-negative rate (an
// occasional duplicate survives) and a small false-positive rate (an
// occasional first occurrence is dropped) for memory that doesn't grow
// with the number of distinct rows seen.
type Project struct {
	fields   []FieldType
	distinct bool
	child    Operator
	desc     *TupleDesc

	seen *boom.StableBloomFilter
	it   *iterState
}

func NewProject(fields []FieldType, distinct bool, child Operator) *Project {
	return &Project{
		fields:   fields,
		distinct: distinct,
		child:    child,
		desc:     &TupleDesc{Fields: fields},
	}
}

func (p *Project) Open(tid TransactionId) error {
	if err := p.child.Open(tid); err != nil {
		return err
	}
	if p.distinct {
		p.seen = boom.NewDefaultStableBloomFilter(1000000, 0.01)
	}
	p.it = newIterState(p.fetchNext)
	return nil
}

func (p *Project) fetchNext() (*Tuple, error) {
	for {
		has, err := p.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, nil
		}
		t, err := p.child.Next()
		if err != nil {
			return nil, err
		}
		out, err := t.project(p.fields)
		if err != nil {
			return nil, err
		}
		if !p.distinct {
			return out, nil
		}
		key, err := out.tupleKey()
		if err != nil {
			return nil, err
		}
		keyBytes := []byte(key.(string))
		if p.seen.TestAndAdd(keyBytes) {
			continue
		}
		return out, nil
	}
}

func (p *Project) HasNext() (bool, error) { return p.it.HasNext() }
func (p *Project) Next() (*Tuple, error)  { return p.it.Next() }

func (p *Project) Rewind() error {
	if err := p.child.Rewind(); err != nil {
		return err
	}
	if p.distinct {
		p.seen.Reset()
	}
	p.it.reset(p.fetchNext)
	return nil
}

func (p *Project) Close() error { return p.child.Close() }

func (p *Project) GetTupleDesc() *TupleDesc { return p.desc }

func (p *Project) GetChildren() []Operator { return []Operator{p.child} }

func (p *Project) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Project takes exactly one child")
	}
	p.child = children[0]
}
