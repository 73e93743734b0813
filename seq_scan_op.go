package reldb

// SequentialScan reads every tuple of a single table, in heap order,
// attaching the given alias as each field's table qualifier so later
// operators (join, filter) can disambiguate columns that share a name
// across tables.
type SequentialScan struct {
	file  DBFile
	alias string
	tid   TransactionId
	desc  *TupleDesc
	it    *iterState
}

func NewSequentialScan(file DBFile, alias string) *SequentialScan {
	base := file.Descriptor()
	fields := make([]FieldType, len(base.Fields))
	for i, f := range base.Fields {
		fields[i] = FieldType{Fname: f.Fname, TableQualifier: alias, Ftype: f.Ftype}
	}
	return &SequentialScan{
		file:  file,
		alias: alias,
		desc:  &TupleDesc{Fields: fields},
	}
}

func (s *SequentialScan) Open(tid TransactionId) error {
	s.tid = tid
	it, err := s.file.Iterator(tid)
	if err != nil {
		return err
	}
	s.it = newIterState(s.wrap(it))
	return nil
}

// wrap re-tags each tuple's schema with this scan's alias; HeapFile's
// own iterator returns tuples stamped with the table's base schema.
func (s *SequentialScan) wrap(it func() (*Tuple, error)) func() (*Tuple, error) {
	return func() (*Tuple, error) {
		t, err := it()
		if err != nil || t == nil {
			return nil, err
		}
		out := *t
		out.Desc = *s.desc
		return &out, nil
	}
}

func (s *SequentialScan) HasNext() (bool, error) { return s.it.HasNext() }
func (s *SequentialScan) Next() (*Tuple, error)  { return s.it.Next() }

func (s *SequentialScan) Rewind() error {
	it, err := s.file.Iterator(s.tid)
	if err != nil {
		return err
	}
	s.it.reset(s.wrap(it))
	return nil
}

func (s *SequentialScan) Close() error { return nil }

func (s *SequentialScan) GetTupleDesc() *TupleDesc { return s.desc }

func (s *SequentialScan) GetChildren() []Operator  { return nil }
func (s *SequentialScan) SetChildren([]Operator)   {}
