package reldb

// Delete consumes every tuple its child produces and deletes it from
// file (by record id), then emits a single tuple holding the count
// deleted -- the Delete mirror of Insert.
type Delete struct {
	child Operator
	file  DBFile
	tid   TransactionId
	desc  *TupleDesc
	done  bool
	count int32
}

func NewDelete(child Operator, file DBFile) *Delete {
	return &Delete{child: child, file: file, desc: countTupleDesc}
}

func (del *Delete) Open(tid TransactionId) error {
	del.tid = tid
	del.done = false
	del.count = 0
	return del.child.Open(tid)
}

func (del *Delete) HasNext() (bool, error) {
	return !del.done, nil
}

func (del *Delete) Next() (*Tuple, error) {
	if del.done {
		return nil, newError(NoSuchElementError, "delete already produced its count tuple")
	}
	for {
		has, err := del.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := del.child.Next()
		if err != nil {
			return nil, err
		}
		if err := del.file.deleteTuple(t, del.tid); err != nil {
			return nil, err
		}
		del.count++
	}
	del.done = true
	return &Tuple{Desc: *del.desc, Fields: []DBValue{IntField{Value: del.count}}}, nil
}

func (del *Delete) Rewind() error {
	del.done = false
	del.count = 0
	return del.child.Rewind()
}

func (del *Delete) Close() error { return del.child.Close() }

func (del *Delete) GetTupleDesc() *TupleDesc { return del.desc }

func (del *Delete) GetChildren() []Operator { return []Operator{del.child} }

func (del *Delete) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Delete takes exactly one child")
	}
	del.child = children[0]
}
