package reldb

// Insert consumes every tuple its child produces and inserts it into
// file, then emits a single tuple holding the count inserted. It is
// itself an Operator so it composes with the same Open/Next/Close
// machinery as a query, even though it only ever produces one row.
type Insert struct {
	child Operator
	file  DBFile
	tid   TransactionId
	desc  *TupleDesc
	done  bool
	count int32
}

var countTupleDesc = &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}

func NewInsert(child Operator, file DBFile) *Insert {
	return &Insert{child: child, file: file, desc: countTupleDesc}
}

func (ins *Insert) Open(tid TransactionId) error {
	ins.tid = tid
	ins.done = false
	ins.count = 0
	return ins.child.Open(tid)
}

func (ins *Insert) HasNext() (bool, error) {
	return !ins.done, nil
}

// Next runs the insert to completion on its first call and returns the
// count tuple; every subsequent call reports exhaustion.
func (ins *Insert) Next() (*Tuple, error) {
	if ins.done {
		return nil, newError(NoSuchElementError, "insert already produced its count tuple")
	}
	for {
		has, err := ins.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := ins.child.Next()
		if err != nil {
			return nil, err
		}
		if err := ins.file.insertTuple(t, ins.tid); err != nil {
			return nil, err
		}
		ins.count++
	}
	ins.done = true
	return &Tuple{Desc: *ins.desc, Fields: []DBValue{IntField{Value: ins.count}}}, nil
}

func (ins *Insert) Rewind() error {
	ins.done = false
	ins.count = 0
	return ins.child.Rewind()
}

func (ins *Insert) Close() error { return ins.child.Close() }

func (ins *Insert) GetTupleDesc() *TupleDesc { return ins.desc }

func (ins *Insert) GetChildren() []Operator { return []Operator{ins.child} }

func (ins *Insert) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Insert takes exactly one child")
	}
	ins.child = children[0]
}
