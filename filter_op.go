package reldb

// Filter passes through only the child's tuples for which expr
// evaluates op against the fixed comparison value cmp. The passing
// tuples are materialized up front at Open so Rewind is a cursor
// reset rather than a re-scan of the child.
type Filter struct {
	op    BoolOp
	expr  Expr
	cmp   DBValue
	child Operator

	rows []*Tuple
	idx  int
}

func NewFilter(expr Expr, op BoolOp, cmp DBValue, child Operator) *Filter {
	return &Filter{op: op, expr: expr, cmp: cmp, child: child}
}

func (f *Filter) Open(tid TransactionId) error {
	if err := f.child.Open(tid); err != nil {
		return err
	}
	return f.materialize()
}

func (f *Filter) materialize() error {
	f.rows = f.rows[:0]
	f.idx = 0
	for {
		has, err := f.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			return nil
		}
		t, err := f.child.Next()
		if err != nil {
			return err
		}
		v, err := f.expr.EvalExpr(t)
		if err != nil {
			return err
		}
		if v.EvalPred(f.cmp, f.op) {
			f.rows = append(f.rows, t)
		}
	}
}

func (f *Filter) HasNext() (bool, error) {
	return f.idx < len(f.rows), nil
}

func (f *Filter) Next() (*Tuple, error) {
	if f.idx >= len(f.rows) {
		return nil, newError(NoSuchElementError, "no more tuples")
	}
	t := f.rows[f.idx]
	f.idx++
	return t, nil
}

func (f *Filter) Rewind() error {
	f.idx = 0
	return nil
}

func (f *Filter) Close() error {
	f.rows = nil
	f.idx = 0
	return f.child.Close()
}

func (f *Filter) GetTupleDesc() *TupleDesc { return f.child.GetTupleDesc() }

func (f *Filter) GetChildren() []Operator { return []Operator{f.child} }

func (f *Filter) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Filter takes exactly one child")
	}
	f.child = children[0]
}
