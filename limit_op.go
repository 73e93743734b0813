package reldb

// Limit passes through at most count of its child's tuples, where
// count is itself an expression (so a planner can supply a query
// parameter rather than a literal) evaluated once at Open time.
type Limit struct {
	child     Operator
	countExpr Expr
	limit     int32
	emitted   int32
}

func NewLimit(countExpr Expr, child Operator) *Limit {
	return &Limit{child: child, countExpr: countExpr}
}

func (l *Limit) Open(tid TransactionId) error {
	if err := l.child.Open(tid); err != nil {
		return err
	}
	v, err := l.countExpr.EvalExpr(nil)
	if err != nil {
		return err
	}
	iv, ok := v.(IntField)
	if !ok {
		return newError(IllegalArgumentError, "limit count must be an int expression")
	}
	l.limit = iv.Value
	l.emitted = 0
	return nil
}

func (l *Limit) HasNext() (bool, error) {
	if l.emitted >= l.limit {
		return false, nil
	}
	return l.child.HasNext()
}

func (l *Limit) Next() (*Tuple, error) {
	if l.emitted >= l.limit {
		return nil, newError(NoSuchElementError, "limit exhausted")
	}
	t, err := l.child.Next()
	if err != nil {
		return nil, err
	}
	l.emitted++
	return t, nil
}

func (l *Limit) Rewind() error {
	l.emitted = 0
	return l.child.Rewind()
}

func (l *Limit) Close() error { return l.child.Close() }

func (l *Limit) GetTupleDesc() *TupleDesc { return l.child.GetTupleDesc() }

func (l *Limit) GetChildren() []Operator { return []Operator{l.child} }

func (l *Limit) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Limit takes exactly one child")
	}
	l.child = children[0]
}
