package reldb

import "sort"

// OrderBy materializes its child's output and sorts it by a list of
// expressions, each independently ascending or descending, ties broken
// by the next expression in the list.
type OrderBy struct {
	child     Operator
	exprs     []Expr
	ascending []bool
	rows      []*Tuple
	idx       int
}

func NewOrderBy(exprs []Expr, ascending []bool, child Operator) *OrderBy {
	return &OrderBy{child: child, exprs: exprs, ascending: ascending}
}

func (o *OrderBy) Open(tid TransactionId) error {
	if err := o.child.Open(tid); err != nil {
		return err
	}
	return o.materialize()
}

func (o *OrderBy) materialize() error {
	rows, err := drain(o.child)
	if err != nil {
		return err
	}
	var sortErr error
	sort.SliceStable(rows, func(i, k int) bool {
		if sortErr != nil {
			return false
		}
		for e, expr := range o.exprs {
			a, err := expr.EvalExpr(rows[i])
			if err != nil {
				sortErr = err
				return false
			}
			b, err := expr.EvalExpr(rows[k])
			if err != nil {
				sortErr = err
				return false
			}
			cmp, err := compareFields(a, b)
			if err != nil {
				sortErr = err
				return false
			}
			if cmp == OrderedEqual {
				continue
			}
			less := cmp == OrderedLessThan
			if !o.ascending[e] {
				less = !less
			}
			return less
		}
		return false
	})
	if sortErr != nil {
		return sortErr
	}
	o.rows = rows
	o.idx = 0
	return nil
}

func (o *OrderBy) HasNext() (bool, error) {
	return o.idx < len(o.rows), nil
}

func (o *OrderBy) Next() (*Tuple, error) {
	if o.idx >= len(o.rows) {
		return nil, newError(NoSuchElementError, "no more tuples")
	}
	t := o.rows[o.idx]
	o.idx++
	return t, nil
}

func (o *OrderBy) Rewind() error {
	if err := o.child.Rewind(); err != nil {
		return err
	}
	return o.materialize()
}

func (o *OrderBy) Close() error { return o.child.Close() }

func (o *OrderBy) GetTupleDesc() *TupleDesc { return o.child.GetTupleDesc() }

func (o *OrderBy) GetChildren() []Operator { return []Operator{o.child} }

func (o *OrderBy) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("OrderBy takes exactly one child")
	}
	o.child = children[0]
}
