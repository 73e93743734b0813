package reldb

import "sort"

// JoinOp joins left and right on a single comparison between leftExpr
// and rightExpr. An equality predicate is evaluated with a sort-merge
// join; anything else falls back to nested-loop, since only equality
// admits a linear merge.
type JoinOp struct {
	left, right       Operator
	leftExpr          Expr
	rightExpr         Expr
	op                BoolOp
	desc              *TupleDesc
	it                *iterState
	tid               TransactionId
}

func NewJoin(left Operator, leftExpr Expr, right Operator, rightExpr Expr, op BoolOp) *JoinOp {
	return &JoinOp{
		left:      left,
		right:     right,
		leftExpr:  leftExpr,
		rightExpr: rightExpr,
		op:        op,
		desc:      left.GetTupleDesc().merge(right.GetTupleDesc()),
	}
}

func (j *JoinOp) Open(tid TransactionId) error {
	j.tid = tid
	if err := j.left.Open(tid); err != nil {
		return err
	}
	if err := j.right.Open(tid); err != nil {
		return err
	}
	if j.op == OpEq {
		fetch, err := j.sortMergeFetch()
		if err != nil {
			return err
		}
		j.it = newIterState(fetch)
	} else {
		j.it = newIterState(j.nestedLoopFetch())
	}
	return nil
}

// sortMergeFetch materializes both sides (a pull-based merge could
// avoid this, but a fully general comparator makes incremental
// re-sort awkward for an in-memory engine this size), sorts each by
// its join key, and returns a closure that walks the classic
// sort-merge join: advance the lagging side, and when keys tie, buffer
// the whole run of equal keys on the right and cross it with each
// matching row on the left before moving on.
func (j *JoinOp) sortMergeFetch() (func() (*Tuple, error), error) {
	leftRows, err := drain(j.left)
	if err != nil {
		return nil, err
	}
	rightRows, err := drain(j.right)
	if err != nil {
		return nil, err
	}

	if err := sortByExpr(leftRows, j.leftExpr); err != nil {
		return nil, err
	}
	if err := sortByExpr(rightRows, j.rightExpr); err != nil {
		return nil, err
	}

	li, ri := 0, 0
	var pending []*Tuple
	pendingLeft := (*Tuple)(nil)
	pendingIdx := 0

	return func() (*Tuple, error) {
		for {
			if pendingLeft != nil {
				if pendingIdx < len(pending) {
					out := joinTuples(pendingLeft, pending[pendingIdx])
					pendingIdx++
					return out, nil
				}
				pendingLeft = nil
			}

			if li >= len(leftRows) || ri >= len(rightRows) {
				return nil, nil
			}

			lv, err := j.leftExpr.EvalExpr(leftRows[li])
			if err != nil {
				return nil, err
			}
			rv, err := j.rightExpr.EvalExpr(rightRows[ri])
			if err != nil {
				return nil, err
			}
			cmp, err := compareFields(lv, rv)
			if err != nil {
				return nil, err
			}
			switch cmp {
			case OrderedLessThan:
				li++
			case OrderedGreaterThan:
				ri++
			case OrderedEqual:
				runEnd := ri
				for runEnd < len(rightRows) {
					rv2, err := j.rightExpr.EvalExpr(rightRows[runEnd])
					if err != nil {
						return nil, err
					}
					c2, err := compareFields(lv, rv2)
					if err != nil {
						return nil, err
					}
					if c2 != OrderedEqual {
						break
					}
					runEnd++
				}
				pending = rightRows[ri:runEnd]
				pendingLeft = leftRows[li]
				pendingIdx = 0
				li++
			}
		}
	}, nil
}

// nestedLoopFetch handles any non-equality predicate: for each left
// row, scan the entire right side.
func (j *JoinOp) nestedLoopFetch() func() (*Tuple, error) {
	var curLeft *Tuple
	started := false

	return func() (*Tuple, error) {
		for {
			if !started {
				has, err := j.left.HasNext()
				if err != nil {
					return nil, err
				}
				if !has {
					return nil, nil
				}
				curLeft, err = j.left.Next()
				if err != nil {
					return nil, err
				}
				if err := j.right.Rewind(); err != nil {
					return nil, err
				}
				started = true
			}

			has, err := j.right.HasNext()
			if err != nil {
				return nil, err
			}
			if !has {
				started = false
				continue
			}
			rt, err := j.right.Next()
			if err != nil {
				return nil, err
			}
			lv, err := j.leftExpr.EvalExpr(curLeft)
			if err != nil {
				return nil, err
			}
			rv, err := j.rightExpr.EvalExpr(rt)
			if err != nil {
				return nil, err
			}
			if lv.EvalPred(rv, j.op) {
				return joinTuples(curLeft, rt), nil
			}
		}
	}
}

func drain(op Operator) ([]*Tuple, error) {
	var out []*Tuple
	for {
		has, err := op.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			return out, nil
		}
		t, err := op.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}

// sortByExpr sorts rows ascending by expr's value, surfacing the first
// evaluation error encountered (sort.Slice's Less has no error return).
func sortByExpr(rows []*Tuple, expr Expr) error {
	var sortErr error
	sort.SliceStable(rows, func(i, k int) bool {
		if sortErr != nil {
			return false
		}
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
		return cmp == OrderedLessThan
	})
	return sortErr
}

func (j *JoinOp) HasNext() (bool, error) { return j.it.HasNext() }
func (j *JoinOp) Next() (*Tuple, error)  { return j.it.Next() }

func (j *JoinOp) Rewind() error {
	if err := j.left.Rewind(); err != nil {
		return err
	}
	if err := j.right.Rewind(); err != nil {
		return err
	}
	return j.Open(j.tid)
}

func (j *JoinOp) Close() error {
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}

func (j *JoinOp) GetTupleDesc() *TupleDesc { return j.desc }

func (j *JoinOp) GetChildren() []Operator { return []Operator{j.left, j.right} }

func (j *JoinOp) SetChildren(children []Operator) {
	if len(children) != 2 {
		panic("JoinOp takes exactly two children")
	}
	j.left, j.right = children[0], children[1]
}
