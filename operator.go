package reldb

// Operator is one node of the pull-based iterator tree every query
// plan is built from: Open readies it (and, recursively, its
// children), HasNext/Next pull tuples one at a time, Rewind resets
// without a fresh Open, and Close tears it and its children down.
// GetChildren/SetChildren let a caller walk and rewrite the plan tree
// (e.g. swapping in a different join algorithm) without each operator
// knowing about the others.
type Operator interface {
	Open(tid TransactionId) error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close() error
	GetTupleDesc() *TupleDesc
	GetChildren() []Operator
	SetChildren(children []Operator)
}

// iterState gives an operator HasNext/Next semantics on top of a
// one-shot pull function: it buffers one tuple of lookahead so HasNext
// can be answered without consuming.
type iterState struct {
	fetch   func() (*Tuple, error)
	buf     *Tuple
	buffset bool
}

func newIterState(fetch func() (*Tuple, error)) *iterState {
	return &iterState{fetch: fetch}
}

func (s *iterState) HasNext() (bool, error) {
	if s.buffset {
		return s.buf != nil, nil
	}
	t, err := s.fetch()
	if err != nil {
		return false, err
	}
	s.buf = t
	s.buffset = true
	return t != nil, nil
}

func (s *iterState) Next() (*Tuple, error) {
	has, err := s.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, newError(NoSuchElementError, "no more tuples")
	}
	t := s.buf
	s.buf = nil
	s.buffset = false
	return t, nil
}

func (s *iterState) reset(fetch func() (*Tuple, error)) {
	s.fetch = fetch
	s.buf = nil
	s.buffset = false
}
