package reldb

// AggOp names the aggregation function a column is summarized with.
type AggOp int

const (
	AggCount AggOp = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (op AggOp) String() string {
	switch op {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	}
	return "unknown"
}

// NoGrouping is the sentinel groupField value meaning "aggregate the
// whole input into a single row" rather than one row per distinct
// group key.
const NoGrouping = -1

// groupKey identifies one bucket of an aggregation: either the
// group-by field's value, or the NoGrouping sentinel itself.
type groupKey struct {
	grouped bool
	value   any
}

func keyFor(groupVal DBValue) groupKey {
	if groupVal == nil {
		return groupKey{grouped: false}
	}
	switch v := groupVal.(type) {
	case IntField:
		return groupKey{grouped: true, value: v.Value}
	case StringField:
		return groupKey{grouped: true, value: v.Value}
	}
	return groupKey{grouped: false}
}

// intAccumulator tracks the running state COUNT/SUM/AVG/MIN/MAX all
// need for one group of integer values.
type intAccumulator struct {
	count int64
	sum   int64
	min   int32
	max   int32
	seen  bool
}

func (a *intAccumulator) add(v int32) {
	a.count++
	a.sum += int64(v)
	if !a.seen || v < a.min {
		a.min = v
	}
	if !a.seen || v > a.max {
		a.max = v
	}
	a.seen = true
}

func (a *intAccumulator) result(op AggOp) int32 {
	switch op {
	case AggCount:
		return int32(a.count)
	case AggSum:
		return int32(a.sum)
	case AggAvg:
		if a.count == 0 {
			return 0
		}
		return int32(a.sum / a.count)
	case AggMin:
		return a.min
	case AggMax:
		return a.max
	}
	return 0
}

// IntegerAggregator computes one of COUNT/SUM/AVG/MIN/MAX over an int
// field, optionally grouped by another field.
type IntegerAggregator struct {
	groupField  int
	groupFType  DBType
	aggField    int
	op          AggOp
	groups      map[groupKey]*intAccumulator
	order       []groupKey
}

func NewIntegerAggregator(groupField int, groupFType DBType, aggField int, op AggOp) *IntegerAggregator {
	return &IntegerAggregator{
		groupField: groupField,
		groupFType: groupFType,
		aggField:   aggField,
		op:         op,
		groups:     make(map[groupKey]*intAccumulator),
	}
}

func (a *IntegerAggregator) MergeTupleIntoGroup(t *Tuple) error {
	iv, ok := t.Fields[a.aggField].(IntField)
	if !ok {
		return newError(IllegalArgumentError, "aggregate field %d is not an int", a.aggField)
	}
	var gv DBValue
	if a.groupField != NoGrouping {
		gv = t.Fields[a.groupField]
	}
	key := keyFor(gv)
	acc, ok := a.groups[key]
	if !ok {
		acc = &intAccumulator{}
		a.groups[key] = acc
		a.order = append(a.order, key)
	}
	acc.add(iv.Value)
	return nil
}

func (a *IntegerAggregator) Iterator(groupFieldName, aggFieldName string) func() (*Tuple, error) {
	idx := 0
	desc := a.resultDesc(groupFieldName, aggFieldName)
	return func() (*Tuple, error) {
		if idx >= len(a.order) {
			return nil, nil
		}
		key := a.order[idx]
		idx++
		acc := a.groups[key]
		fields := []DBValue{}
		if a.groupField != NoGrouping {
			fields = append(fields, groupValueToField(key, a.groupFType))
		}
		fields = append(fields, IntField{Value: acc.result(a.op)})
		return &Tuple{Desc: *desc, Fields: fields}, nil
	}
}

func (a *IntegerAggregator) resultDesc(groupFieldName, aggFieldName string) *TupleDesc {
	var fields []FieldType
	if a.groupField != NoGrouping {
		fields = append(fields, FieldType{Fname: groupFieldName, Ftype: a.groupFType})
	}
	fields = append(fields, FieldType{Fname: aggFieldName, Ftype: IntType})
	return &TupleDesc{Fields: fields}
}

func groupValueToField(key groupKey, ftype DBType) DBValue {
	switch ftype {
	case IntType:
		return IntField{Value: key.value.(int32)}
	case StringType:
		return StringField{Value: key.value.(string)}
	}
	return nil
}

// StringAggregator supports only COUNT over a string field;
// SUM/AVG/MIN/MAX have no meaning for strings here.
type StringAggregator struct {
	groupField int
	groupFType DBType
	aggField   int
	groups     map[groupKey]int64
	order      []groupKey
}

func NewStringAggregator(groupField int, groupFType DBType, aggField int, op AggOp) (*StringAggregator, error) {
	if op != AggCount {
		return nil, newError(IllegalArgumentError, "string fields only support count, not %s", op)
	}
	return &StringAggregator{
		groupField: groupField,
		groupFType: groupFType,
		aggField:   aggField,
		groups:     make(map[groupKey]int64),
	}, nil
}

func (a *StringAggregator) MergeTupleIntoGroup(t *Tuple) error {
	if _, ok := t.Fields[a.aggField].(StringField); !ok {
		return newError(IllegalArgumentError, "aggregate field %d is not a string", a.aggField)
	}
	var gv DBValue
	if a.groupField != NoGrouping {
		gv = t.Fields[a.groupField]
	}
	key := keyFor(gv)
	a.groups[key]++
	if a.groups[key] == 1 {
		a.order = append(a.order, key)
	}
	return nil
}

// Iterator yields one row per group holding its COUNT. With no
// grouping and no rows ever merged, it yields nothing rather than the
// zero row SQL's COUNT(*) convention would produce.
func (a *StringAggregator) Iterator(groupFieldName, aggFieldName string) func() (*Tuple, error) {
	idx := 0
	desc := a.resultDesc(groupFieldName, aggFieldName)
	return func() (*Tuple, error) {
		if idx >= len(a.order) {
			return nil, nil
		}
		key := a.order[idx]
		idx++
		fields := []DBValue{}
		if a.groupField != NoGrouping {
			fields = append(fields, groupValueToField(key, a.groupFType))
		}
		fields = append(fields, IntField{Value: int32(a.groups[key])})
		return &Tuple{Desc: *desc, Fields: fields}, nil
	}
}

func (a *StringAggregator) resultDesc(groupFieldName, aggFieldName string) *TupleDesc {
	var fields []FieldType
	if a.groupField != NoGrouping {
		fields = append(fields, FieldType{Fname: groupFieldName, Ftype: a.groupFType})
	}
	fields = append(fields, FieldType{Fname: aggFieldName, Ftype: IntType})
	return &TupleDesc{Fields: fields}
}

// Aggregator is implemented by IntegerAggregator and StringAggregator.
type Aggregator interface {
	MergeTupleIntoGroup(t *Tuple) error
	Iterator(groupFieldName, aggFieldName string) func() (*Tuple, error)
}

// NewAggregator picks the aggregator matching the aggregated field's
// type: ints get the full COUNT/SUM/AVG/MIN/MAX set, strings only
// COUNT.
func NewAggregator(groupField int, groupFType DBType, aggField int, aggFType DBType, op AggOp) (Aggregator, error) {
	switch aggFType {
	case IntType:
		return NewIntegerAggregator(groupField, groupFType, aggField, op), nil
	case StringType:
		return NewStringAggregator(groupField, groupFType, aggField, op)
	}
	return nil, newError(IllegalArgumentError, "no aggregator for field type %s", aggFType)
}

// Aggregate is the operator wrapping an Aggregator: it consumes its
// child entirely on Open, then streams grouped results.
type Aggregate struct {
	child          Operator
	groupFieldIdx  int
	aggFieldIdx    int
	groupFieldName string
	aggFieldName   string
	groupFType     DBType
	desc           *TupleDesc
	agg            Aggregator
	newAgg         func() Aggregator
	it             *iterState
}

func NewAggregate(child Operator, groupFieldIdx, aggFieldIdx int, groupFieldName, aggFieldName string, groupFType DBType, newAgg func() Aggregator) *Aggregate {
	var fields []FieldType
	if groupFieldIdx != NoGrouping {
		fields = append(fields, FieldType{Fname: groupFieldName, Ftype: groupFType})
	}
	fields = append(fields, FieldType{Fname: aggFieldName, Ftype: IntType})
	return &Aggregate{
		child:          child,
		groupFieldIdx:  groupFieldIdx,
		aggFieldIdx:    aggFieldIdx,
		groupFieldName: groupFieldName,
		aggFieldName:   aggFieldName,
		groupFType:     groupFType,
		desc:           &TupleDesc{Fields: fields},
		newAgg:         newAgg,
	}
}

func (a *Aggregate) Open(tid TransactionId) error {
	if err := a.child.Open(tid); err != nil {
		return err
	}
	return a.materialize()
}

func (a *Aggregate) materialize() error {
	a.agg = a.newAgg()
	for {
		has, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		if err := a.agg.MergeTupleIntoGroup(t); err != nil {
			return err
		}
	}
	a.it = newIterState(a.agg.Iterator(a.groupFieldName, a.aggFieldName))
	return nil
}

func (a *Aggregate) HasNext() (bool, error) { return a.it.HasNext() }
func (a *Aggregate) Next() (*Tuple, error)  { return a.it.Next() }

func (a *Aggregate) Rewind() error {
	if err := a.child.Rewind(); err != nil {
		return err
	}
	return a.materialize()
}

func (a *Aggregate) Close() error { return a.child.Close() }

func (a *Aggregate) GetTupleDesc() *TupleDesc {
	return a.desc
}

func (a *Aggregate) GetChildren() []Operator { return []Operator{a.child} }

func (a *Aggregate) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Aggregate takes exactly one child")
	}
	a.child = children[0]
}
