package reldb

// DBType is the type tag of a tuple field.
type DBType int

const (
	IntType DBType = iota
	StringType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType names one column of a TupleDesc: its name, the table it
// came from (empty if the query never qualified it), and its type.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is a tuple's schema. Its field count never changes once
// built; callers that need a different shape build a new TupleDesc
// with merge/copy rather than mutating Fields in place.
type TupleDesc struct {
	Fields []FieldType
}

func (td *TupleDesc) equals(other *TupleDesc) bool {
	if len(td.Fields) != len(other.Fields) {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i].Fname != other.Fields[i].Fname || td.Fields[i].Ftype != other.Fields[i].Ftype {
			return false
		}
	}
	return true
}

func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// merge returns a new TupleDesc consisting of td's fields followed by
// other's, used by Join to build the concatenated output schema.
func (td *TupleDesc) merge(other *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(td.Fields)+len(other.Fields))
	fields = append(fields, td.Fields...)
	fields = append(fields, other.Fields...)
	return &TupleDesc{Fields: fields}
}

// findFieldInTd locates field's best match within desc. An unqualified
// lookup that matches more than one column is ambiguous.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname != field.Fname {
			continue
		}
		if field.TableQualifier == "" && best != -1 {
			return 0, newError(IllegalArgumentError, "field name %q is ambiguous", f.Fname)
		}
		if f.TableQualifier == field.TableQualifier || best == -1 {
			best = i
		}
	}
	if best == -1 {
		return -1, newError(NoSuchElementError, "field %s.%s not found", field.TableQualifier, field.Fname)
	}
	return best, nil
}

// BoolOp is a comparison operator used by filters, joins, and
// selectivity estimation.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpGt
	OpGe
	OpLt
	OpLe
)

// DBValue is a typed field value. EvalPred applies op between the
// receiver and v.
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is a 4-byte signed integer field value.
type IntField struct {
	Value int32
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	return evalOp(int64(f.Value), int64(other.Value), op)
}

// StringField is a fixed-width (StringLength bytes) string field
// value; Value itself is the unpadded, trimmed content.
type StringField struct {
	Value string
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	if f.Value < other.Value {
		return evalOp(-1, 0, op)
	}
	if f.Value > other.Value {
		return evalOp(1, 0, op)
	}
	return evalOp(0, 0, op)
}

func evalOp(a, b int64, op BoolOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	}
	return false
}

// orderByState is the three-way result of comparing two fields.
type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

func compareFields(a, b DBValue) (orderByState, error) {
	switch av := a.(type) {
	case IntField:
		bv, ok := b.(IntField)
		if !ok {
			return OrderedEqual, newError(IllegalArgumentError, "cannot compare int field to %T", b)
		}
		switch {
		case av.Value < bv.Value:
			return OrderedLessThan, nil
		case av.Value > bv.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		bv, ok := b.(StringField)
		if !ok {
			return OrderedEqual, newError(IllegalArgumentError, "cannot compare string field to %T", b)
		}
		switch {
		case av.Value < bv.Value:
			return OrderedLessThan, nil
		case av.Value > bv.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	}
	return OrderedEqual, newError(IllegalArgumentError, "unsupported field type %T", a)
}

// Expr is anything that can be evaluated against a tuple to produce a
// DBValue: a bare field reference, a constant, or (in principle) a
// richer scalar expression supplied by an external planner.
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr extracts a named field from whatever tuple it is applied
// to, resolving the field by name (and, if set, table qualifier)
// against the tuple's own TupleDesc.
type FieldExpr struct {
	Field FieldType
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	idx, err := findFieldInTd(e.Field, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[idx], nil
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.Field
}

// ConstIntExpr and ConstStringExpr let operators that need a
// compile-time constant (e.g. Limit's row count) use the same Expr
// interface as a field reference.
type ConstIntExpr struct {
	Value int32
}

func (e *ConstIntExpr) EvalExpr(*Tuple) (DBValue, error) {
	return IntField{Value: e.Value}, nil
}

func (e *ConstIntExpr) GetExprType() FieldType {
	return FieldType{Ftype: IntType}
}

type ConstStringExpr struct {
	Value string
}

func (e *ConstStringExpr) EvalExpr(*Tuple) (DBValue, error) {
	return StringField{Value: e.Value}, nil
}

func (e *ConstStringExpr) GetExprType() FieldType {
	return FieldType{Ftype: StringType}
}
