package reldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Tuple is a row: its schema, its field values, and (if it was read
// off a page rather than freshly constructed) the RecordId it came
// from.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordId
}

// fieldWireSize returns the on-disk size in bytes of a field of type
// t: 4 bytes for an INT, or a 4-byte big-endian length prefix plus a
// StringLength-byte fixed payload for a STRING.
func fieldWireSize(t DBType) int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringLength
	}
	return 0
}

// tupleWireSize is the fixed on-disk size of any tuple conforming to
// desc.
func tupleWireSize(desc *TupleDesc) int {
	size := 0
	for _, f := range desc.Fields {
		size += fieldWireSize(f.Ftype)
	}
	return size
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.BigEndian, f.Value)
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	payload := []byte(f.Value)
	if len(payload) > StringLength {
		payload = payload[:StringLength]
	}
	if err := binary.Write(b, binary.BigEndian, int32(len(payload))); err != nil {
		return err
	}
	padded := make([]byte, StringLength)
	copy(padded, payload)
	_, err := b.Write(padded)
	return err
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(b, binary.BigEndian, &v); err != nil {
		return IntField{}, newError(IOError, "read int field: %v", err)
	}
	return IntField{Value: v}, nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	var n int32
	if err := binary.Read(b, binary.BigEndian, &n); err != nil {
		return StringField{}, newError(IOError, "read string field length: %v", err)
	}
	raw := make([]byte, StringLength)
	if _, err := io.ReadFull(b, raw); err != nil {
		return StringField{}, newError(IOError, "read string field payload: %v", err)
	}
	if n < 0 || int(n) > StringLength {
		n = int32(len(strings.TrimRight(string(raw), "\x00")))
	}
	return StringField{Value: string(raw[:n])}, nil
}

// writeTo serializes t's fields, in schema order, in the wire format
// described in the external format: big-endian ints, length-prefixed
// fixed-width strings.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	if len(t.Fields) != len(t.Desc.Fields) {
		return newError(IllegalArgumentError, "tuple has %d fields, descriptor has %d", len(t.Fields), len(t.Desc.Fields))
	}
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			if t.Desc.Fields[i].Ftype != IntType {
				return newError(IllegalArgumentError, "field %d: expected int, schema says %s", i, t.Desc.Fields[i].Ftype)
			}
			if err := writeIntField(b, v); err != nil {
				return err
			}
		case StringField:
			if t.Desc.Fields[i].Ftype != StringType {
				return newError(IllegalArgumentError, "field %d: expected string, schema says %s", i, t.Desc.Fields[i].Ftype)
			}
			if err := writeStringField(b, v); err != nil {
				return err
			}
		default:
			return newError(IllegalArgumentError, "unsupported field type %T", f)
		}
	}
	return nil
}

// readTupleFrom deserializes a tuple with the given descriptor from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	fields := make([]DBValue, len(desc.Fields))
	for i, ft := range desc.Fields {
		switch ft.Ftype {
		case IntType:
			f, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		case StringType:
			f, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		default:
			return nil, newError(IllegalArgumentError, "unsupported schema field type %s", ft.Ftype)
		}
	}
	return &Tuple{Desc: *desc, Fields: fields}, nil
}

// equals compares two tuples for deep equality: same descriptor, same
// field values. RecordId is deliberately excluded -- two copies of the
// same logical row read at different times needn't share a Rid.
func (t *Tuple) equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.Desc.equals(&other.Desc) || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates t1's fields with t2's, producing the merged
// TupleDesc and field list a sort-merge or nested-loop join emits.
func joinTuples(t1, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: append(append([]DBValue{}, t1.Fields...), t2.Fields...),
	}
}

// project builds a new tuple containing only the named fields, in the
// order given, preferring a table-qualified match over an unqualified
// one when both are present.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	out := &Tuple{Desc: TupleDesc{}, Fields: make([]DBValue, 0, len(fields))}
	for _, want := range fields {
		idx := -1
		for i, f := range t.Desc.Fields {
			if f.Fname == want.Fname && f.TableQualifier == want.TableQualifier {
				idx = i
				break
			}
		}
		if idx == -1 {
			for i, f := range t.Desc.Fields {
				if f.Fname == want.Fname {
					idx = i
					break
				}
			}
		}
		if idx == -1 {
			return nil, newError(NoSuchElementError, "field %s.%s not found", want.TableQualifier, want.Fname)
		}
		out.Desc.Fields = append(out.Desc.Fields, t.Desc.Fields[idx])
		out.Fields = append(out.Fields, t.Fields[idx])
	}
	return out, nil
}

// compareField evaluates expr against t and other and returns their
// relative order.
func (t *Tuple) compareField(other *Tuple, expr Expr) (orderByState, error) {
	a, err := expr.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	b, err := expr.EvalExpr(other)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(a, b)
}

// tupleKey computes a comparable key for t, used by DISTINCT tracking.
func (t *Tuple) tupleKey() (any, error) {
	var buf bytes.Buffer
	if err := t.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.String(), nil
}

func fmtCol(v string, ncols int) string {
	const winWidth = 120
	colWid := winWidth / ncols
	if colWid < 4 {
		colWid = 4
	}
	if len(v)+3 > colWid {
		if len(v) > colWid-4 {
			v = v[:colWid-4]
		}
		return " " + v + " |"
	}
	remLen := colWid - (len(v) + 3)
	left := remLen / 2
	right := remLen - left
	return strings.Repeat(" ", left) + v + strings.Repeat(" ", right) + " |"
}

// HeaderString renders a TupleDesc as a column header, aligned into
// fixed-width columns when aligned is true, comma-separated otherwise.
func (td *TupleDesc) HeaderString(aligned bool) string {
	out := ""
	for i, f := range td.Fields {
		name := f.Fname
		if f.TableQualifier != "" {
			name = f.TableQualifier + "." + name
		}
		if aligned {
			out += " " + fmtCol(name, len(td.Fields))
		} else {
			if i > 0 {
				out += ","
			}
			out += name
		}
	}
	return out
}

// PrettyPrintString renders t's values the same way HeaderString
// renders its schema.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	out := ""
	for i, f := range t.Fields {
		var s string
		switch v := f.(type) {
		case IntField:
			s = strconv.FormatInt(int64(v.Value), 10)
		case StringField:
			s = v.Value
		default:
			s = fmt.Sprintf("%v", f)
		}
		if aligned {
			out += " " + fmtCol(s, len(t.Fields))
		} else {
			if i > 0 {
				out += ","
			}
			out += s
		}
	}
	return out
}
