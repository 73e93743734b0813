package reldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterKeepsOnlyMatchingTuples(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{1, 5, 3, 9, 2}))

	expr := &FieldExpr{Field: FieldType{Fname: "v", Ftype: IntType}}
	f := NewFilter(expr, OpGt, IntField{Value: 2}, child)

	require.NoError(t, f.Open(1))
	got, err := drain(f)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, row := range got {
		assert.Greater(t, row.Fields[0].(IntField).Value, int32(2))
	}
}

func TestFilterRewindReplaysWithoutRescanningChild(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{4, 1, 6}))

	expr := &FieldExpr{Field: FieldType{Fname: "v", Ftype: IntType}}
	f := NewFilter(expr, OpGe, IntField{Value: 4}, child)

	require.NoError(t, f.Open(1))
	first, err := drain(f)
	require.NoError(t, err)

	require.NoError(t, f.Rewind())
	second, err := drain(f)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].equals(second[i]))
	}
}

func TestFilterEmptyResult(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{1, 2}))

	expr := &FieldExpr{Field: FieldType{Fname: "v", Ftype: IntType}}
	f := NewFilter(expr, OpGt, IntField{Value: 100}, child)

	require.NoError(t, f.Open(1))
	has, err := f.HasNext()
	require.NoError(t, err)
	assert.False(t, has)

	_, err = f.Next()
	require.Error(t, err)
	ee, ok := err.(EngineError)
	require.True(t, ok)
	assert.Equal(t, NoSuchElementError, ee.Code)
}
