package reldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitTruncatesOutput(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{1, 2, 3, 4, 5}))

	l := NewLimit(&ConstIntExpr{Value: 2}, child)
	require.NoError(t, l.Open(1))
	got, err := drain(l)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, IntField{Value: 1}, got[0].Fields[0])
	assert.Equal(t, IntField{Value: 2}, got[1].Fields[0])
}

func TestLimitLargerThanInputPassesEverything(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{1, 2}))

	l := NewLimit(&ConstIntExpr{Value: 10}, child)
	require.NoError(t, l.Open(1))
	got, err := drain(l)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLimitRewind(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{1, 2, 3}))

	l := NewLimit(&ConstIntExpr{Value: 1}, child)
	require.NoError(t, l.Open(1))
	got, err := drain(l)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, l.Rewind())
	got, err = drain(l)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLimitRejectsNonIntCount(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, nil)

	l := NewLimit(&ConstStringExpr{Value: "two"}, child)
	err := l.Open(1)
	require.Error(t, err)
	ee, ok := err.(EngineError)
	require.True(t, ok)
	assert.Equal(t, IllegalArgumentError, ee.Code)
}
