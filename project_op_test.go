package reldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectReordersAndDropsFields(t *testing.T) {
	desc := testDesc()
	rows := []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "x"}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}, StringField{Value: "y"}}},
	}
	child := newStaticOp(desc, rows)

	p := NewProject([]FieldType{
		{Fname: "b", Ftype: StringType},
		{Fname: "a", Ftype: IntType},
	}, false, child)

	require.NoError(t, p.Open(1))
	got, err := drain(p)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StringField{Value: "x"}, got[0].Fields[0])
	assert.Equal(t, IntField{Value: 1}, got[0].Fields[1])
	assert.Len(t, p.GetTupleDesc().Fields, 2)
}

func TestProjectDistinctSuppressesDuplicates(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{1, 1, 2, 1, 2, 3}))

	p := NewProject([]FieldType{{Fname: "v", Ftype: IntType}}, true, child)
	require.NoError(t, p.Open(1))
	got, err := drain(p)
	require.NoError(t, err)

	require.Len(t, got, 3)
	seen := map[int32]bool{}
	for _, row := range got {
		seen[row.Fields[0].(IntField).Value] = true
	}
	assert.Equal(t, map[int32]bool{1: true, 2: true, 3: true}, seen)
}

func TestProjectDistinctRewindResetsSeenSet(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, intRows(desc, []int32{7, 7}))

	p := NewProject([]FieldType{{Fname: "v", Ftype: IntType}}, true, child)
	require.NoError(t, p.Open(1))
	got, err := drain(p)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, p.Rewind())
	got, err = drain(p)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
