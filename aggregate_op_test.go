package reldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerAggregatorAvg(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	rows := intRows(desc, []int32{2, 4, 6})
	child := newStaticOp(desc, rows)

	agg := NewAggregate(child, NoGrouping, 0, "", "avg", IntType, func() Aggregator {
		return NewIntegerAggregator(NoGrouping, IntType, 0, AggAvg)
	})
	require.NoError(t, agg.Open(1))
	got, err := drain(agg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, IntField{Value: 4}, got[0].Fields[0])
}

func TestIntegerAggregatorEmptyAvgEmitsNothing(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newStaticOp(desc, nil)

	agg := NewAggregate(child, NoGrouping, 0, "", "avg", IntType, func() Aggregator {
		return NewIntegerAggregator(NoGrouping, IntType, 0, AggAvg)
	})
	require.NoError(t, agg.Open(1))
	got, err := drain(agg)
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestIntegerAggregatorGroupedCount(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{
		{Fname: "g", Ftype: StringType},
		{Fname: "v", Ftype: IntType},
	}}
	rows := []*Tuple{
		{Desc: *desc, Fields: []DBValue{StringField{Value: "x"}, IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{StringField{Value: "x"}, IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{StringField{Value: "y"}, IntField{Value: 1}}},
	}
	child := newStaticOp(desc, rows)

	agg := NewAggregate(child, 0, 1, "g", "count", StringType, func() Aggregator {
		return NewIntegerAggregator(0, StringType, 1, AggCount)
	})
	require.NoError(t, agg.Open(1))
	got, err := drain(agg)
	require.NoError(t, err)

	counts := map[string]int32{}
	for _, row := range got {
		g := row.Fields[0].(StringField).Value
		c := row.Fields[1].(IntField).Value
		counts[g] = c
	}
	assert.Equal(t, int32(2), counts["x"])
	assert.Equal(t, int32(1), counts["y"])
}

func TestStringAggregatorCountOnly(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "s", Ftype: StringType}}}
	rows := []*Tuple{
		{Desc: *desc, Fields: []DBValue{StringField{Value: "x"}}},
		{Desc: *desc, Fields: []DBValue{StringField{Value: "x"}}},
		{Desc: *desc, Fields: []DBValue{StringField{Value: "y"}}},
	}
	child := newStaticOp(desc, rows)

	agg := NewAggregate(child, NoGrouping, 0, "", "count", IntType, func() Aggregator {
		sa, err := NewStringAggregator(NoGrouping, IntType, 0, AggCount)
		require.NoError(t, err)
		return sa
	})
	require.NoError(t, agg.Open(1))
	got, err := drain(agg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, IntField{Value: 3}, got[0].Fields[0])
}

func TestStringAggregatorRejectsNonCountOps(t *testing.T) {
	for _, op := range []AggOp{AggSum, AggAvg, AggMin, AggMax} {
		_, err := NewStringAggregator(NoGrouping, IntType, 0, op)
		require.Error(t, err)
		ee, ok := err.(EngineError)
		require.True(t, ok)
		assert.Equal(t, IllegalArgumentError, ee.Code)
	}
}

func TestAggregatorDispatchesOnFieldType(t *testing.T) {
	ia, err := NewAggregator(NoGrouping, IntType, 0, IntType, AggSum)
	require.NoError(t, err)
	_, isInt := ia.(*IntegerAggregator)
	assert.True(t, isInt)

	sa, err := NewAggregator(NoGrouping, IntType, 0, StringType, AggCount)
	require.NoError(t, err)
	_, isStr := sa.(*StringAggregator)
	assert.True(t, isStr)

	_, err = NewAggregator(NoGrouping, IntType, 0, StringType, AggMax)
	require.Error(t, err)
}

func TestStringAggregatorEmptyInputEmitsNothing(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{{Fname: "s", Ftype: StringType}}}
	child := newStaticOp(desc, nil)

	agg := NewAggregate(child, NoGrouping, 0, "", "count", IntType, func() Aggregator {
		sa, err := NewStringAggregator(NoGrouping, IntType, 0, AggCount)
		require.NoError(t, err)
		return sa
	})
	require.NoError(t, agg.Open(1))
	got, err := drain(agg)
	require.NoError(t, err)
	assert.Len(t, got, 0)
}
