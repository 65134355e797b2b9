package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct{ x, y int }

type caseless string

func (c caseless) Equal(other any) bool {
	o, ok := other.(caseless)
	return ok && len(o) == len(c)
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	require.Equal(t, Object, v.Kind())
	require.True(t, v.IsNull())
	require.True(t, v.Equal(Null))
	require.Equal(t, "null", v.String())
	require.True(t, NewArray(nil).IsNull())
}

func TestSharedPayload(t *testing.T) {
	f := NewFloat(1.5)
	require.Equal(t, float32(1.5), f.Float())
	i := NewInt(f.Int())
	require.False(t, i.Equal(f))
	require.Equal(t, f.Int(), i.Int())
	require.Equal(t, int32(-7), NewInt(-7).Int())
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		value  Value
		truthy bool
	}{
		{NewBool(false), false},
		{Null, false},
		{NewBool(true), true},
		{NewInt(0), true},
		{NewFloat(0), true},
		{NewString(""), true},
		{NewArray([]Value{}), true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.truthy, tt.value.IsTruthy(), tt.value.String())
	}
}

func TestEqual(t *testing.T) {
	require.True(t, NewInt(3).Equal(NewInt(3)))
	require.False(t, NewInt(3).Equal(NewInt(4)))
	require.True(t, NewBool(true).Equal(NewBool(true)))
	require.False(t, NewBool(true).Equal(NewBool(false)))
	require.True(t, NewString("a").Equal(NewString("a")))
	require.False(t, NewString("a").Equal(NewInt(1)))
	require.True(t, NewObject(point{1, 2}).Equal(NewObject(point{1, 2})))
	require.False(t, NewObject([]int{1}).Equal(NewObject([]int{1})))
	require.True(t, NewObject(caseless("ab")).Equal(NewObject(caseless("xy"))))

	a := NewArray([]Value{NewInt(1), NewArray([]Value{NewString("x")})})
	b := NewArray([]Value{NewInt(1), NewArray([]Value{NewString("x")})})
	c := NewArray([]Value{NewInt(1)})
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestString(t *testing.T) {
	require.Equal(t, "42", NewInt(42).String())
	require.Equal(t, "2.5", NewFloat(2.5).String())
	require.Equal(t, "false", NewBool(false).String())
	require.Equal(t, "[1, hi, [true]]", NewArray([]Value{
		NewInt(1), NewString("hi"), NewArray([]Value{NewBool(true)}),
	}).String())
}

func TestInterfaceConversion(t *testing.T) {
	v := FromInterface([]any{1, "a", true, nil, 1.5})
	require.Equal(t, Array, v.Kind())
	require.Equal(t, []any{int32(1), "a", true, nil, float32(1.5)}, v.Interface())
}
