package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAttrType(t *testing.T) {
	at, err := ParseAttrType("real")
	require.NoError(t, err)
	require.Equal(t, Real, at)

	_, err = ParseAttrType("bogus")
	require.Error(t, err)
}

func TestValueKinds(t *testing.T) {
	v := IntValue(42)
	require.True(t, v.IsInt())
	require.False(t, v.IsFloat())
	require.EqualValues(t, 42, v.Int())
}

func TestSchemaValidate(t *testing.T) {
	s := NewSchema(Categorical, Real, String)
	tup := Tuple{Values: []Value{IntValue(1), FloatValue(2.5), StringValue("x")}}
	require.NoError(t, s.Validate(tup))

	bad := Tuple{Values: []Value{FloatValue(1.0), FloatValue(2.5), StringValue("x")}}
	require.Error(t, s.Validate(bad))
}
