package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupIdentifier(t *testing.T) {
	require.Equal(t, FOREACH, LookupIdentifier("forEach"))
	require.Equal(t, IDENT, LookupIdentifier("foreach"))
	require.Equal(t, INPUT, LookupIdentifier("input"))
	require.Equal(t, IDENT, LookupIdentifier("print"))
}

func TestSlice(t *testing.T) {
	s := Slice{Index: 4, Length: 3}
	require.Equal(t, 7, s.End())
	require.True(t, s.Contains(4))
	require.True(t, s.Contains(6))
	require.False(t, s.Contains(7))
	require.Equal(t, Slice{Index: 1, Length: 6}, s.Join(Slice{Index: 1, Length: 2}))
}
