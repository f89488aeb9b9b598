package qual

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetOps(t *testing.T) {
	var s Set
	require.False(t, s.Has(Const))

	s = s.With(Const).With(Reference)
	require.True(t, s.Has(Const))
	require.True(t, s.Has(Reference))
	require.True(t, s.IsConstRef())

	s = s.Without(Const)
	require.False(t, s.Has(Const))
	require.False(t, s.IsConstRef())
	require.True(t, s.Has(Reference))
}

func TestHasAny(t *testing.T) {
	s := Set(0).With(Virtual)
	require.True(t, s.HasAny(Override, Virtual))
	require.False(t, s.HasAny(Override, Final, Static))
}

func TestHasRequiresAllBits(t *testing.T) {
	s := Set(0).With(Const)
	// Has with a multi-bit query only reports true when every bit is set.
	require.False(t, s.Has(Const|Reference))
	s = s.With(Reference)
	require.True(t, s.Has(Const|Reference))
}
