package hostabi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindNativeStruct(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.BindNativeStruct("vec", 12, 4))

	s, ok := r.LookupStruct("vec")
	require.True(t, ok)
	require.Equal(t, 12, s.Size)
	require.Equal(t, 4, s.Align)

	// Qualified names are case-insensitive at the host boundary.
	_, ok = r.LookupStruct("VEC")
	require.True(t, ok)
	_, ok = r.LookupStruct(" vec ")
	require.True(t, ok)

	_, ok = r.LookupStruct("mat")
	require.False(t, ok)
}

func TestBindNativeStructValidation(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.BindNativeStruct("bad", 0, 4))
	require.Error(t, r.BindNativeStruct("bad", 8, 0))
}

func TestBindNativeFunction(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.BindNativeFunction("vec::length", []int{12}, 4))

	f, ok := r.LookupFunction("Vec::Length")
	require.True(t, ok)
	require.Equal(t, "vec::length", f.Name)
	require.Equal(t, []int{12}, f.ParamSizes)
	require.Equal(t, 4, f.ReturnSize)

	require.Error(t, r.BindNativeFunction("", nil, 0))
}

func TestBindNativeFunctionCopiesParams(t *testing.T) {
	r := NewRegistry()
	params := []int{4, 4}
	require.NoError(t, r.BindNativeFunction("div", params, 4))
	params[0] = 999
	f, _ := r.LookupFunction("div")
	require.Equal(t, []int{4, 4}, f.ParamSizes)
}
