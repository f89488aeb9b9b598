package debuginfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalRoundtrip(t *testing.T) {
	info := New([]string{"main.lethe", "lib.lethe"})
	info.AddPoint(0, 0, 1, 1)
	info.AddPoint(5, 0, 2, 3)
	info.AddPoint(9, 1, 10, 1)

	data, err := info.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, info.Documents, got.Documents)
	require.Equal(t, info.Points, got.Points)
}

func TestMarshalEmpty(t *testing.T) {
	info := New(nil)
	data, err := info.Marshal()
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Empty(t, got.Documents)
	require.Empty(t, got.Points)
}

func TestLookup(t *testing.T) {
	info := New([]string{"main.lethe"})
	info.AddPoint(0, 0, 1, 1)
	info.AddPoint(10, 0, 5, 1)
	info.AddPoint(20, 0, 9, 1)

	// Exact hit.
	p, ok := info.Lookup(10)
	require.True(t, ok)
	require.Equal(t, 5, p.Line)

	// Between points: the last point at or before pc wins.
	p, ok = info.Lookup(14)
	require.True(t, ok)
	require.Equal(t, 5, p.Line)

	p, ok = info.Lookup(100)
	require.True(t, ok)
	require.Equal(t, 9, p.Line)

	// Before the first point.
	empty := New(nil)
	_, ok = empty.Lookup(0)
	require.False(t, ok)
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
}
