package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lethe-lang/lethe/internal/qual"
)

const wordSize = 8

func TestBuiltinSizes(t *testing.T) {
	tbl := NewTable()
	cases := []struct {
		kind  Kind
		size  int
		align int
	}{
		{Void, 0, 1},
		{Bool, 1, 1},
		{Short, 2, 2},
		{Int, 4, 4},
		{Long, 8, 8},
		{Float, 4, 4},
		{Double, 8, 8},
		{Name, 4, 4},
	}
	for _, tc := range cases {
		dt := tbl.Builtin(tc.kind)
		require.NotNil(t, dt, tc.kind.String())
		require.Equal(t, tc.size, dt.Size, tc.kind.String())
		require.Equal(t, tc.align, dt.Align, tc.kind.String())
		require.Same(t, dt, tbl.Lookup(tc.kind.String()))
	}
}

func TestDeclareStructDuplicate(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.DeclareStruct("vec", false)
	require.NoError(t, err)
	_, err = tbl.DeclareStruct("vec", false)
	require.Error(t, err)
}

func TestStaticArray(t *testing.T) {
	tbl := NewTable()
	intT := tbl.Builtin(Int)

	arr, err := tbl.StaticArrayOf(intT, []int{4})
	require.NoError(t, err)
	require.Equal(t, 16, arr.Size)
	require.Equal(t, intT.Align, arr.Align)

	// Canonicalization: same element and dims return the same DataType.
	again, err := tbl.StaticArrayOf(intT, []int{4})
	require.NoError(t, err)
	require.Same(t, arr, again)

	multi, err := tbl.StaticArrayOf(intT, []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, 24, multi.Size)
	require.NotSame(t, arr, multi)

	_, err = tbl.StaticArrayOf(intT, []int{0})
	require.Error(t, err)
}

func TestStaticArrayOfDynamicForbidden(t *testing.T) {
	tbl := NewTable()
	dyn, _ := tbl.DynamicArrayOf(tbl.Builtin(Int), wordSize)
	_, err := tbl.StaticArrayOf(dyn, []int{2})
	require.Error(t, err)
}

func TestDynamicArrayComplementary(t *testing.T) {
	tbl := NewTable()
	dyn, ref := tbl.DynamicArrayOf(tbl.Builtin(Int), wordSize)

	require.Equal(t, DynamicArray, dyn.Kind)
	require.Equal(t, 3*wordSize, dyn.Size)
	require.Equal(t, ArrayRef, ref.Kind)
	require.Equal(t, 2*wordSize, ref.Size)

	require.Same(t, ref, dyn.Complementary.Secondary)
	require.Same(t, dyn, ref.Complementary.Primary)

	dyn2, ref2 := tbl.DynamicArrayOf(tbl.Builtin(Int), wordSize)
	require.Same(t, dyn, dyn2)
	require.Same(t, ref, ref2)
}

func TestPointerFamily(t *testing.T) {
	tbl := NewTable()
	cls, err := tbl.DeclareStruct("Actor", true)
	require.NoError(t, err)

	strong, weak, raw, err := tbl.PointerFamily(cls, wordSize)
	require.NoError(t, err)
	for _, p := range []*DataType{strong, weak, raw} {
		require.Same(t, cls, p.ElemType)
		require.Equal(t, wordSize, p.Size)
		require.Same(t, strong, p.Complementary.Primary)
		require.Same(t, weak, p.Complementary.Secondary)
		require.Same(t, raw, p.Complementary.Tertiary)
	}
	require.True(t, strong.HasDtor)
	require.True(t, weak.HasDtor)
	require.False(t, raw.HasDtor)

	s2, w2, r2, err := tbl.PointerFamily(cls, wordSize)
	require.NoError(t, err)
	require.Same(t, strong, s2)
	require.Same(t, weak, w2)
	require.Same(t, raw, r2)
}

func TestPointerFamilyRequiresClass(t *testing.T) {
	tbl := NewTable()
	st, err := tbl.DeclareStruct("plain", false)
	require.NoError(t, err)
	_, _, _, err = tbl.PointerFamily(st, wordSize)
	require.Error(t, err)
}

func TestQDataTypeWordSize(t *testing.T) {
	tbl := NewTable()
	cases := []struct {
		name  string
		q     QDataType
		words int
	}{
		{"int rounds up", Q(tbl.Builtin(Int), 0), 1},
		{"long exact", Q(tbl.Builtin(Long), 0), 1},
		{"void empty", Q(tbl.Builtin(Void), 0), 0},
		{"reference is one word", Q(tbl.Builtin(Long), qual.Set(0).With(qual.Reference)), 1},
	}
	st, _ := tbl.DeclareStruct("big", false)
	st.Size = 20
	cases = append(cases,
		struct {
			name  string
			q     QDataType
			words int
		}{"struct rounds up", Q(st, 0), 3},
		struct {
			name  string
			q     QDataType
			words int
		}{"struct by ref", Q(st, qual.Set(0).With(qual.Reference)), 1},
	)
	for _, tc := range cases {
		require.Equal(t, tc.words, tc.q.WordSize(wordSize), tc.name)
	}
}

func TestQDataTypeEqualIgnoresHints(t *testing.T) {
	tbl := NewTable()
	a := Q(tbl.Builtin(Int), qual.Set(0).With(qual.Const))
	b := Q(tbl.Builtin(Int), qual.Set(0).With(qual.Const).With(qual.SkipDtor))
	require.True(t, a.Equal(b))

	c := Q(tbl.Builtin(Int), 0)
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(Q(tbl.Builtin(UInt), a.Quals)))
}

func TestTypeString(t *testing.T) {
	tbl := NewTable()
	cls, _ := tbl.DeclareStruct("Actor", true)
	strong, weak, raw, _ := tbl.PointerFamily(cls, wordSize)
	dyn, ref := tbl.DynamicArrayOf(tbl.Builtin(Int), wordSize)
	arr, _ := tbl.StaticArrayOf(tbl.Builtin(Float), []int{3})

	require.Equal(t, "strong<Actor>", strong.String())
	require.Equal(t, "weak<Actor>", weak.String())
	require.Equal(t, "raw<Actor>", raw.String())
	require.Equal(t, "array<int>", dyn.String())
	require.Equal(t, "array_ref<int>", ref.String())
	require.Equal(t, "float[3]", arr.String())
}
