// Package types implements the compiler's type table: it canonicalizes
// DataType values, owns their ctor/dtor/assign/cmp program
// offsets, and generates complementary types (dynamic<->array-ref,
// strong<->weak<->raw).
package types

import (
	"encoding/binary"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/twmb/murmur3"
)

// Table owns every DataType produced during a single compilation. It is not
// safe for concurrent use across compilations (one compilation
// context owns all of its type state), but a single Table is only ever
// driven by one goroutine at a time by contract with its callers.
type Table struct {
	mu sync.Mutex

	byName map[string]*DataType
	nextID uint64

	// structural cache: murmur3 hash of a synthesized type's shape ->
	// already-interned DataType. Bounded so pathological template/array
	// instantiation storms can't grow this unboundedly. Synthesis consults
	// only this cache, so once an entry is evicted a later request for the
	// same shape interns a new, distinct DataType.
	cache *lru.Cache

	builtins map[Kind]*DataType
}

// NewTable creates a Table pre-populated with the primitive kinds (void,
// bool, the integer/float family, name, string, null).
func NewTable() *Table {
	c, err := lru.New(4096)
	if err != nil {
		// Only fails for a non-positive size, which 4096 never is.
		panic(err)
	}
	t := &Table{
		byName:   make(map[string]*DataType),
		cache:    c,
		builtins: make(map[Kind]*DataType),
	}
	for _, pk := range []struct {
		k          Kind
		size, align int
	}{
		{Void, 0, 1},
		{Bool, 1, 1},
		{SByte, 1, 1},
		{Byte, 1, 1},
		{Short, 2, 2},
		{UShort, 2, 2},
		{Char, 4, 4},
		{Int, 4, 4},
		{UInt, 4, 4},
		{Long, 8, 8},
		{ULong, 8, 8},
		{Float, 4, 4},
		{Double, 8, 8},
		{Name, 4, 4},
		{String, 8, 8}, // (data ptr, len) pair for interned/refcounted string
		{Null, 8, 8},
	} {
		dt := t.intern(&DataType{Kind: pk.k, Size: pk.size, Align: pk.align, Name: pk.k.String(),
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset})
		t.builtins[pk.k] = dt
	}
	return t
}

// Builtin returns the canonical primitive DataType for k, or nil if k is
// not a primitive kind.
func (t *Table) Builtin(k Kind) *DataType { return t.builtins[k] }

// intern assigns dt an id and registers it under its name (if any). Callers
// must already hold t.mu or be constructing during NewTable before any
// other goroutine can see t.
func (t *Table) intern(dt *DataType) *DataType {
	t.nextID++
	dt.id = t.nextID
	if dt.Name != "" {
		t.byName[dt.Name] = dt
	}
	return dt
}

// Lookup returns the previously declared/synthesized type named name, or
// nil.
func (t *Table) Lookup(name string) *DataType {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byName[name]
}

// DeclareStruct registers a new, not-yet-laid-out struct or class type.
// TypeGen finishes it with Finalize once layout/vtable synthesis runs.
func (t *Table) DeclareStruct(name string, isClass bool) (*DataType, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.byName[name]; dup {
		return nil, fmt.Errorf("type %q already declared", name)
	}
	k := Struct
	if isClass {
		k = Class
	}
	dt := t.intern(&DataType{
		Kind: k, Name: name,
		FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset,
	})
	return dt, nil
}

// RegisterSynthesized interns an externally built DataType under its
// name; state-class synthesis produces DataTypes by copying an existing
// one rather than through DeclareStruct.
func (t *Table) RegisterSynthesized(dt *DataType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.byName[dt.Name]; dup {
		return fmt.Errorf("type %q already declared", dt.Name)
	}
	t.intern(dt)
	return nil
}

// Finalize marks dt as laid out; called once by TypeGen per type, after
// which dt's exported fields must not change.
func (t *Table) Finalize(dt *DataType) { dt.finalized = true }

// structuralKey hashes the parts of a synthesized (non-named) type that
// determine its identity, so two requests for e.g. array<int> or
// strong<Foo> return the same *DataType instead of allocating a duplicate
// every time. This is the table's canonicalization responsibility.
func structuralKey(kind Kind, elem *DataType, dims []int) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(kind))
	_, _ = h.Write(buf[:])
	if elem != nil {
		binary.LittleEndian.PutUint64(buf[:], elem.id)
		_, _ = h.Write(buf[:])
	}
	for _, d := range dims {
		binary.LittleEndian.PutUint64(buf[:], uint64(d))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// synthesize returns the canonical DataType for (kind, elem, dims),
// creating and interning it on first use. build is only invoked on a cache
// miss.
func (t *Table) synthesize(kind Kind, elem *DataType, dims []int, build func() *DataType) *DataType {
	key := structuralKey(kind, elem, dims)
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.cache.Get(key); ok {
		return v.(*DataType)
	}
	dt := t.intern(build())
	t.cache.Add(key, dt)
	return dt
}

// StaticArrayOf returns (creating if needed) the static array type of dims
// over elem: size = product(dims) * elem.size, N must
// already be a folded positive constant by the time TypeGen calls this.
func (t *Table) StaticArrayOf(elem *DataType, dims []int) (*DataType, error) {
	total := elem.Size
	for _, n := range dims {
		if n < 1 {
			return nil, fmt.Errorf("static array dimension must be a folded constant int >= 1, got %d", n)
		}
		total *= n
	}
	if elem.Kind == DynamicArray {
		return nil, fmt.Errorf("dynamic arrays of static arrays are forbidden")
	}
	return t.synthesize(StaticArray, elem, dims, func() *DataType {
		return &DataType{
			Kind: StaticArray, ElemType: elem, ArrayDims: dims,
			Size: total, Align: elem.Align,
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset,
		}
	}), nil
}

// dynamicArrayHeaderWords is a dynamic array's fixed 3-word header: data pointer + size + reserved.
const dynamicArrayHeaderWords = 3

// DynamicArrayOf returns the dynamic array type over elem together with its
// companion array-ref type, synthesizing and cross-linking both on first
// use.
func (t *Table) DynamicArrayOf(elem *DataType, wordSize int) (dyn, ref *DataType) {
	dyn = t.synthesize(DynamicArray, elem, nil, func() *DataType {
		return &DataType{
			Kind: DynamicArray, ElemType: elem,
			Size: dynamicArrayHeaderWords * wordSize, Align: wordSize,
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset,
		}
	})
	ref = t.synthesize(ArrayRef, elem, []int{-1}, func() *DataType {
		return &DataType{
			Kind: ArrayRef, ElemType: elem,
			Size: 2 * wordSize, Align: wordSize, // (data ptr, len) pair, non-owning
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset,
		}
	})
	t.mu.Lock()
	dyn.Complementary.Secondary = ref
	ref.Complementary.Primary = dyn
	t.mu.Unlock()
	return dyn, ref
}

// PointerFamily returns the strong/weak/raw pointer DataTypes for a class
// type elem, synthesizing and cross-linking all three on first use.
// Only valid for elem.Kind == Class.
func (t *Table) PointerFamily(elem *DataType, wordSize int) (strong, weak, raw *DataType, err error) {
	if elem.Kind != Class {
		return nil, nil, nil, fmt.Errorf("pointer families are only synthesized for class types, got %s", elem.Kind)
	}
	strong = t.synthesize(StrongPtr, elem, nil, func() *DataType {
		return &DataType{Kind: StrongPtr, ElemType: elem, Size: wordSize, Align: wordSize,
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset, HasDtor: true}
	})
	weak = t.synthesize(WeakPtr, elem, nil, func() *DataType {
		return &DataType{Kind: WeakPtr, ElemType: elem, Size: wordSize, Align: wordSize,
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset, HasDtor: true}
	})
	raw = t.synthesize(RawPtr, elem, nil, func() *DataType {
		return &DataType{Kind: RawPtr, ElemType: elem, Size: wordSize, Align: wordSize,
			FunCtor: NoOffset, FunDtor: NoOffset, FunAssign: NoOffset, FunCmp: NoOffset, VtblOffset: NoOffset}
	})
	t.mu.Lock()
	strong.Complementary = Complementary{Primary: strong, Secondary: weak, Tertiary: raw}
	weak.Complementary = Complementary{Primary: strong, Secondary: weak, Tertiary: raw}
	raw.Complementary = Complementary{Primary: strong, Secondary: weak, Tertiary: raw}
	t.mu.Unlock()
	return strong, weak, raw, nil
}

// Named returns every name-registered DataType, in no particular order;
// the linker walks these to build the program's class-type descriptors.
func (t *Table) Named() []*DataType {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*DataType, 0, len(t.byName))
	for _, dt := range t.byName {
		out = append(out, dt)
	}
	return out
}

// Stats reports how many distinct DataTypes this Table has interned, for
// diagnostics and tests.
func (t *Table) Stats() (total int, cached int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.nextID), t.cache.Len()
}
