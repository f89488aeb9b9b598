// Package hostabi models the embedding boundary: a host process binds
// native structs and functions into a compilation
// before Resolve/TypeGen run, so script code can reference them by
// qualified name.
package hostabi

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// NativeFunc is a host-supplied function callable from script, keyed by
// its fully qualified name (e.g. "vec::dot").
type NativeFunc struct {
	Name       string
	ParamSizes []int // bytes, in declaration order, for Stack/ArgParser access
	ReturnSize int
}

// NativeStruct is a host-supplied composite type's layout, bound before
// any script source referencing it is resolved.
type NativeStruct struct {
	Name  string
	Size  int
	Align int
}

// NativeBinder is the interface compiler.Engine accepts for the host
// ABI boundary. A real VM host implements this once; the compiler only
// needs to query it
// during Resolve/TypeGen/CodeGen to recognize a native declaration's
// member list and treat it as already-laid-out (native and script
// members never mix in one aggregate).
type NativeBinder interface {
	LookupStruct(qualifiedName string) (NativeStruct, bool)
	LookupFunction(qualifiedName string) (NativeFunc, bool)
}

// Registry is the straightforward in-memory NativeBinder a host process
// builds up with BindNativeStruct/BindNativeFunction calls before handing
// it to compiler.New, mirroring the sample harness's Engine methods.
// Lookups are case-folded (golang.org/x/text/cases) because the host ABI
// treats a qualified name's casing as non-significant, unlike script-level
// identifiers.
type Registry struct {
	structs   map[string]NativeStruct
	functions map[string]NativeFunc
	fold      cases.Caser
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		structs:   make(map[string]NativeStruct),
		functions: make(map[string]NativeFunc),
		fold:      cases.Fold(),
	}
}

func (r *Registry) key(name string) string { return r.fold.String(strings.TrimSpace(name)) }

// BindNativeStruct registers a host-owned composite type's layout.
func (r *Registry) BindNativeStruct(name string, size, align int) error {
	if size <= 0 || align <= 0 {
		return fmt.Errorf("hostabi: invalid native struct layout for %q: size=%d align=%d", name, size, align)
	}
	r.structs[r.key(name)] = NativeStruct{Name: name, Size: size, Align: align}
	return nil
}

// BindNativeFunction registers a host-owned callable's signature.
func (r *Registry) BindNativeFunction(qualifiedName string, paramSizes []int, returnSize int) error {
	if qualifiedName == "" {
		return fmt.Errorf("hostabi: native function name must not be empty")
	}
	r.functions[r.key(qualifiedName)] = NativeFunc{
		Name: qualifiedName, ParamSizes: append([]int(nil), paramSizes...), ReturnSize: returnSize,
	}
	return nil
}

// LookupStruct implements NativeBinder.
func (r *Registry) LookupStruct(qualifiedName string) (NativeStruct, bool) {
	s, ok := r.structs[r.key(qualifiedName)]
	return s, ok
}

// LookupFunction implements NativeBinder.
func (r *Registry) LookupFunction(qualifiedName string) (NativeFunc, bool) {
	f, ok := r.functions[r.key(qualifiedName)]
	return f, ok
}
