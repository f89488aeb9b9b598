// Package compiler is the embedding surface of the Lethe front-end: an
// Engine accumulates compilation units and native bindings, Link drives
// the Resolve -> FoldConst -> TypeGen -> CodeGen pipeline over them, and
// a Context gives the host a calling convention into the linked image.
package compiler

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/buildcache"
	"github.com/lethe-lang/lethe/internal/codegen"
	"github.com/lethe-lang/lethe/internal/constfold"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/hostabi"
	"github.com/lethe-lang/lethe/internal/resolver"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/typegen"
	"github.com/lethe-lang/lethe/internal/types"
)

// initialized is the process-wide lifecycle flag Init/Done flip. The
// registries the original kept as global singletons (opcode names, type
// enums, synthetic ADL scope names) are immutable package data in Go, so
// the only state the lifecycle actually guards is this flag; it exists
// so hosts port over without relearning the boundary.
var initialized atomic.Bool

// Init prepares process-wide state. Must be called once before the first
// New; calling it twice is an error, matching the host API contract.
func Init() error {
	if !initialized.CompareAndSwap(false, true) {
		return fmt.Errorf("compiler: Init called twice without Done")
	}
	return nil
}

// Done tears down process-wide state established by Init.
func Done() error {
	if !initialized.CompareAndSwap(true, false) {
		return fmt.Errorf("compiler: Done called without Init")
	}
	return nil
}

// Options contains all the parameters that affect the behaviour of the
// compiler.
type Options struct {
	// WordSize is the VM's native stack unit in bytes.
	WordSize int

	// BigEndian marks a big-endian compilation target, enabling the
	// small-integer byte-order adjustment before native calls.
	BigEndian bool

	// MaxInlineDepth/MaxInlineOpcodes are set to 10 and 256 when zero.
	// They are not passed to codegen, which applies its own fixed inline
	// limits of the same values whatever these fields hold.
	MaxInlineDepth   int
	MaxInlineOpcodes int

	// WarningsAsErrors promotes every warning to a compilation failure.
	WarningsAsErrors bool

	// CachePath, when non-empty, enables the incremental-compile cache
	// at that file path.
	CachePath string

	// EmitDebugInfo controls whether a sequence-point table is built
	// alongside the bytecode.
	EmitDebugInfo bool
}

// defaults fills zero-valued fields in place.
func (o *Options) defaults() {
	if o.WordSize == 0 {
		o.WordSize = 8
	}
	if o.MaxInlineDepth == 0 {
		o.MaxInlineDepth = 10
	}
	if o.MaxInlineOpcodes == 0 {
		o.MaxInlineOpcodes = 256
	}
}

// ParseFunc turns one source buffer into this module's AST. The tokenizer
// and grammar live outside the core; hosts typically wrap the
// astbuild/treesitter adapter, and tests hand-build nodes.
type ParseFunc func(source []byte, name string) (*ast.Node, error)

// unit is one CompileBuffer result awaiting Link.
type unit struct {
	name   string
	source []byte
	root   *ast.Node
}

// Engine accumulates compilation units and native bindings, then links
// them into a Program.
type Engine struct {
	opts Options
	log  *zap.SugaredLogger

	parse   ParseFunc
	natives *hostabi.Registry

	diagCB diag.Callback
	diags  *diag.Sink

	units  []*unit
	linked *Program

	metrics *Metrics
}

// New creates an Engine. log may be nil. Init must have been called.
func New(opts Options, log *zap.Logger) (*Engine, error) {
	if !initialized.Load() {
		return nil, fmt.Errorf("compiler: New before Init")
	}
	opts.defaults()
	var sugar *zap.SugaredLogger
	if log != nil {
		sugar = log.Sugar()
	}
	e := &Engine{
		opts:    opts,
		log:     sugar,
		natives: hostabi.NewRegistry(),
	}
	e.diags = diag.NewSink(sugar, func(d diag.Diagnostic) {
		if e.metrics != nil {
			e.metrics.Diagnostic(d)
		}
		if e.diagCB != nil {
			e.diagCB(d)
		}
	})
	return e, nil
}

// SetParser installs the source-to-AST front end CompileBuffer uses.
func (e *Engine) SetParser(p ParseFunc) { e.parse = p }

// SetDiagnosticCallback installs the host's error/warning callback
// (message plus token location, per the host ABI).
func (e *Engine) SetDiagnosticCallback(cb diag.Callback) { e.diagCB = cb }

// SetMetrics attaches a Metrics collector; nil disables collection.
func (e *Engine) SetMetrics(m *Metrics) { e.metrics = m }

// Natives exposes the engine's native-binding registry; hosts call
// BindNativeStruct/BindNativeFunction on it before Link.
func (e *Engine) Natives() *hostabi.Registry { return e.natives }

// BindNativeStruct registers a host-owned composite type's layout,
// validated against the script declaration during TypeGen.
func (e *Engine) BindNativeStruct(name string, size, align int) error {
	return e.natives.BindNativeStruct(name, size, align)
}

// BindNativeFunction registers a host-owned callable by qualified name.
func (e *Engine) BindNativeFunction(qualifiedName string, paramSizes []int, returnSize int) error {
	return e.natives.BindNativeFunction(qualifiedName, paramSizes, returnSize)
}

// CompileBuffer parses source into a unit queued for Link. The name tags
// diagnostics and debug info.
func (e *Engine) CompileBuffer(source []byte, name string) error {
	if e.parse == nil {
		return fmt.Errorf("compiler: no parser installed (SetParser)")
	}
	root, err := e.parse(source, name)
	if err != nil {
		return fmt.Errorf("compiler: parse %s: %w", name, err)
	}
	return e.CompileAST(root, name, source)
}

// CompileAST queues an already-built AST as a compilation unit. source
// may be nil; it is only used for the incremental-compile cache key.
func (e *Engine) CompileAST(root *ast.Node, name string, source []byte) error {
	if root == nil || root.Kind != ast.KProgram {
		return fmt.Errorf("compiler: unit %s: root must be a program node", name)
	}
	if e.linked != nil {
		return fmt.Errorf("compiler: engine already linked")
	}
	e.units = append(e.units, &unit{name: name, source: source, root: root})
	return nil
}

// Link resolves, folds, lays out and code-generates every queued unit
// into one Program. A failed pass reports every diagnostic it gathered
// before Link returns; compilation aborts at pass boundaries, not
// mid-expression.
func (e *Engine) Link() (*Program, error) {
	if e.linked != nil {
		return e.linked, nil
	}
	if len(e.units) == 0 {
		return nil, fmt.Errorf("compiler: nothing to link")
	}

	if prog, ok := e.cachedProgram(); ok {
		e.linked = prog
		return prog, nil
	}

	table := types.NewTable()
	global := scope.New(scope.KindGlobal)
	res := resolver.New(table, global, e.diags, e.log)

	// Composite DataTypes are declared (not laid out) before resolution
	// so type-name references to user structs/classes can settle.
	for _, u := range e.units {
		if err := e.declareComposites(table, u.root); err != nil {
			return nil, err
		}
	}

	stop := e.startPass("resolve")
	for _, u := range e.units {
		if err := res.BuildScopes(u.root); err != nil {
			stop()
			return nil, err
		}
	}
	for _, u := range e.units {
		if _, err := res.Run(u.root); err != nil {
			stop()
			return nil, err
		}
	}
	stop()

	stop = e.startPass("fold")
	folder := constfold.New(table, e.diags)
	for _, u := range e.units {
		for folder.Fold(u.root) > 0 {
		}
	}
	stop()

	stop = e.startPass("typegen")
	tg := typegen.New(table, e.diags, e.opts.WordSize)
	for _, u := range e.units {
		if err := e.runTypeGen(tg, table, u.root); err != nil {
			stop()
			return nil, err
		}
	}
	for _, u := range e.units {
		if err := tg.PropagateThreadSafety(u.root); err != nil {
			stop()
			return nil, err
		}
	}
	stop()
	if e.diags.HasErrors() {
		return nil, e.diags.Err()
	}

	stop = e.startPass("codegen")
	cg := codegen.New(table, e.diags, e.log, e.opts.WordSize)
	cg.SetBigEndian(e.opts.BigEndian)
	for _, u := range e.units {
		if err := cg.CodegenProgram(u.root); err != nil {
			stop()
			return nil, err
		}
	}
	stop()
	if e.diags.HasErrors() {
		return nil, e.diags.Err()
	}
	if e.opts.WarningsAsErrors && len(e.diags.Warnings()) > 0 {
		return nil, fmt.Errorf("compiler: %d warnings with warnings-as-errors enabled", len(e.diags.Warnings()))
	}

	prog := e.assemble(table, cg)
	e.linked = prog
	e.storeCached(prog)
	if e.metrics != nil {
		e.metrics.CompileDone(len(e.units))
	}
	return prog, nil
}

// declareComposites registers every struct/class declaration's canonical
// DataType, without layout. Native declarations pick up the host-bound
// size/align immediately so a script member of native type lays out
// correctly later.
func (e *Engine) declareComposites(table *types.Table, root *ast.Node) error {
	var firstErr error
	ast.Walk(root, func(n *ast.Node) bool {
		if firstErr != nil {
			return false
		}
		if n.Kind != ast.KStructDecl && n.Kind != ast.KClassDecl {
			return true
		}
		cd := n.Extra.(*ast.CompositeDecl)
		if cd.Resolved != nil {
			return true
		}
		dt, err := table.DeclareStruct(cd.Name, n.Kind == ast.KClassDecl)
		if err != nil {
			firstErr = err
			return false
		}
		if cd.IsNative {
			if ns, ok := e.natives.LookupStruct(cd.Name); ok {
				dt.Size, dt.Align = ns.Size, ns.Align
			}
		}
		cd.Resolved = dt
		return true
	})
	return firstErr
}

// runTypeGen lays out every composite declared in root, deferring
// derived classes until their base is finalized, then synthesizes
// vtables, pointer families and inherited state classes.
func (e *Engine) runTypeGen(tg *typegen.Gen, table *types.Table, root *ast.Node) error {
	var pending []*ast.Node
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Kind == ast.KStructDecl || n.Kind == ast.KClassDecl {
			pending = append(pending, n)
		}
		return true
	})

	// Bases first: iterate until every composite is laid out or no
	// progress is possible (a cycle, reported as a recursive type).
	remaining := pending
	for len(remaining) > 0 {
		var next []*ast.Node
		progressed := false
		for _, decl := range remaining {
			cd := decl.Extra.(*ast.CompositeDecl)
			if cd.BaseName != "" {
				base := table.Lookup(cd.BaseName)
				if base == nil || !base.IsFinalized() {
					next = append(next, decl)
					continue
				}
			}
			declScope := e.compositeScope(decl)
			if err := tg.LayoutComposite(decl, declScope); err != nil {
				return err
			}
			if err := tg.BuildVtable(decl); err != nil {
				return err
			}
			if decl.Kind == ast.KClassDecl {
				if _, _, _, err := tg.SynthesizePointers(cd.Resolved); err != nil {
					return err
				}
			}
			progressed = true
		}
		if !progressed {
			first := remaining[0].Extra.(*ast.CompositeDecl)
			e.diags.Error(diag.KindRecursiveType, remaining[0].Loc, "recursive type %q", first.Name)
			return e.diags.Err()
		}
		remaining = next
	}

	for _, decl := range pending {
		cd := decl.Extra.(*ast.CompositeDecl)
		if cd.Resolved.BaseType == nil {
			continue
		}
		if baseDecl := findCompositeDecl(root, cd.BaseName); baseDecl != nil {
			if err := tg.SynthesizeStateInheritance(decl, baseDecl); err != nil {
				return err
			}
		}
	}
	return nil
}

func findCompositeDecl(root *ast.Node, name string) *ast.Node {
	return ast.Find(root, func(n *ast.Node) bool {
		if n.Kind != ast.KStructDecl && n.Kind != ast.KClassDecl {
			return false
		}
		cd, ok := n.Extra.(*ast.CompositeDecl)
		return ok && cd.Name == name
	})
}

// compositeScope recovers the named scope BuildScopes created for decl.
func (e *Engine) compositeScope(decl *ast.Node) *scope.Scope {
	cd := decl.Extra.(*ast.CompositeDecl)
	parent, ok := decl.ScopeRef.(*scope.Scope)
	if !ok || parent == nil {
		return nil
	}
	return parent.NamedScopes()[cd.Name]
}

// startPass logs a pass boundary and returns its completion hook.
func (e *Engine) startPass(name string) func() {
	if e.log != nil {
		e.log.Debugw("pass start", "pass", name)
	}
	var stopTimer func()
	if e.metrics != nil {
		stopTimer = e.metrics.PassTimer(name)
	}
	return func() {
		if stopTimer != nil {
			stopTimer()
		}
		if e.log != nil {
			e.log.Debugw("pass done", "pass", name, "errors", e.diags.HasErrors())
		}
	}
}

// cachedProgram consults the incremental-compile cache for a previous
// link of byte-identical sources.
func (e *Engine) cachedProgram() (*Program, bool) {
	if e.opts.CachePath == "" {
		return nil, false
	}
	cache, err := buildcache.Open(e.opts.CachePath)
	if err != nil {
		return nil, false
	}
	defer cache.Close()
	data, ok := cache.Get(e.cacheKey())
	if !ok {
		return nil, false
	}
	prog, err := UnmarshalProgram(data)
	if err != nil {
		_ = cache.Delete(e.cacheKey())
		return nil, false
	}
	return prog, true
}

func (e *Engine) storeCached(prog *Program) {
	if e.opts.CachePath == "" {
		return
	}
	cache, err := buildcache.Open(e.opts.CachePath)
	if err != nil {
		return
	}
	defer cache.Close()
	data, err := prog.Marshal()
	if err != nil {
		return
	}
	_ = cache.Put(e.cacheKey(), data)
}

func (e *Engine) cacheKey() buildcache.Key {
	var all []byte
	for _, u := range e.units {
		all = append(all, u.source...)
		all = append(all, 0)
		all = append(all, u.name...)
		all = append(all, 0)
	}
	return buildcache.Digest(all)
}

// CreateContext creates an execution context over the linked program.
func (e *Engine) CreateContext() (*Context, error) {
	if e.linked == nil {
		return nil, fmt.Errorf("compiler: CreateContext before Link")
	}
	return newContext(e.linked, e.opts.WordSize, e.log), nil
}
