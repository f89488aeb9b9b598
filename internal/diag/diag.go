// Package diag implements error/warning propagation: every codegen and
// typegen function returns a success/failure signal, and a single pass
// may report more than one independent error before the pass (not the
// expression) aborts.
package diag

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Location mirrors the host API's token_location:
// {file, line, column}.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Severity distinguishes a fatal compile error from a non-fatal
// warning.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Kind names one of the distinguished error/warning kinds the compiler reports.
// It carries no behavior; it exists so tests and the host callback can
// switch on a stable identifier instead of matching message substrings.
type Kind string

const (
	KindUnknownSymbol           Kind = "unknown-symbol"
	KindAmbiguousCall           Kind = "ambiguous-call"
	KindRecursiveType           Kind = "recursive-type"
	KindRecursiveAuto           Kind = "recursive-auto"
	KindArgCountMismatch        Kind = "argument-count-mismatch"
	KindFormatMismatch          Kind = "format-string-mismatch"
	KindUnresolvedForwardRef    Kind = "unresolved-forward-reference"
	KindIncompatibleTypes       Kind = "incompatible-types"
	KindCannotConvertConstant   Kind = "cannot-convert-constant"
	KindCannotModifyConstant    Kind = "cannot-modify-constant"
	KindCannotPassNonConstRef   Kind = "cannot-pass-by-non-const-reference"
	KindRefTypeMismatch         Kind = "reference-type-mismatch"
	KindVirtualSignatureMismatch Kind = "virtual-signature-mismatch"
	KindOverrideWithoutBase     Kind = "override-without-base"
	KindConstStaticExclusion    Kind = "const-static-mutual-exclusion"
	KindInvalidStateClassMod    Kind = "invalid-state-class-modification"
	KindInvalidLatentSignature  Kind = "invalid-latent-signature"
	KindInvalidTypeSize         Kind = "invalid-type-size"
	KindVariableTooLarge        Kind = "variable-too-large"
	KindTooManyGlobals          Kind = "too-many-globals"
	KindNativeLayoutMismatch    Kind = "native-layout-mismatch"
	KindClassAlignmentTooLarge  Kind = "class-alignment-too-large"
	KindNotAllPathsReturn       Kind = "not-all-paths-return-a-value"
	KindStateBreakInDeferred    Kind = "state-break-in-deferred-code"
	KindIllegalExpression       Kind = "illegal-expression-construct"

	KindUnreachableCode       Kind = "unreachable-code"
	KindUnreferencedLocal     Kind = "unreferenced-local"
	KindUnreferencedGlobal    Kind = "unreferenced-global"
	KindPrecisionLoss         Kind = "precision-loss-on-conversion"
	KindMissingOverride       Kind = "missing-override"
	KindDeprecatedCall        Kind = "deprecated-call"
	KindNoCopyNoInitMisuse    Kind = "nocopy-noinit-misuse"
	KindNoInitIgnoredSmall    Kind = "noinit-ignored-for-small-type"
	KindInlineIgnoredVirtual  Kind = "inline-ignored-for-virtual"
	KindPrivateProtectedInherit Kind = "private-protected-inheritance"
)

// Diagnostic is one error or warning produced during compilation.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Message  string
	Loc      Location
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s [%s]", d.Loc, d.Message, d.Kind)
}

// Callback matches the host API error/warning callback signature:
// (message, token_location).
type Callback func(d Diagnostic)

// Sink accumulates diagnostics for a single pass. Multiple independent
// errors from one DFS pass are kept (via multierr) instead of aborting on
// the first; the pass driver decides, after the full DFS, whether to stop
// (compilation aborts at the end of the
// pass, not mid-expression).
type Sink struct {
	log      *zap.SugaredLogger
	cb       Callback
	errs     error
	warnings []Diagnostic
}

// NewSink creates a Sink. log and cb may be nil (a nil logger/callback is a
// no-op).
func NewSink(log *zap.SugaredLogger, cb Callback) *Sink {
	return &Sink{log: log, cb: cb}
}

// Error records a fatal diagnostic. The pass should keep visiting sibling
// nodes but must not proceed past the current pass once
// HasErrors is true.
func (s *Sink) Error(kind Kind, loc Location, format string, args ...interface{}) {
	d := Diagnostic{Kind: kind, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Loc: loc}
	s.errs = multierr.Append(s.errs, d)
	if s.log != nil {
		s.log.Errorw(d.Message, "kind", kind, "loc", loc.String())
	}
	if s.cb != nil {
		s.cb(d)
	}
}

// Warn records a non-fatal diagnostic; it never contributes to HasErrors.
func (s *Sink) Warn(kind Kind, loc Location, format string, args ...interface{}) {
	d := Diagnostic{Kind: kind, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Loc: loc}
	s.warnings = append(s.warnings, d)
	if s.log != nil {
		s.log.Warnw(d.Message, "kind", kind, "loc", loc.String())
	}
	if s.cb != nil {
		s.cb(d)
	}
}

// HasErrors reports whether any Error call has been made on s.
func (s *Sink) HasErrors() bool { return s.errs != nil }

// Err returns the accumulated errors as a single multierr-joined error, or
// nil if there were none.
func (s *Sink) Err() error { return s.errs }

// Warnings returns every warning recorded so far.
func (s *Sink) Warnings() []Diagnostic { return s.warnings }

// Reset clears accumulated errors and warnings, for reuse across passes
// within the same compilation.
func (s *Sink) Reset() {
	s.errs = nil
	s.warnings = nil
}
