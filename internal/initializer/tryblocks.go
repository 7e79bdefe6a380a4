package initializer

// TryBlockKind distinguishes a try/catch region from a try/finally
// region, mirroring value.TryBlockKind — initializer cannot import
// value (value imports initializer, for Overload.Code), so the two
// enums are kept in sync by hand rather than shared.
type TryBlockKind uint8

const (
	TryCatch TryBlockKind = iota
	TryFinally
)

// RawCatchClause is a catch clause as declared against raw byte
// offsets and a type token, before the removal pass has rewritten
// offsets into instruction indices and before the token has been
// resolved against a module's type table.
type RawCatchClause struct {
	CaughtType uint32 // type token, resolved by the caller of Initialize
	HandlerIP  int    // byte offset of the handler's first instruction
}

// RawTryBlock is a try-block entry exactly as a module declares it:
// byte offsets into the method's raw body, a catch-type token rather
// than a resolved *value.Type. Initialize validates and remaps these
// offsets through decoding and peephole rewriting; resolving the type
// tokens themselves is left to a caller that can see the module (value
// and obinary, not initializer).
type RawTryBlock struct {
	TryStart     int
	TryEnd       int
	Kind         TryBlockKind
	Catches      []RawCatchClause
	FinallyStart int
	FinallyEnd   int
}

// ResolvedCatch is a catch clause after Initialize has rewritten its
// handler offset into an index in IntermediateMethod.Code.
type ResolvedCatch struct {
	CaughtType uint32
	HandlerIP  int
}

// ResolvedTryBlock is a try-block entry after Initialize has rewritten
// every offset it carries into an index in IntermediateMethod.Code.
// Converting CaughtType tokens into *value.Type still belongs to the
// caller; ResolvedTryBlock only fixes up instruction addressing.
type ResolvedTryBlock struct {
	TryStart     int
	TryEnd       int
	Kind         TryBlockKind
	Catches      []ResolvedCatch
	FinallyStart int
	FinallyEnd   int
}
