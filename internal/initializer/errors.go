package initializer

import "fmt"

// ErrorCode names one of the ways a method body can fail to initialize,
// matching the taxonomy the method initializer in the source raises as
// distinctly-named C++ exceptions.
type ErrorCode int

const (
	ErrInconsistentStack ErrorCode = iota
	ErrInvalidBranchOffset
	ErrInsufficientStackHeight
	ErrStackHasRefs
	ErrInaccessibleMember
	ErrFieldStaticMismatch
	ErrUnresolvedTokenID
	ErrNoMatchingOverload
	ErrInaccessibleType
	ErrTypeNotConstructible
)

var errorCodeNames = [...]string{
	"INCONSISTENT_STACK",
	"INVALID_BRANCH_OFFSET",
	"INSUFFICIENT_STACK_HEIGHT",
	"STACK_HAS_REFS",
	"INACCESSIBLE_MEMBER",
	"FIELD_STATIC_MISMATCH",
	"UNRESOLVED_TOKEN_ID",
	"NO_MATCHING_OVERLOAD",
	"INACCESSIBLE_TYPE",
	"TYPE_NOT_CONSTRUCTIBLE",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return "UNKNOWN"
}

// FatalError reports a method body that cannot be initialized: the
// module that declared it is malformed, or the compiler that produced
// it has a bug, either way nothing short of fixing the input will make
// this method runnable. MethodInitException in the source plays the
// same role.
type FatalError struct {
	Code      ErrorCode
	Message   string
	MethodName string
	Offset    int
}

func (e *FatalError) Error() string {
	if e.MethodName != "" {
		return fmt.Sprintf("initializer: %s in %s at offset %d: %s", e.Code, e.MethodName, e.Offset, e.Message)
	}
	return fmt.Sprintf("initializer: %s: %s", e.Code, e.Message)
}

func fatal(code ErrorCode, offset int, format string, args ...interface{}) *FatalError {
	return &FatalError{Code: code, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
