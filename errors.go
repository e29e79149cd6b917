package iptable

import "fmt"

// Kind classifies the cause of an Error so callers can test for a
// category without matching on a specific sentinel.
type Kind int

const (
	// KindParse marks a malformed CIDR, unknown family, or mask out of range.
	KindParse Kind = iota
	// KindRange marks key arithmetic wrap (incr/decr past address space).
	KindRange
	// KindState marks an iterator-incompatible mutation request.
	KindState
	// KindAlloc marks a failed allocation; the operation is a no-op.
	KindAlloc
	// KindNotFound marks an absent lookup/delete target.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindRange:
		return "range"
	case KindState:
		return "state"
	case KindAlloc:
		return "alloc"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by this package. Op names the
// failing operation (e.g. "ParseCIDR", "Table.Set") and Err, when set,
// carries the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("iptable: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("iptable: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind, so callers can write
// errors.Is(err, iptable.ErrNotFound) without matching the Op string.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Sentinel errors, each pre-tagged with its Kind so errors.Is(err,
// ErrNotFound) and errors.Is(err, ErrBadIP) both work against values
// returned deeper in the package.
var (
	ErrBadIP         = &Error{Op: "parse", Kind: KindParse}
	ErrMaskRange     = &Error{Op: "parse", Kind: KindParse}
	ErrNotFound      = &Error{Op: "lookup", Kind: KindNotFound}
	ErrNodeBusy      = &Error{Op: "add", Kind: KindState}
	ErrStateConflict = &Error{Op: "delete", Kind: KindState}
	ErrAlloc         = &Error{Op: "alloc", Kind: KindAlloc}
	ErrRangeWrap     = &Error{Op: "arith", Kind: KindRange}
)
