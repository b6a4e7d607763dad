package adapter

import (
	"errors"
	"fmt"
)

// Kind classifies sync failures.
type Kind int

const (
	// KindArgument covers malformed connection parameters and a requested
	// database that the catalog does not know.
	KindArgument Kind = iota + 1
	// KindQuery covers any failure reported by the query executor.
	KindQuery
	// KindUnrecognizedData covers catalog values outside the understood set.
	KindUnrecognizedData
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindQuery:
		return "query"
	case KindUnrecognizedData:
		return "unrecognized data"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrArgument         = errors.New("invalid argument")
	ErrQuery            = errors.New("query failed")
	ErrUnrecognizedData = errors.New("unrecognized catalog data")
)

// Error is the error type returned by every sync operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrArgument:
		return e.Kind == KindArgument
	case ErrQuery:
		return e.Kind == KindQuery
	case ErrUnrecognizedData:
		return e.Kind == KindUnrecognizedData
	}
	return false
}

// ArgumentError reports malformed input or a missing database.
func ArgumentError(op, format string, args ...any) error {
	return &Error{Kind: KindArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// QueryError wraps a failure from the query executor. A nil err yields nil.
func QueryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindQuery, Op: op, Err: err}
}

// UnrecognizedDataError reports a catalog value the driver does not understand.
func UnrecognizedDataError(op, format string, args ...any) error {
	return &Error{Kind: KindUnrecognizedData, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
