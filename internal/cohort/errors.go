package cohort

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds raised by repository operations
var (
	// ErrInvalidParameter is returned when caller input is missing or malformed
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrTypeNotKnown is returned when a type guid or name does not resolve
	ErrTypeNotKnown = errors.New("type not known")

	// ErrTypeConflict is returned when a type clashes with the registry's copy of the same name
	ErrTypeConflict = errors.New("type conflict")

	// ErrTypeInUse is returned when deleting a type that still has instances
	ErrTypeInUse = errors.New("type in use")

	// ErrTypeNotSupported is returned when a shape, status or category cannot be represented
	ErrTypeNotSupported = errors.New("type not supported")

	// ErrInstanceNotKnown is returned when an instance guid does not resolve
	ErrInstanceNotKnown = errors.New("instance not known")

	// ErrInstanceNotDeleted is returned when purging or restoring an instance that is not deleted
	ErrInstanceNotDeleted = errors.New("instance not deleted")

	// ErrEntityProxyOnly is returned when full detail is requested for a proxy entity
	ErrEntityProxyOnly = errors.New("entity proxy only")

	// ErrClassification is returned for ineligible, missing or duplicate classifications
	ErrClassification = errors.New("classification error")

	// ErrProperty is returned when a property is not declared on a type or cannot be matched
	ErrProperty = errors.New("property error")

	// ErrPaging is returned for invalid offset or page size values
	ErrPaging = errors.New("paging error")

	// ErrNotImplemented is returned by operations deliberately left unimplemented
	ErrNotImplemented = errors.New("not implemented")

	// ErrNotSupported is returned when an operation is disabled by repository configuration
	ErrNotSupported = errors.New("function not supported")

	// ErrRepository is returned when the native store fails
	ErrRepository = errors.New("repository error")
)

// Error is a repository error of a given kind with the operation and identifier it
// relates to
type Error struct {
	Kind error
	Op   string
	ID   string
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.ID != "" {
		fmt.Fprintf(&b, " [%s]", e.ID)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error of the given kind
func Errorf(kind error, op, id, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches operation context to a native store failure. Errors that already carry
// a kind pass through unchanged.
func Wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: ErrRepository, Op: op, ID: id, Err: err}
}

// WrapKind attaches operation context and a specific kind to err
func WrapKind(kind error, op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// KindOf returns the kind sentinel of err, or nil when err carries none. The
// outermost *Error decides when kinds are nested.
func KindOf(err error) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind != nil {
		return ce.Kind
	}
	for _, kind := range []error{
		ErrInvalidParameter, ErrTypeNotKnown, ErrTypeConflict, ErrTypeInUse,
		ErrTypeNotSupported, ErrInstanceNotKnown, ErrInstanceNotDeleted,
		ErrEntityProxyOnly, ErrClassification, ErrProperty, ErrPaging,
		ErrNotImplemented, ErrNotSupported, ErrRepository,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsInvalidParameter returns true if err is ErrInvalidParameter
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsTypeNotKnown returns true if err is ErrTypeNotKnown
func IsTypeNotKnown(err error) bool {
	return errors.Is(err, ErrTypeNotKnown)
}

// IsTypeConflict returns true if err is ErrTypeConflict
func IsTypeConflict(err error) bool {
	return errors.Is(err, ErrTypeConflict)
}

// IsInstanceNotKnown returns true if err is ErrInstanceNotKnown
func IsInstanceNotKnown(err error) bool {
	return errors.Is(err, ErrInstanceNotKnown)
}

// IsNotImplemented returns true if err is ErrNotImplemented
func IsNotImplemented(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}
