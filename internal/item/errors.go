package item

import (
	"errors"
	"fmt"
)

// Sentinel errors for item mutation and traversal.
var (
	// ErrInvalidParent indicates a parent assignment was rejected.
	ErrInvalidParent = errors.New("invalid parent")
	// ErrCycle indicates the parent graph contains, or would contain, a cycle.
	ErrCycle = errors.New("cycle detected")
	// ErrTypeValidation indicates a value of the wrong shape for its field.
	ErrTypeValidation = errors.New("invalid value type")
	// ErrUnknownField indicates a field name the item's family does not carry.
	ErrUnknownField = errors.New("unknown field")
	// ErrImmutable indicates an attempt to change a write-once field.
	ErrImmutable = errors.New("field is immutable")
	// ErrReferenceNotFound indicates a reference field naming a missing item.
	ErrReferenceNotFound = errors.New("referenced item not found")
)

// ResolutionError reports an inherited field that nothing up the chain defines.
type ResolutionError struct {
	Family Family
	Name   string
	Field  Field
}

// Error names the item and the field it failed to inherit.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %q inherits property %q, but neither its parent nor settings have it",
		e.Family, e.Name, e.Field)
}

// ParentError reports a rejected parent assignment. It matches
// ErrInvalidParent and, for cycles, ErrCycle.
type ParentError struct {
	Family Family
	Item   string
	Parent string
	Reason string
	Err    error
}

// Error describes the rejected assignment.
func (e *ParentError) Error() string {
	return fmt.Sprintf("%s %q: cannot set parent %q: %s", e.Family, e.Item, e.Parent, e.Reason)
}

// Unwrap exposes ErrInvalidParent and the underlying cause.
func (e *ParentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidParent, e.Err}
	}
	return []error{ErrInvalidParent}
}

// ValueError reports a value that could not be stored in a field, either
// because of its type or because conversion failed.
type ValueError struct {
	Field   Field
	Value   any
	Message string
	Err     error
}

// Error returns the field-specific message and its cause.
func (e *ValueError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("invalid value for %s", e.Field)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ValueError) Unwrap() error {
	return e.Err
}

func typeError(field Field, value any, want string) error {
	return &ValueError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("field %s needs to be of type %s", field, want),
		Err:     fmt.Errorf("%w: got %T", ErrTypeValidation, value),
	}
}
