// Package observable provides a value holder that notifies a single
// registered observer whenever the stored value changes.
package observable

import (
	"errors"
	"fmt"
)

var (
	// ErrNoObserver is raised when a value is written before SetObserver.
	ErrNoObserver = errors.New("observer must be set before assigning a value")

	// ErrWrongType is raised when SetAny receives a value of another type.
	ErrWrongType = errors.New("value has the wrong type")
)

// PreconditionViolation is the panic value for contract misuse of a Cell.
type PreconditionViolation struct {
	Cell string
	Err  error
	Msg  string
}

func (p *PreconditionViolation) Error() string {
	if p.Msg == "" {
		return fmt.Sprintf("precondition violated on %q: %v", p.Cell, p.Err)
	}
	return fmt.Sprintf("precondition violated on %q: %v: %s", p.Cell, p.Err, p.Msg)
}

func (p *PreconditionViolation) Unwrap() error {
	return p.Err
}

// Cell holds a comparable value and calls its observer synchronously every
// time Set stores a value different from the previous one. The first Set
// always notifies.
//
// A Cell has a single owner and is not safe for concurrent use.
type Cell[T comparable] struct {
	name     string
	value    T
	previous T
	assigned bool
	observer func(T)
}

// New creates an empty cell. The name only appears in panic messages.
func New[T comparable](name string) *Cell[T] {
	return &Cell[T]{name: name}
}

// NewWithInitial creates a cell whose Get reports initial until the first
// Set. The first Set still notifies, whatever value it stores.
func NewWithInitial[T comparable](name string, initial T) *Cell[T] {
	return &Cell[T]{name: name, value: initial}
}

// SetObserver registers the callback, replacing any earlier one.
func (c *Cell[T]) SetObserver(observer func(T)) {
	c.observer = observer
}

// Set commits value and notifies the observer when it differs from the
// stored value. It panics with *PreconditionViolation when no observer is
// registered, before anything is stored.
func (c *Cell[T]) Set(value T) {
	if c.observer == nil {
		panic(&PreconditionViolation{Cell: c.name, Err: ErrNoObserver})
	}

	changed := !c.assigned || c.value != value
	c.previous, c.value = c.value, value
	c.assigned = true

	if changed {
		c.observer(value)
	}
}

// SetAny is Set for values whose type is only known at runtime. A value that
// is not a T panics with *PreconditionViolation before any mutation.
func (c *Cell[T]) SetAny(value any) {
	typed, ok := value.(T)
	if !ok {
		var zero T
		panic(&PreconditionViolation{
			Cell: c.name,
			Err:  ErrWrongType,
			Msg:  fmt.Sprintf("expecting %T, got %T", zero, value),
		})
	}
	c.Set(typed)
}

// Get returns the current value, or the initial value before the first Set.
func (c *Cell[T]) Get() T {
	return c.value
}

// Previous returns the value replaced by the last Set.
func (c *Cell[T]) Previous() T {
	return c.previous
}

// Assigned reports whether Set has been called at least once.
func (c *Cell[T]) Assigned() bool {
	return c.assigned
}
