package fetch

import "errors"

// ErrEmptyResult is reported by the zero Result, which carries neither variant.
var ErrEmptyResult = errors.New("fetch: empty result")

// Result holds exactly one of a success value or an error. Build it with
// Success or Failure; the zero value is never delivered.
type Result[T any] struct {
	value T
	err   *Error
	ok    bool
}

// Success wraps a decoded value.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failure wraps err. It panics on a nil error.
func Failure[T any](err *Error) Result[T] {
	if err == nil {
		panic("fetch: Failure called with nil error")
	}
	return Result[T]{err: err}
}

// IsSuccess reports whether r holds a value.
func (r Result[T]) IsSuccess() bool { return r.ok }

// Value returns the success value.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Err returns the failure, nil for a success.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	if r.err == nil {
		return ErrEmptyResult
	}
	return r.err
}

// Failed returns the typed failure.
func (r Result[T]) Failed() (*Error, bool) {
	if r.ok || r.err == nil {
		return nil, false
	}
	return r.err, true
}

// Get returns the value and error in the usual Go pair form.
func (r Result[T]) Get() (T, error) {
	if r.ok {
		return r.value, nil
	}
	var zero T
	return zero, r.Err()
}
