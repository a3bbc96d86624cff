package generic

import "fmt"

// Result carries a (T, error) pair across a channel.
type Result[T any] struct {
	Value T
	Error error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

func (r Result[T]) IsErr() bool {
	return r.Error != nil
}

func (r Result[T]) IsOk() bool {
	return r.Error == nil
}

func (r Result[T]) Parts() (T, error) {
	return r.Value, r.Error
}

// Unwrap panics if err is non-nil. Only for values that cannot fail outside of programmer error, e.g. built-in
// URL templates.
func Unwrap[T any](value T, err error) T {
	if err != nil {
		panic(fmt.Errorf("unwrap: %w", err))
	}
	return value
}
