package async

import (
	"fmt"

	"github.com/alanbriolat/video-wall/generic"
)

// Run will run a function in a goroutine, returning its result via a channel. The channel is buffered, so the
// goroutine always exits even if nobody receives the result.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}

// RunResult is like Run, for functions returning (T, error). A panic in f is recovered and delivered as an error.
func RunResult[T any](f func() (T, error)) <-chan generic.Result[T] {
	return Run(func() (res generic.Result[T]) {
		defer func() {
			if r := recover(); r != nil {
				res = generic.Err[T](fmt.Errorf("panic: %v", r))
			}
		}()
		return generic.NewResult(f())
	})
}

// All waits for every channel to deliver a value, returning the values in the same order as the channels.
func All[T any](chans ...<-chan T) []T {
	values := make([]T, len(chans))
	for i, c := range chans {
		values[i] = <-c
	}
	return values
}
