// Package lpc stands for "Local Procedure Call". It's a typed RPC-like mechanism implemented over Go channels, used to
// hand work to a long-running owner goroutine and wait for its answer.
package lpc

import (
	"context"
	"errors"

	"github.com/alanbriolat/video-wall/generic"
	"github.com/alanbriolat/video-wall/internal/sync_"
)

var (
	ErrClosed     = errors.New("command response already sent")
	ErrNoResponse = errors.New("no response")
)

type Command[Arg any, Response any] struct {
	arg      Arg
	response generic.Result[Response]
	done     sync_.Event
}

// New creates a Command carrying arg. Until a response is sent, Wait reports ErrNoResponse if the command is closed.
func New[Arg any, Response any](arg Arg) *Command[Arg, Response] {
	return &Command[Arg, Response]{
		arg:      arg,
		response: generic.Err[Response](ErrNoResponse),
	}
}

func (c *Command[Arg, Response]) Arg() Arg {
	return c.arg
}

func (c *Command[Arg, Response]) Respond(response Response) error {
	if c.done.IsSet() {
		return ErrClosed
	}
	c.response = generic.Ok(response)
	c.Close()
	return nil
}

func (c *Command[Arg, Response]) RespondError(err error) error {
	if c.done.IsSet() {
		return ErrClosed
	}
	c.response = generic.Err[Response](err)
	c.Close()
	return nil
}

// Wait blocks until the command is answered or closed.
func (c *Command[Arg, Response]) Wait() (Response, error) {
	<-c.done.Wait()
	return c.response.Parts()
}

// WaitContext is like Wait, but gives up when ctx is done.
func (c *Command[Arg, Response]) WaitContext(ctx context.Context) (Response, error) {
	select {
	case <-c.done.Wait():
		return c.response.Parts()
	case <-ctx.Done():
		var zero Response
		return zero, ctx.Err()
	}
}

func (c *Command[Arg, Response]) Close() {
	c.done.Set()
}

// Submit sends the command to the owner's queue and waits for the response. If stopped closes first, ErrNoResponse is
// returned without the command being delivered.
func Submit[Arg any, Response any](queue chan<- *Command[Arg, Response], stopped <-chan struct{}, arg Arg) (Response, error) {
	c := New[Arg, Response](arg)
	select {
	case queue <- c:
	case <-stopped:
		c.Close()
	}
	return c.Wait()
}
