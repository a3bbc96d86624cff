package lpc

import (
	"context"
	"errors"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

type ExampleCommand = Command[int, int]

func TestCommand_Close(t *testing.T) {
	assert := assert_.New(t)

	// If command is prematurely closed, then the response is an error
	c := New[int, int](1)
	c.Close()
	_, err := c.Wait()
	assert.ErrorIs(err, ErrNoResponse)
}

func TestCommand_Respond(t *testing.T) {
	assert := assert_.New(t)
	exampleError := errors.New("example error")

	a := New[int, int](1)
	// First response gets sent
	assert.Nil(a.Respond(3))
	v, err := a.Wait()
	assert.Nil(err)
	assert.Equal(3, v)
	// Any further attempts to respond will fail
	assert.ErrorIs(a.Respond(4), ErrClosed)
	assert.ErrorIs(a.RespondError(exampleError), ErrClosed)

	b := New[int, int](1)
	assert.Nil(b.RespondError(exampleError))
	_, err = b.Wait()
	assert.ErrorIs(err, exampleError)
}

func TestCommand_WaitContext(t *testing.T) {
	assert := assert_.New(t)
	c := New[int, int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.WaitContext(ctx)
	assert.ErrorIs(err, context.DeadlineExceeded)
}

func TestSubmit(t *testing.T) {
	assert := assert_.New(t)
	queue := make(chan *ExampleCommand)
	stopped := make(chan struct{})
	go func() {
		for c := range queue {
			_ = c.Respond(c.Arg() * 2)
		}
	}()
	v, err := Submit(queue, stopped, 21)
	assert.Nil(err)
	assert.Equal(42, v)
	close(queue)

	// Once the owner has stopped, submitting fails rather than blocking
	close(stopped)
	_, err = Submit(make(chan *ExampleCommand), stopped, 1)
	assert.ErrorIs(err, ErrNoResponse)
}

func BenchmarkCommand_New_Respond_Wait(b *testing.B) {
	commands := make(chan *ExampleCommand, 1)
	go func() {
		for c := range commands {
			_ = c.Respond(c.Arg())
		}
	}()
	for i := 0; i < b.N; i++ {
		c := New[int, int](i)
		commands <- c
		_, _ = c.Wait()
	}
	close(commands)
}
