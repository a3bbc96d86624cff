package pubsub

import (
	"sync"
	"sync/atomic"
)

type Sender[T any] interface {
	Send(T) bool
}

type Receiver[T any] interface {
	Receive() <-chan T
}

type Closer interface {
	Close()
	// Closed returns a channel that is closed once Close has been called.
	Closed() <-chan struct{}
}

type SenderCloser[T any] interface {
	Sender[T]
	Closer
}

type ReceiverCloser[T any] interface {
	Receiver[T]
	Closer
}

type Channel[T any] interface {
	Sender[T]
	Receiver[T]
	Closer
}

// channel wraps a primitive `chan` in some concurrency-safe state management.
type channel[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	done    chan struct{}
	closed  bool
	waiting sync.WaitGroup
}

// NewChannel creates a new channel of the specified type and buffer size.
func NewChannel[T any](bufSize int) Channel[T] {
	return &channel[T]{
		ch:   make(chan T, bufSize),
		done: make(chan struct{}),
	}
}

// Receive returns a channel receiver for awaiting the next message.
func (c *channel[T]) Receive() <-chan T {
	return c.ch
}

// Send will attempt to send a message on the channel, returning true if successful, or false if the channel is closed.
func (c *channel[T]) Send(msg T) bool {
	// Either the send is never attempted, or Close() waits until it has finished
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.waiting.Add(1)
	defer c.waiting.Done()
	c.mu.RUnlock()

	select {
	case c.ch <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Close idempotently ends the channel so that all current and future Send calls will fail.
func (c *channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	// Stop any waiting senders, wait for them to exit, then notify receiver(s)
	close(c.done)
	c.waiting.Wait()
	close(c.ch)
	c.closed = true
}

func (c *channel[T]) Closed() <-chan struct{} {
	return c.done
}

// RingChannel is a Channel whose Send never blocks on a slow receiver: once the buffer is full, the oldest buffered
// message is discarded to make room.
type RingChannel[T any] struct {
	*channel[T]
	dropped atomic.Uint64
}

// NewRingChannel creates a RingChannel holding at most bufSize (minimum 1) undelivered messages.
func NewRingChannel[T any](bufSize int) *RingChannel[T] {
	return &RingChannel[T]{channel: NewChannel[T](max(bufSize, 1)).(*channel[T])}
}

func (c *RingChannel[T]) Send(msg T) bool {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.waiting.Add(1)
	defer c.waiting.Done()
	c.mu.RUnlock()

	for {
		select {
		case <-c.done:
			return false
		case c.ch <- msg:
			return true
		default:
		}
		select {
		case <-c.ch:
			c.dropped.Add(1)
		default:
		}
	}
}

// Dropped is the number of messages discarded so far.
func (c *RingChannel[T]) Dropped() uint64 {
	return c.dropped.Load()
}
