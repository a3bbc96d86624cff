package pubsub

import (
	"errors"
	"sync"

	"github.com/alanbriolat/video-wall/internal/sync_"
)

const (
	DefaultPublisherBufSize  = 1
	DefaultSubscriberBufSize = 8
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

type Publisher[T any] interface {
	SenderCloser[T]
	// AddSubscriber registers s to receive every message; if closeOnClose is set, s is closed along with the publisher.
	AddSubscriber(s SenderCloser[T], closeOnClose bool) error
	// Subscribe never applies back-pressure; SubscribeBufSize does.
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
}

type subscription[T any] struct {
	SenderCloser[T]
	closeOnClose bool
}

type publisher[T any] struct {
	mu          sync.Mutex
	ch          Channel[T]
	running     sync.WaitGroup // Goroutines in progress
	pending     sync.WaitGroup // Messages not yet sent to all subscribers
	subscribers *sync_.Mutexed[map[SenderCloser[T]]bool]
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	return NewPublisherBufSize[T](DefaultPublisherBufSize)
}

func NewPublisherBufSize[T any](bufSize int) Publisher[T] {
	p := &publisher[T]{
		ch:          NewChannel[T](bufSize),
		subscribers: sync_.NewMutexed(make(map[SenderCloser[T]]bool)),
	}
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		for v := range p.ch.Receive() {
			// Copy the subscribers, to avoid holding a lock that prevents adding new subscribers while sending
			for _, s := range p.snapshot() {
				if ok := s.Send(v); !ok {
					p.unsubscribe(s.SenderCloser)
				}
			}
			p.pending.Done()
		}
	}()
	return p
}

// Send will publish the value to all subscribers. It only blocks while the publisher's own buffer is full, which with
// Subscribe-only subscribers is never for long.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if ok := p.ch.Send(msg); !ok {
		// Message was not sent, so don't wait for it
		p.pending.Done()
		return false
	}
	return true
}

// Subscribe returns a RingChannel, so a stalled subscriber loses its oldest messages rather than holding up the
// publisher and every other subscriber.
func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	s := NewRingChannel[T](DefaultSubscriberBufSize)
	if err := p.AddSubscriber(s, true); err != nil {
		return nil, err
	}
	return s, nil
}

// SubscribeBufSize returns a plain buffered subscription: once its buffer is full, the publisher waits for it.

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	s := NewChannel[T](bufSize)
	if err := p.AddSubscriber(s, true); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *publisher[T]) AddSubscriber(s SenderCloser[T], closeOnClose bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	return p.subscribers.Locked(func(subscribers map[SenderCloser[T]]bool) error {
		subscribers[s] = closeOnClose
		return nil
	})
}

func (p *publisher[T]) snapshot() []subscription[T] {
	var subs []subscription[T]
	_ = p.subscribers.Locked(func(subscribers map[SenderCloser[T]]bool) error {
		subs = make([]subscription[T], 0, len(subscribers))
		for s, closeOnClose := range subscribers {
			subs = append(subs, subscription[T]{s, closeOnClose})
		}
		return nil
	})
	return subs
}

func (p *publisher[T]) unsubscribe(s SenderCloser[T]) {
	_ = p.subscribers.Locked(func(subscribers map[SenderCloser[T]]bool) error {
		delete(subscribers, s)
		return nil
	})
}

// Close idempotently shuts down the publisher, flushing pending messages and closing subscribers that asked for it.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.ch.Close()
	p.pending.Wait()
	p.running.Wait()
	subs := p.snapshot()
	_ = p.subscribers.Locked(func(subscribers map[SenderCloser[T]]bool) error {
		clear(subscribers)
		return nil
	})
	for _, s := range subs {
		if s.closeOnClose {
			s.Close()
		}
	}
	p.closed = true
}

func (p *publisher[T]) Closed() <-chan struct{} {
	return p.ch.Closed()
}
