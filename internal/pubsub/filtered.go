package pubsub

// NewFilteredSender wraps s so that only messages accepted by accept are forwarded. Rejected messages still report
// success, so a publisher keeps the subscription.
func NewFilteredSender[T any](s SenderCloser[T], accept func(T) bool) SenderCloser[T] {
	return &filteredSender[T]{SenderCloser: s, accept: accept}
}

type filteredSender[T any] struct {
	SenderCloser[T]
	accept func(T) bool
}

func (s *filteredSender[T]) Send(msg T) bool {
	select {
	case <-s.Closed():
		return false
	default:
	}
	if s.accept != nil && !s.accept(msg) {
		return true
	}
	return s.SenderCloser.Send(msg)
}

// SubscribeFunc subscribes to p and calls f, from a new goroutine, with every message accepted by accept, until the
// returned cancel is called or p is closed. Filtering happens before buffering, so ignored messages never take up
// buffer space. If f falls behind by more than DefaultSubscriberBufSize messages, the oldest are dropped.
func SubscribeFunc[T any](p Publisher[T], accept func(T) bool, f func(T)) (cancel func(), err error) {
	ch := NewRingChannel[T](DefaultSubscriberBufSize)
	if err := p.AddSubscriber(NewFilteredSender[T](ch, accept), true); err != nil {
		return nil, err
	}
	go func() {
		for msg := range ch.Receive() {
			f(msg)
		}
	}()
	return ch.Close, nil
}

// SubscribeType is SubscribeFunc for the messages of one concrete type M.
func SubscribeType[T any, M any](p Publisher[T], f func(M)) (cancel func(), err error) {
	return SubscribeFunc(p,
		func(msg T) bool {
			_, ok := any(msg).(M)
			return ok
		},
		func(msg T) {
			f(any(msg).(M))
		},
	)
}
