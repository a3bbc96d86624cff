package pubsub

import (
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFilteredSender_Send(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	filtered := NewFilteredSender[int](ch, func(v int) bool { return v%2 == 0 })
	for i := 0; i < 5; i++ {
		assert.True(filtered.Send(i))
	}
	assert.Equal(0, <-ch.Receive())
	assert.Equal(2, <-ch.Receive())
	assert.Equal(4, <-ch.Receive())

	filtered.Close()
	<-ch.Closed()
	assert.False(filtered.Send(0))
	assert.False(filtered.Send(1), "rejected messages must still fail once closed")
}

type ping struct{ n int }
type pong struct{ n int }

func TestSubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	received := make(chan int, 10)
	_, err := SubscribeFunc[int](pub, func(v int) bool { return v%2 == 0 }, func(v int) { received <- v })
	require.NoError(t, err)
	// More messages than the subscriber buffer, so filtering must happen before buffering
	for i := 0; i < 2*DefaultSubscriberBufSize; i++ {
		pub.Send(i)
	}
	pub.Close()
	for i := 0; i < DefaultSubscriberBufSize; i++ {
		select {
		case v := <-received:
			assert.Equal(2*i, v)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}

	_, err = SubscribeFunc[int](pub, nil, func(int) {})
	assert.ErrorIs(err, ErrPublisherClosed)
}

func TestSubscribeType(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	assert := assert_.New(t)

	pub := NewPublisher[any]()
	defer pub.Close()
	pongs := make(chan pong, 2)
	cancel, err := SubscribeType[any, pong](pub, func(p pong) { pongs <- p })
	require.NoError(t, err)

	pub.Send(ping{1})
	pub.Send(pong{2})
	pub.Send(ping{3})
	assert.Equal(pong{2}, <-pongs)

	cancel()
	pub.Send(pong{4})
	select {
	case p := <-pongs:
		t.Fatalf("received %v after cancel", p)
	case <-time.After(50 * time.Millisecond):
	}
}
