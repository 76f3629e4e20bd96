package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{ID: "e1", Type: EventSagaCompleted, Message: "done"})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case got := <-sub:
			assert.Equal(t, "e1", got.ID)
			assert.Equal(t, EventSagaCompleted, got.Type)
			assert.False(t, got.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestBrokerSaturatedSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	// Subscribed but never drained: its buffer fills and the broker must
	// skip it instead of stalling the broadcast loop.
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(&Event{ID: "flood", Type: EventPlacementCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a saturated subscriber")
	}
}

func TestBrokerPublishAfterStopIsNoOp(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()

	require.NotPanics(t, func() {
		b.Publish(&Event{ID: "late", Type: EventSagaCompleted})
	})
}
