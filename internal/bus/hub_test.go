package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func TestHubBroadcastSkipsSender(t *testing.T) {
	hub := NewHub()
	a, b, c := hub.Join(), hub.Join(), hub.Join()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	var ra, rb, rc recorder
	_, err := a.Subscribe(ra.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(rb.handle)
	require.NoError(t, err)
	_, err = c.Subscribe(rc.handle)
	require.NoError(t, err)

	require.NoError(t, a.Publish(context.Background(), GetIdentityRequest{}))

	require.Eventually(t, func() bool {
		return len(rb.messages()) == 1 && len(rc.messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, ra.messages())
	assert.Equal(t, GetIdentityRequest{}, rb.messages()[0])
}

func TestHubCancelledSubscriptionStopsDelivery(t *testing.T) {
	hub := NewHub()
	a, b := hub.Join(), hub.Join()
	defer a.Close()
	defer b.Close()

	var first, second recorder
	sub, err := b.Subscribe(first.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(second.handle)
	require.NoError(t, err)
	sub.Cancel()

	require.NoError(t, a.Publish(context.Background(), UsingIdentityReply{TitleTabID: "x"}))
	require.Eventually(t, func() bool { return len(second.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, first.messages())
}

func TestEndpointClose(t *testing.T) {
	hub := NewHub()
	a := hub.Join()
	require.Equal(t, 1, hub.Count())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 0, hub.Count())
	assert.ErrorIs(t, a.Publish(context.Background(), GetIdentityRequest{}), ErrClosed)
	_, err := a.Subscribe(func(Message) {})
	assert.ErrorIs(t, err, ErrClosed)
}
