package bus

import "context"

// Bus is a best-effort broadcast channel shared by same-origin tabs.
//
// Publish never delivers a message back to the publishing endpoint.
// Delivery is asynchronous and unordered across senders; messages may be
// dropped.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(handler func(Message)) (Subscription, error)
}

// Subscription detaches a handler.
type Subscription interface {
	Cancel()
}

type subscriptionFunc func()

func (f subscriptionFunc) Cancel() { f() }
