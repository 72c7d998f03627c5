package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

const endpointBufSize = 256

// ErrClosed is returned when publishing on a closed endpoint.
var ErrClosed = errors.New("bus: endpoint closed")

type envelope struct {
	from int64
	msg  Message
}

// Hub fans messages out to every joined endpoint except the sender.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[int64]*Endpoint
	nextID    atomic.Int64
}

// NewHub creates an empty in-process broadcast channel.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[int64]*Endpoint)}
}

// Join attaches a new endpoint. Each endpoint delivers to its handlers from
// its own goroutine until Close.
func (h *Hub) Join() *Endpoint {
	id := h.nextID.Add(1)
	e := &Endpoint{
		id:       id,
		hub:      h,
		inbox:    make(chan envelope, endpointBufSize),
		handlers: make(map[int64]func(Message)),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.endpoints[id] = e
	h.mu.Unlock()
	go e.deliver()
	return e
}

// Count returns the number of joined endpoints.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

func (h *Hub) broadcast(from int64, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, e := range h.endpoints {
		if id == from {
			continue
		}
		select {
		case e.inbox <- envelope{from: from, msg: msg}:
		default:
			slog.Debug("bus: dropped message for slow endpoint", "endpoint", id, "topic", msg.Topic())
		}
	}
}

func (h *Hub) leave(id int64) {
	h.mu.Lock()
	delete(h.endpoints, id)
	h.mu.Unlock()
}

// Endpoint is one participant on a Hub.
type Endpoint struct {
	id  int64
	hub *Hub

	inbox chan envelope

	mu       sync.Mutex
	handlers map[int64]func(Message)
	nextSub  int64

	closeOnce sync.Once
	done      chan struct{}
}

// Publish broadcasts msg to every other endpoint on the hub.
func (e *Endpoint) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	e.hub.broadcast(e.id, msg)
	return nil
}

// Subscribe registers handler for messages from other endpoints.
func (e *Endpoint) Subscribe(handler func(Message)) (Subscription, error) {
	select {
	case <-e.done:
		return nil, ErrClosed
	default:
	}
	e.mu.Lock()
	e.nextSub++
	id := e.nextSub
	e.handlers[id] = handler
	e.mu.Unlock()
	return subscriptionFunc(func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}), nil
}

// Close leaves the hub and stops delivery.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.hub.leave(e.id)
		close(e.done)
	})
	return nil
}

func (e *Endpoint) deliver() {
	for {
		select {
		case <-e.done:
			return
		case env := <-e.inbox:
			e.mu.Lock()
			handlers := make([]func(Message), 0, len(e.handlers))
			for _, fn := range e.handlers {
				handlers = append(handlers, fn)
			}
			e.mu.Unlock()
			for _, fn := range handlers {
				fn(env.msg)
			}
		}
	}
}
