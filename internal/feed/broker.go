// Package feed fans shell events out to Server-Sent Events clients.
package feed

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/tabtitle/internal/shell"
)

const subscriberBufSize = 256

// Filter selects the events one client receives. Empty fields match
// everything.
type Filter struct {
	Kinds      map[string]bool
	Tab        string
	TitleTabID string
}

// Match reports whether evt passes the filter.
func (f Filter) Match(evt shell.Event) bool {
	if len(f.Kinds) > 0 && !f.Kinds[evt.Kind] {
		return false
	}
	if f.Tab != "" && f.Tab != evt.Tab {
		return false
	}
	if f.TitleTabID != "" && f.TitleTabID != evt.TitleTabID {
		return false
	}
	return true
}

// Message is a shell event numbered in publish order.
type Message struct {
	Seq   int64
	Event shell.Event
}

type subscriber struct {
	filter Filter
	ch     chan Message
}

// Broker fans shell events out to subscribers and keeps the latest event of
// each kind per live tab, which new subscribers receive first.
type Broker struct {
	mu          sync.Mutex
	subscribers map[int64]*subscriber
	latest      map[string]map[string]Message
	seq         int64

	nextID  atomic.Int64
	dropped atomic.Int64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]*subscriber),
		latest:      make(map[string]map[string]Message),
	}
}

// Subscribe registers a client. The channel starts with the current state of
// every tab that matches f, oldest first; after that slow consumers have
// events dropped.
func (b *Broker) Subscribe(f Filter) (int64, <-chan Message) {
	id := b.nextID.Add(1)
	sub := &subscriber{filter: f, ch: make(chan Message, subscriberBufSize)}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.currentLocked() {
		if f.Match(m.Event) {
			b.send(id, sub, m)
		}
	}
	b.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish records evt and delivers it to every matching subscriber. It never
// blocks. A closed event forgets the tab's state.
func (b *Broker) Publish(evt shell.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	m := Message{Seq: b.seq, Event: evt}
	if evt.Kind == shell.EventClosed {
		delete(b.latest, evt.Tab)
	} else {
		kinds := b.latest[evt.Tab]
		if kinds == nil {
			kinds = make(map[string]Message)
			b.latest[evt.Tab] = kinds
		}
		kinds[evt.Kind] = m
	}

	for id, sub := range b.subscribers {
		if sub.filter.Match(evt) {
			b.send(id, sub, m)
		}
	}
}

// Emit implements shell.Sink.
func (b *Broker) Emit(evt shell.Event) {
	b.Publish(evt)
}

func (b *Broker) send(id int64, sub *subscriber, m Message) {
	select {
	case sub.ch <- m:
	default:
		b.dropped.Add(1)
		slog.Debug("feed: dropped event for slow client", "subscriber", id, "kind", m.Event.Kind, "tab", m.Event.Tab)
	}
}

func (b *Broker) currentLocked() []Message {
	var out []Message
	for _, kinds := range b.latest {
		for _, m := range kinds {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// TabCount returns the number of tabs with remembered state.
func (b *Broker) TabCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.latest)
}

// Dropped is the number of events discarded for slow clients.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

var _ shell.Sink = (*Broker)(nil)
