package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Handler bridges WebSocket clients into the hub. Every text frame received is
// decoded and broadcast to the other endpoints; every broadcast reaching the
// bridged endpoint is written back as a text frame.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("bus: websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		h.serveConn(context.WithoutCancel(r.Context()), conn)
	})
}

func (h *Hub) serveConn(ctx context.Context, conn net.Conn) {
	ep := h.Join()
	defer ep.Close()
	defer conn.Close()

	var writeMu sync.Mutex
	sub, err := ep.Subscribe(func(msg Message) {
		data, err := Encode(msg)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := wsutil.WriteServerText(conn, data); err != nil {
			slog.Debug("bus: websocket write failed", "error", err)
		}
	})
	if err != nil {
		return
	}
	defer sub.Cancel()

	slog.Debug("bus: websocket client joined", "remote", conn.RemoteAddr())
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			slog.Debug("bus: websocket client left", "remote", conn.RemoteAddr(), "error", err)
			return
		}
		msg, err := Decode(data)
		if err != nil {
			slog.Debug("bus: ignoring websocket frame", "error", err)
			continue
		}
		if err := ep.Publish(ctx, msg); err != nil {
			return
		}
	}
}

// WSEndpoint is a Bus backed by one WebSocket connection to a remote Hub.
type WSEndpoint struct {
	conn net.Conn
	rw   io.ReadWriter

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[int64]func(Message)
	nextSub  int64

	closeOnce sync.Once
	done      chan struct{}
}

type bufferedConn struct {
	io.Reader
	io.Writer
}

// Dial connects to a hub served by Hub.Handler.
func Dial(ctx context.Context, url string) (*WSEndpoint, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("bus: dial %s: %w", url, err)
	}

	var rw io.ReadWriter = conn
	if br != nil {
		rw = bufferedConn{Reader: io.MultiReader(br, conn), Writer: conn}
	}

	e := &WSEndpoint{
		conn:     conn,
		rw:       rw,
		handlers: make(map[int64]func(Message)),
		done:     make(chan struct{}),
	}
	go e.readLoop()
	return e, nil
}

// Publish sends msg to the hub, which relays it to every other endpoint.
func (e *WSEndpoint) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := wsutil.WriteClientText(e.conn, data); err != nil {
		return fmt.Errorf("bus: send: %w", err)
	}
	return nil
}

// Subscribe registers handler for messages relayed by the hub.
func (e *WSEndpoint) Subscribe(handler func(Message)) (Subscription, error) {
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

// Close shuts the connection down.
func (e *WSEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		err = e.conn.Close()
	})
	return err
}

// Done is closed when the connection ends.
func (e *WSEndpoint) Done() <-chan struct{} {
	return e.done
}

func (e *WSEndpoint) readLoop() {
	defer e.Close()
	for {
		data, err := wsutil.ReadServerText(e.rw)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Debug("bus: websocket read loop exit", "error", err)
			}
			return
		}
		msg, err := Decode(data)
		if err != nil {
			slog.Debug("bus: ignoring websocket frame", "error", err)
			continue
		}
		e.mu.Lock()
		handlers := make([]func(Message), 0, len(e.handlers))
		for _, fn := range e.handlers {
			handlers = append(handlers, fn)
		}
		e.mu.Unlock()
		for _, fn := range handlers {
			fn(msg)
		}
	}
}

var _ Bus = (*WSEndpoint)(nil)
var _ Bus = (*Endpoint)(nil)
