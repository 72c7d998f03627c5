// Package title watches a page title and rewrites it through a render
// function without mistaking its own writes for page changes.
package title

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Source is the page title element.
type Source interface {
	// Subscribe reports the element's text after every text or structural
	// change, in mutation order.
	Subscribe(onChange func(text string)) (Subscription, error)
	SetTitle(ctx context.Context, text string) error
}

// Subscription detaches an observer.
type Subscription interface {
	Cancel()
}

// RenderFunc produces the title to show for realTitle. ok is false when no
// format is configured and the page title should be left alone.
type RenderFunc func(ctx context.Context, realTitle string) (rendered string, ok bool)

// Dispatcher runs fn on the goroutine that owns the watcher.
type Dispatcher func(fn func())

// State of a watcher.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDispatcher routes source notifications through d. The default runs
// them inline on the source's goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(w *Watcher) { w.dispatch = d }
}

// Watcher tracks the real page title and the last title it rendered.
// All methods must be called from the dispatcher's goroutine.
type Watcher struct {
	src      Source
	render   RenderFunc
	dispatch Dispatcher

	state State
	sub   Subscription
	ctx   context.Context

	realTitle   string
	rendered    string
	hasRendered bool
}

// NewWatcher creates an idle watcher. initialTitle is the page title at load.
func NewWatcher(src Source, initialTitle string, render RenderFunc, opts ...Option) *Watcher {
	w := &Watcher{
		src:       src,
		render:    render,
		dispatch:  func(fn func()) { fn() },
		realTitle: initialTitle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins observing the page title. Starting an active watcher is a
// no-op.
func (w *Watcher) Start(ctx context.Context) error {
	if w.state == Active {
		return nil
	}
	w.ctx = context.WithoutCancel(ctx)
	sub, err := w.src.Subscribe(func(text string) {
		w.dispatch(func() {
			if w.state != Active {
				return
			}
			w.Observe(w.ctx, text)
		})
	})
	if err != nil {
		return fmt.Errorf("title: subscribe: %w", err)
	}
	w.sub = sub
	w.state = Active
	return nil
}

// Stop detaches the observer.
func (w *Watcher) Stop() {
	if w.state != Active {
		return
	}
	w.state = Idle
	if w.sub != nil {
		w.sub.Cancel()
		w.sub = nil
	}
}

// State returns idle or active.
func (w *Watcher) State() State { return w.state }

// Active reports whether the watcher is observing.
func (w *Watcher) Active() bool { return w.state == Active }

// RealTitle is the last title observed from the page itself.
func (w *Watcher) RealTitle() string { return w.realTitle }

// RenderedTitle is the last title written by the watcher.
func (w *Watcher) RenderedTitle() string { return w.rendered }

// Observe processes a candidate title. Text equal to the last rendered title
// is the watcher's own write and is ignored; anything else becomes the real
// title and is re-rendered. The comparison ignores whitespace differences,
// since hosts may report the title stripped and collapsed.
func (w *Watcher) Observe(ctx context.Context, text string) {
	if w.hasRendered && sameTitle(text, w.rendered) {
		return
	}
	w.realTitle = text
	w.apply(ctx)
}

// Refresh re-renders from the last real title, after the format or the
// variables changed.
func (w *Watcher) Refresh(ctx context.Context) {
	w.apply(ctx)
}

func (w *Watcher) apply(ctx context.Context) {
	out, ok := w.render(ctx, w.realTitle)
	if !ok {
		if w.hasRendered {
			// The format was cleared; give the page its own title back.
			w.hasRendered = false
			w.rendered = ""
			w.write(ctx, w.realTitle)
		}
		return
	}

	// Record before writing so a notification raised during the write is
	// already recognised as ours.
	w.rendered = out
	w.hasRendered = true
	w.write(ctx, out)
}

func sameTitle(a, b string) bool {
	return a == b || strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

func (w *Watcher) write(ctx context.Context, text string) {
	if err := w.src.SetTitle(ctx, text); err != nil {
		slog.Warn("title: write failed", "title", text, "error", err)
	}
}
