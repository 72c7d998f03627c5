package cdptab

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgnsrekt/tabtitle/internal/shell"
	"github.com/dgnsrekt/tabtitle/internal/tabid"
	"github.com/dgnsrekt/tabtitle/internal/title"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

// evalFunc evaluates expr in the page and decodes the result into res. A nil
// res discards the result.
type evalFunc func(ctx context.Context, expr string, res any) error

// titleFeed holds the observer of the page title binding. Only the latest
// subscription is live.
type titleFeed struct {
	mu  sync.Mutex
	fn  func(string)
	gen uint64
}

func (f *titleFeed) subscribe(fn func(string)) title.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	gen := f.gen
	f.fn = fn
	return cancelFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gen == gen {
			f.fn = nil
		}
	})
}

func (f *titleFeed) deliver(text string) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

type cancelFunc func()

func (c cancelFunc) Cancel() { c() }

// pageTitle is the page's <title> element.
type pageTitle struct {
	eval evalFunc
	feed *titleFeed
}

func (p pageTitle) Subscribe(onChange func(string)) (title.Subscription, error) {
	return p.feed.subscribe(onChange), nil
}

func (p pageTitle) SetTitle(ctx context.Context, text string) error {
	return p.eval(ctx, setTitleScript(text), nil)
}

func (p pageTitle) current(ctx context.Context) (string, error) {
	var text string
	if err := p.eval(ctx, readTitleScript, &text); err != nil {
		return "", err
	}
	return text, nil
}

// sessionStore keeps the tab identity in the page's sessionStorage, which
// browsers copy when a tab is duplicated.
type sessionStore struct {
	eval evalFunc
}

func (s sessionStore) Load(ctx context.Context) (string, error) {
	var id string
	if err := s.eval(ctx, loadIdentityScript(), &id); err != nil {
		return "", fmt.Errorf("load tab identity: %w", err)
	}
	return id, nil
}

func (s sessionStore) Store(ctx context.Context, id string) error {
	if err := s.eval(ctx, storeIdentityScript(id), nil); err != nil {
		return fmt.Errorf("store tab identity: %w", err)
	}
	return nil
}

// graphDocument stores the format and variables in app.graph.extra, so they
// are saved with the workflow.
type graphDocument struct {
	eval evalFunc
}

func (d graphDocument) TitleFormat(ctx context.Context) (string, error) {
	var format string
	if err := d.eval(ctx, readFormatScript(), &format); err != nil {
		return "", err
	}
	return format, nil
}

func (d graphDocument) SetTitleFormat(ctx context.Context, format string) error {
	return d.eval(ctx, writeFormatScript(format), nil)
}

func (d graphDocument) Variables(ctx context.Context) (titlefmt.Variables, error) {
	var raw string
	if err := d.eval(ctx, readVarsScript(), &raw); err != nil {
		return nil, err
	}
	return titlefmt.ParseJSON([]byte(raw))
}

func (d graphDocument) MergeVariables(ctx context.Context, updates titlefmt.Variables) error {
	if len(updates) == 0 {
		return nil
	}
	return d.eval(ctx, mergeVarsScript(updates), nil)
}

// canvasTracker raises litegraph:canvas change events so the editor marks
// the workflow as modified.
type canvasTracker struct {
	eval evalFunc
}

func (c canvasTracker) BeforeChange(ctx context.Context) error {
	return c.eval(ctx, changeScript("before-change"), nil)
}

func (c canvasTracker) AfterChange(ctx context.Context) error {
	return c.eval(ctx, changeScript("after-change"), nil)
}

// dialog shows the page's own prompt().
type dialog struct {
	eval evalFunc
}

func (d dialog) PromptFormat(ctx context.Context, current string) (string, bool, error) {
	var answer *string
	if err := d.eval(ctx, promptScript(current), &answer); err != nil {
		return "", false, err
	}
	if answer == nil || *answer == "" {
		return "", false, nil
	}
	return *answer, true, nil
}

// identityWidget exposes the identity as window.tabTitleTabId for the
// editor's hidden title_tab_id input.
type identityWidget struct {
	eval evalFunc
}

func (w identityWidget) PublishIdentity(ctx context.Context, id string) error {
	return w.eval(ctx, publishIdentityScript(id), nil)
}

var (
	_ title.Source            = pageTitle{}
	_ tabid.Storage           = sessionStore{}
	_ shell.Document          = graphDocument{}
	_ shell.ChangeTracker     = canvasTracker{}
	_ shell.Prompter          = dialog{}
	_ shell.IdentityPublisher = identityWidget{}
)
