package cdptab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/tabtitle/internal/bus"
	"github.com/dgnsrekt/tabtitle/internal/config"
	"github.com/dgnsrekt/tabtitle/internal/shell"
)

const (
	readyPollInterval = 250 * time.Millisecond
	readyTimeout      = 30 * time.Second
)

// Endpoint is one shell's connection to the broadcast channel.
type Endpoint interface {
	bus.Bus
	Close() error
}

// JoinFunc opens a broadcast endpoint for a new shell.
type JoinFunc func(ctx context.Context) (Endpoint, error)

// Tab is one attached browser tab. It rebuilds its shell on every document
// load.
type Tab struct {
	ID   target.ID
	Rule config.Rule

	opts   *Options
	ctx    context.Context
	cancel context.CancelFunc
	eval   evalFunc
	feed   *titleFeed
	memDoc *shell.MemoryDocument

	loadMu sync.Mutex

	mu       sync.RWMutex
	url      string
	shell    *shell.Shell
	endpoint Endpoint
}

func newTab(ctx context.Context, cancel context.CancelFunc, id target.ID, url string, rule config.Rule, opts *Options) *Tab {
	t := &Tab{
		ID:     id,
		Rule:   rule,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		feed:   &titleFeed{},
		memDoc: shell.NewMemoryDocument(""),
		url:    url,
	}
	t.eval = func(ctx context.Context, expr string, res any) error {
		return t.evaluate(ctx, t.opts.EvalTimeout, expr, res)
	}
	return t
}

// URL is the last URL seen for the tab's main frame.
func (t *Tab) URL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.url
}

func (t *Tab) setURL(url string) {
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
}

// Shell returns the shell of the current document, or a TAB_NOT_READY error
// while the document is loading.
func (t *Tab) Shell() (*shell.Shell, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.shell == nil {
		return nil, NewError(CodeTabNotReady, fmt.Sprintf("tab %s has no loaded document", t.ID), nil)
	}
	return t.shell, nil
}

func (t *Tab) evaluate(ctx context.Context, timeout time.Duration, expr string, res any) error {
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var action chromedp.Action = chromedp.Evaluate(expr, res)
	if res == nil {
		action = discardEval(expr)
	}
	if err := chromedp.Run(runCtx, action); err != nil {
		return evalError(err)
	}
	return nil
}

func discardEval(expr string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, exc, err := runtime.Evaluate(expr).WithAwaitPromise(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return nil
	})
}

// install enables the domains, registers the bindings and injects the title
// observer into this and every future document.
func (t *Tab) install() error {
	err := chromedp.Run(t.ctx,
		page.Enable(),
		runtime.Enable(),
		runtime.AddBinding(titleBinding),
		runtime.AddBinding(menuBinding),
		runtime.AddBinding(varsBinding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(observerScript).Do(ctx); err != nil {
				return err
			}
			_, exc, err := runtime.Evaluate(observerScript).Do(ctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return exc
			}
			return nil
		}),
	)
	if err != nil {
		return NewError(CodeCDPUnavailable, "failed to prepare tab", err)
	}
	chromedp.ListenTarget(t.ctx, t.handleEvent)
	return nil
}

// handleEvent runs on chromedp's event goroutine and must not call back into
// chromedp synchronously.
func (t *Tab) handleEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		switch e.Name {
		case titleBinding:
			t.feed.deliver(e.Payload)
		case menuBinding:
			go t.promptFromMenu()
		case varsBinding:
			go t.applyFromPage(e.Payload)
		}
	case *page.EventLoadEventFired:
		go t.load()
	case *page.EventFrameNavigated:
		if e.Frame.ParentID == "" {
			t.setURL(e.Frame.URL)
			slog.Debug("cdptab: tab navigated", "tab_id", t.ID, "url", truncateURL(e.Frame.URL))
		}
	case *page.EventNavigatedWithinDocument:
		t.setURL(e.URL)
	}
}

// load replaces the shell with one bound to the current document.
func (t *Tab) load() {
	t.loadMu.Lock()
	defer t.loadMu.Unlock()

	t.disposeShell()
	if t.ctx.Err() != nil {
		return
	}
	s, ep, err := t.buildShell(t.ctx)
	if err != nil {
		if t.ctx.Err() == nil {
			slog.Warn("cdptab: tab title not started", "tab_id", t.ID, "error", err)
		}
		return
	}

	t.mu.Lock()
	t.shell, t.endpoint = s, ep
	t.mu.Unlock()
	slog.Info("cdptab: tab title started", "tab_id", t.ID, "rule", t.Rule.Name, "title_tab_id", s.TabIdentity())
}

func (t *Tab) buildShell(ctx context.Context) (*shell.Shell, Endpoint, error) {
	graph := t.Rule.Document != config.DocumentMemory
	if graph {
		if err := t.waitEditor(ctx); err != nil {
			return nil, nil, err
		}
	}

	src := pageTitle{eval: t.eval, feed: t.feed}
	initial, err := src.current(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read title: %w", err)
	}

	cfg := shell.Config{
		Name:          string(t.ID),
		InitialTitle:  initial,
		Document:      t.memDoc,
		Prompter:      dialog{eval: t.promptEval},
		Source:        src,
		Storage:       sessionStore{eval: t.eval},
		Identity:      identityWidget{eval: t.eval},
		Events:        t.opts.Events,
		LegacyPolicy:  t.opts.LegacyPolicy,
		DefaultFormat: t.Rule.DefaultFormat,
	}
	if graph {
		cfg.Document = graphDocument{eval: t.eval}
		cfg.Tracker = canvasTracker{eval: t.eval}
	}

	var ep Endpoint
	if t.opts.JoinBus != nil {
		ep, err = t.opts.JoinBus(ctx)
		if err != nil {
			slog.Warn("cdptab: broadcast channel unavailable, identity not arbitrated", "tab_id", t.ID, "error", err)
			ep = nil
		} else {
			cfg.Bus = ep
		}
	}

	s := shell.New(cfg)
	if err := s.Start(ctx); err != nil {
		s.Dispose()
		closeEndpoint(ep)
		return nil, nil, err
	}
	if err := s.OnConfigured(ctx); err != nil {
		s.Dispose()
		closeEndpoint(ep)
		return nil, nil, err
	}
	return s, ep, nil
}

func (t *Tab) promptEval(ctx context.Context, expr string, res any) error {
	return t.evaluate(ctx, t.opts.PromptTimeout, expr, res)
}

// waitEditor polls until the editor's graph exists and the page hooks are
// installed.
func (t *Tab) waitEditor(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		var ready bool
		err := t.eval(ctx, hooksScript, &ready)
		if err == nil && ready {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("editor not ready: %w", err)
			}
			return errors.New("editor not ready: graph not loaded")
		case <-ticker.C:
		}
	}
}

func (t *Tab) promptFromMenu() {
	s, err := t.Shell()
	if err != nil {
		return
	}
	if _, _, err := s.PromptFormat(t.ctx); err != nil {
		slog.Warn("cdptab: title format prompt failed", "tab_id", t.ID, "error", err)
	}
}

func (t *Tab) applyFromPage(payload string) {
	s, err := t.Shell()
	if err != nil {
		return
	}
	u, err := shell.DecodeVariableUpdate([]byte(payload))
	if err != nil {
		slog.Debug("cdptab: bad variables event", "tab_id", t.ID, "error", err)
		return
	}
	if _, err := s.ApplyVariables(t.ctx, u); err != nil {
		slog.Warn("cdptab: apply variables failed", "tab_id", t.ID, "error", err)
	}
}

func (t *Tab) disposeShell() {
	t.mu.Lock()
	s, ep := t.shell, t.endpoint
	t.shell, t.endpoint = nil, nil
	t.mu.Unlock()
	if s != nil {
		s.Dispose()
	}
	closeEndpoint(ep)
}

// close disposes the shell and detaches from the target.
func (t *Tab) close() {
	t.disposeShell()
	t.cancel()
}

func closeEndpoint(ep Endpoint) {
	if ep == nil {
		return
	}
	if err := ep.Close(); err != nil {
		slog.Debug("cdptab: close broadcast endpoint", "error", err)
	}
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
