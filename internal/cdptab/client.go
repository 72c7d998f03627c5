// Package cdptab attaches to editor tabs over the Chrome DevTools Protocol
// and runs a title shell inside each of them.
package cdptab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/tabtitle/internal/config"
	"github.com/dgnsrekt/tabtitle/internal/shell"
)

// Options configures a Client.
type Options struct {
	CDPURL        string
	Rules         *config.RulesConfig
	SyncInterval  time.Duration
	EvalTimeout   time.Duration
	PromptTimeout time.Duration
	LegacyPolicy  shell.LegacyPolicy
	JoinBus       JoinFunc
	Events        shell.Sink
}

// Client manages CDP connections to browser tabs.
type Client struct {
	opts     Options
	registry *Registry

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func NewClient(opts Options, registry *Registry) *Client {
	if opts.Rules == nil {
		opts.Rules = config.DefaultRules("")
	}
	if opts.EvalTimeout <= 0 {
		opts.EvalTimeout = 5 * time.Second
	}
	if opts.PromptTimeout <= 0 {
		opts.PromptTimeout = 2 * time.Minute
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 2 * time.Second
	}
	return &Client{opts: opts, registry: registry}
}

// Registry returns the managed tabs.
func (c *Client) Registry() *Registry { return c.registry }

// Connect opens the browser connection and attaches to matching tabs.
func (c *Client) Connect(ctx context.Context) error {
	slog.Info("Connecting to Chromium", "url", c.opts.CDPURL)

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), c.opts.CDPURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return NewError(CodeCDPUnavailable, "failed to connect to browser", err)
	}

	c.mu.Lock()
	c.allocCtx, c.allocCancel = allocCtx, allocCancel
	c.browserCtx, c.browserCancel = browserCtx, browserCancel
	c.mu.Unlock()

	return c.Sync(ctx)
}

// Sync attaches to new matching page targets and detaches from tabs that
// closed or navigated away from every rule.
func (c *Client) Sync(ctx context.Context) error {
	c.mu.Lock()
	browserCtx := c.browserCtx
	c.mu.Unlock()
	if browserCtx == nil {
		return NewError(CodeCDPUnavailable, "not connected", nil)
	}

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return NewError(CodeCDPUnavailable, "failed to enumerate targets", err)
	}

	seen := make(map[target.ID]bool)
	attached := 0
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		rule, ok := c.opts.Rules.Match(t.URL)
		if !ok {
			continue
		}
		seen[t.TargetID] = true
		if _, ok := c.registry.Get(t.TargetID); ok {
			continue
		}
		if err := c.attach(t.TargetID, t.URL, rule); err != nil {
			slog.Error("Failed to attach to tab", "tab_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
			continue
		}
		attached++
	}

	detached := 0
	for _, tab := range c.registry.List() {
		if seen[tab.ID] {
			continue
		}
		c.detach(tab.ID)
		detached++
	}

	if attached > 0 || detached > 0 {
		slog.Info("cdptab tab sync", "targets", len(targets), "attached", attached, "detached", detached, "tabs", c.registry.Count())
	}
	return ctx.Err()
}

// Run syncs on the configured interval until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("cdptab tab sync failed", "error", err)
			}
		}
	}
}

func (c *Client) attach(targetID target.ID, url string, rule config.Rule) error {
	c.mu.Lock()
	allocCtx := c.allocCtx
	c.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(targetID))
	tab := newTab(tabCtx, tabCancel, targetID, url, rule, &c.opts)
	if err := tab.install(); err != nil {
		tabCancel()
		return err
	}
	c.registry.Register(tab)
	slog.Info("Attached to tab", "tab_id", targetID, "rule", rule.Name, "url", truncateURL(url))

	go tab.load()
	return nil
}

func (c *Client) detach(targetID target.ID) {
	tab, ok := c.registry.Remove(targetID)
	if !ok {
		return
	}
	tab.close()
	slog.Info("Detached from tab", "tab_id", targetID)
}

// Close disposes every shell and drops the browser connection.
func (c *Client) Close() error {
	for _, tab := range c.registry.List() {
		c.registry.Remove(tab.ID)
		tab.disposeShell()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	slog.Info("CDP client closed")
	return nil
}

// GetTabCount returns the number of attached tabs.
func (c *Client) GetTabCount() int {
	return c.registry.Count()
}

func (c *Client) tab(tabID string) (*Tab, error) {
	tab, ok := c.registry.GetByStringID(tabID)
	if !ok {
		return nil, NewError(CodeTabNotFound, fmt.Sprintf("tab %q not found", tabID), nil)
	}
	return tab, nil
}

// Shell returns the current shell of tabID.
func (c *Client) Shell(tabID string) (*shell.Shell, error) {
	tab, err := c.tab(tabID)
	if err != nil {
		return nil, err
	}
	return tab.Shell()
}

// Shells returns the shells of every tab with a loaded document.
func (c *Client) Shells() []*shell.Shell {
	var out []*shell.Shell
	for _, tab := range c.registry.List() {
		if s, err := tab.Shell(); err == nil {
			out = append(out, s)
		}
	}
	return out
}
