// Package shell hosts the tab title feature for one loaded document: it owns
// the tab identity, watches the page title and renders it through the
// document's title format.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/tabtitle/internal/bus"
	"github.com/dgnsrekt/tabtitle/internal/eventloop"
	"github.com/dgnsrekt/tabtitle/internal/tabid"
	"github.com/dgnsrekt/tabtitle/internal/title"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

// ErrNoPrompter is returned by PromptFormat when the host has no prompt.
var ErrNoPrompter = errors.New("shell: no format prompt available")

// Event kinds emitted to a Sink.
const (
	EventTitle    = "title"
	EventIdentity = "identity"
	EventClosed   = "closed"
)

// Event describes a rendered title, an identity change or a disposed shell.
type Event struct {
	Kind       string `json:"kind"`
	Tab        string `json:"tab"`
	TitleTabID string `json:"title_tab_id"`
	RealTitle  string `json:"real_title,omitempty"`
	Title      string `json:"title,omitempty"`
}

// Sink receives shell events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// Config wires a Shell to its host.
type Config struct {
	// Name identifies the tab in logs and events.
	Name         string
	InitialTitle string

	Document Document
	Tracker  ChangeTracker
	Prompter Prompter
	Source   title.Source

	Storage         tabid.Storage
	Bus             bus.Bus
	IdentityOptions []tabid.Option
	Identity        IdentityPublisher

	Events        Sink
	LegacyPolicy  LegacyPolicy
	DefaultFormat string
}

// State is a point-in-time view of a shell.
type State struct {
	Name          string             `json:"name"`
	TitleTabID    string             `json:"title_tab_id"`
	Observing     bool               `json:"observing"`
	Format        string             `json:"format"`
	Variables     titlefmt.Variables `json:"variables"`
	RealTitle     string             `json:"real_title"`
	RenderedTitle string             `json:"rendered_title"`
}

// Shell is created once per document load. Everything touching the watcher
// or the document runs on its event loop.
type Shell struct {
	cfg      Config
	loop     *eventloop.Loop
	ids      *tabid.Manager
	watcher  *title.Watcher
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	disposed sync.Once

	renderPending bool
}

// New builds a shell and starts its event loop.
func New(cfg Config) *Shell {
	if cfg.Tracker == nil {
		cfg.Tracker = NopTracker{}
	}
	if cfg.Document == nil {
		cfg.Document = NewMemoryDocument("")
	}
	if cfg.Storage == nil {
		cfg.Storage = tabid.NewMemoryStorage("")
	}
	if cfg.LegacyPolicy == "" {
		cfg.LegacyPolicy = LegacyApply
	}

	s := &Shell{
		cfg:  cfg,
		loop: eventloop.New(),
		log:  slog.With("tab", cfg.Name),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	opts := append([]tabid.Option{tabid.WithOnChange(s.identityChanged)}, cfg.IdentityOptions...)
	s.ids = tabid.NewManager(cfg.Storage, cfg.Bus, opts...)
	s.watcher = title.NewWatcher(cfg.Source, cfg.InitialTitle, s.render,
		title.WithDispatcher(func(fn func()) { s.loop.Post(fn) }))

	go func() {
		if err := s.loop.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("shell loop exit", "error", err)
		}
	}()
	return s
}

// Start establishes the tab identity and runs arbitration. It does not wait
// for replies.
func (s *Shell) Start(ctx context.Context) error {
	if err := s.ids.Start(ctx); err != nil {
		return err
	}
	id := s.ids.Identity()
	s.loop.Post(func() { s.publishIdentity(id) })
	return nil
}

// TabIdentity is the value provider for outbound requests.
func (s *Shell) TabIdentity() string {
	return s.ids.Identity()
}

// OnConfigured runs when the host finished loading the document: it renders
// the title for the first time and starts watching it.
func (s *Shell) OnConfigured(ctx context.Context) error {
	var err error
	callErr := s.loop.Call(ctx, func() {
		if s.cfg.DefaultFormat != "" {
			s.seedFormat(ctx)
		}
		s.watcher.Refresh(ctx)
		err = s.watcher.Start(s.ctx)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

func (s *Shell) seedFormat(ctx context.Context) {
	current, err := s.cfg.Document.TitleFormat(ctx)
	if err != nil || current != "" {
		return
	}
	if err := s.cfg.Document.SetTitleFormat(ctx, s.cfg.DefaultFormat); err != nil {
		s.log.Warn("shell: default format not applied", "error", err)
		return
	}
	s.log.Info("shell: applied default title format", "format", s.cfg.DefaultFormat)
}

// SetFormat replaces the title format between before/after change
// notifications and re-renders immediately.
func (s *Shell) SetFormat(ctx context.Context, format string) error {
	var err error
	callErr := s.loop.Call(ctx, func() {
		err = s.setFormat(ctx, format)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

func (s *Shell) setFormat(ctx context.Context, format string) error {
	if err := s.cfg.Tracker.BeforeChange(ctx); err != nil {
		s.log.Debug("shell: before-change notification failed", "error", err)
	}
	err := s.cfg.Document.SetTitleFormat(ctx, format)
	if trackErr := s.cfg.Tracker.AfterChange(ctx); trackErr != nil {
		s.log.Debug("shell: after-change notification failed", "error", trackErr)
	}
	if err != nil {
		return fmt.Errorf("set title format: %w", err)
	}
	s.log.Info("shell: title format set", "format", format)
	s.watcher.Refresh(ctx)
	return nil
}

// PromptFormat asks the user for a new format, prefilled with the current
// one, and applies it. It returns the applied format, or ok=false when the
// user cancelled or entered nothing.
func (s *Shell) PromptFormat(ctx context.Context) (string, bool, error) {
	if s.cfg.Prompter == nil {
		return "", false, ErrNoPrompter
	}

	var current string
	if err := s.loop.Call(ctx, func() {
		current, _ = s.cfg.Document.TitleFormat(ctx)
	}); err != nil {
		return "", false, err
	}

	format, ok, err := s.cfg.Prompter.PromptFormat(ctx, current)
	if err != nil {
		return "", false, err
	}
	if !ok || format == "" {
		return "", false, nil
	}
	if err := s.SetFormat(ctx, format); err != nil {
		return "", false, err
	}
	return format, true, nil
}

// ApplyVariables merges an inbound update when it is meant for this tab and
// schedules a render on the next loop tick, so a burst of updates renders
// once. It reports whether the update was applied. Variable names are stored
// as given; names that are not placeholders never render. A scoped update
// with an empty identity matches no tab.
func (s *Shell) ApplyVariables(ctx context.Context, u VariableUpdate) (bool, error) {
	var (
		applied bool
		err     error
	)
	callErr := s.loop.Call(ctx, func() {
		applied, err = s.applyVariables(ctx, u)
	})
	if callErr != nil {
		return false, callErr
	}
	return applied, err
}

func (s *Shell) applyVariables(ctx context.Context, u VariableUpdate) (bool, error) {
	switch u := u.(type) {
	case ScopedVariables:
		if u.TabIdentity == "" || u.TabIdentity != s.ids.Identity() {
			return false, nil
		}
	case LegacyVariables:
		if s.cfg.LegacyPolicy == LegacyIgnore {
			s.log.Debug("shell: ignoring untagged variable update")
			return false, nil
		}
	default:
		return false, fmt.Errorf("unsupported variable update %T", u)
	}

	if err := s.cfg.Document.MergeVariables(ctx, u.Values()); err != nil {
		return false, fmt.Errorf("merge title variables: %w", err)
	}
	s.scheduleRender()
	return true, nil
}

func (s *Shell) scheduleRender() {
	if s.renderPending {
		return
	}
	s.renderPending = true
	s.loop.Post(func() {
		s.renderPending = false
		s.watcher.Refresh(s.ctx)
	})
}

// Snapshot returns the current state.
func (s *Shell) Snapshot(ctx context.Context) (State, error) {
	st := State{Name: s.cfg.Name, TitleTabID: s.ids.Identity()}
	err := s.loop.Call(ctx, func() {
		st.Observing = s.watcher.Active()
		st.RealTitle = s.watcher.RealTitle()
		st.RenderedTitle = s.watcher.RenderedTitle()
		st.Format, _ = s.cfg.Document.TitleFormat(ctx)
		st.Variables, _ = s.cfg.Document.Variables(ctx)
	})
	return st, err
}

// Dispose stops watching, leaves the broadcast channel and stops the loop.
func (s *Shell) Dispose() {
	s.disposed.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.loop.Call(ctx, s.watcher.Stop); err != nil {
			s.log.Debug("shell: watcher stop skipped", "error", err)
		}
		s.emit(Event{Kind: EventClosed})
		s.ids.Close()
		s.cancel()
		s.loop.Stop()
	})
}

func (s *Shell) render(ctx context.Context, realTitle string) (string, bool) {
	format, err := s.cfg.Document.TitleFormat(ctx)
	if err != nil {
		s.log.Debug("shell: read title format failed", "error", err)
		return "", false
	}
	if format == "" {
		return "", false
	}
	vars, err := s.cfg.Document.Variables(ctx)
	if err != nil {
		s.log.Debug("shell: read title variables failed", "error", err)
	}

	out := titlefmt.Render(format, realTitle, vars)
	s.emit(Event{Kind: EventTitle, RealTitle: realTitle, Title: out})
	return out, true
}

func (s *Shell) identityChanged(_, newID string) {
	s.loop.Post(func() {
		s.publishIdentity(newID)
		s.emit(Event{Kind: EventIdentity})
	})
}

func (s *Shell) publishIdentity(id string) {
	if s.cfg.Identity == nil {
		return
	}
	if err := s.cfg.Identity.PublishIdentity(s.ctx, id); err != nil {
		s.log.Debug("shell: publish identity failed", "title_tab_id", id, "error", err)
	}
}

func (s *Shell) emit(evt Event) {
	if s.cfg.Events == nil {
		return
	}
	evt.Tab = s.cfg.Name
	if evt.TitleTabID == "" {
		evt.TitleTabID = s.ids.Identity()
	}
	s.cfg.Events.Emit(evt)
}
