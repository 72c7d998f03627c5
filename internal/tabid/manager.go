// Package tabid assigns each open tab a unique, session-persistent identity
// and resolves collisions left behind by tab duplication.
//
// Duplicating a tab copies its session storage verbatim, so a restored
// identity may already be in use. On start the manager asks every other tab
// which identity it holds; a tab that hears its own identity in a reply
// regenerates and asks again. The scheme is best effort: a lost reply leaves
// the duplicate in place until the next load.
package tabid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tabtitle/internal/bus"
	"github.com/google/uuid"
)

// StorageKey is the session storage key holding the identity.
const StorageKey = "liebsTitleTabId"

// Storage persists the identity for the lifetime of a browsing context.
type Storage interface {
	// Load returns the stored identity or "" when none is stored.
	Load(ctx context.Context) (string, error)
	Store(ctx context.Context, id string) error
}

// Generate returns a new identity from the current time and a random part.
func Generate() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// Option configures a Manager.
type Option func(*Manager)

// WithGenerator replaces Generate, mostly for tests.
func WithGenerator(fn func() string) Option {
	return func(m *Manager) { m.generate = fn }
}

// WithOnChange registers a callback fired after arbitration replaced the
// identity. It runs on the bus delivery goroutine.
func WithOnChange(fn func(oldID, newID string)) Option {
	return func(m *Manager) { m.onChange = fn }
}

// Manager owns the identity of one tab.
type Manager struct {
	storage  Storage
	bus      bus.Bus
	generate func() string
	onChange func(oldID, newID string)

	mu  sync.Mutex
	id  string
	sub bus.Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. A nil bus disables arbitration.
func NewManager(storage Storage, b bus.Bus, opts ...Option) *Manager {
	m := &Manager{
		storage:  storage,
		bus:      b,
		generate: Generate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the tab identity, restoring it from storage or
// generating and persisting a new one on first use. Storage failures are
// logged; the identity is still usable locally.
func (m *Manager) GetOrCreate(ctx context.Context) string {
	m.mu.Lock()
	if m.id != "" {
		id := m.id
		m.mu.Unlock()
		return id
	}
	m.mu.Unlock()

	restored, err := m.storage.Load(ctx)
	if err != nil {
		slog.Warn("tabid: restore failed", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id != "" {
		return m.id
	}
	if restored != "" {
		m.id = restored
		slog.Info("tabid: restored title tab id", "title_tab_id", restored)
		return m.id
	}

	m.id = m.generate()
	if err := m.storage.Store(ctx, m.id); err != nil {
		slog.Warn("tabid: persist failed", "title_tab_id", m.id, "error", err)
	}
	slog.Info("tabid: generated title tab id", "title_tab_id", m.id)
	return m.id
}

// Identity returns the current identity, or "" before GetOrCreate.
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Start joins the broadcast channel and asks the other tabs which identities
// they hold. Without a bus it only ensures an identity exists.
func (m *Manager) Start(ctx context.Context) error {
	m.GetOrCreate(ctx)
	if m.bus == nil {
		slog.Debug("tabid: no broadcast channel, arbitration disabled")
		return nil
	}

	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Unlock()

	sub, err := m.bus.Subscribe(m.handle)
	if err != nil {
		slog.Warn("tabid: broadcast subscribe failed, arbitration disabled", "error", err)
		return nil
	}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	if err := m.bus.Publish(ctx, bus.GetIdentityRequest{}); err != nil {
		slog.Warn("tabid: identity request failed", "error", err)
	}
	return nil
}

// Close leaves the broadcast channel.
func (m *Manager) Close() {
	m.mu.Lock()
	sub, cancel := m.sub, m.cancel
	m.sub, m.cancel = nil, nil
	m.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) handle(msg bus.Message) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	switch msg := msg.(type) {
	case bus.GetIdentityRequest:
		id := m.Identity()
		if id == "" {
			return
		}
		if err := m.bus.Publish(ctx, bus.UsingIdentityReply{TitleTabID: id}); err != nil {
			slog.Debug("tabid: identity reply failed", "error", err)
		}
	case bus.UsingIdentityReply:
		m.resolveCollision(ctx, msg.TitleTabID)
	}
}

// resolveCollision regenerates the identity when another tab reports using
// it. Each reply is checked against the identity held right now, so stale or
// reordered replies are harmless.
func (m *Manager) resolveCollision(ctx context.Context, reported string) {
	m.mu.Lock()
	if reported == "" || reported != m.id {
		m.mu.Unlock()
		return
	}
	oldID := m.id
	m.id = m.generate()
	newID := m.id
	m.mu.Unlock()

	if err := m.storage.Store(ctx, newID); err != nil {
		slog.Warn("tabid: persist failed", "title_tab_id", newID, "error", err)
	}
	slog.Info("tabid: generated a new title tab id", "old_title_tab_id", oldID, "title_tab_id", newID)
	if m.onChange != nil {
		m.onChange(oldID, newID)
	}

	if err := m.bus.Publish(ctx, bus.GetIdentityRequest{}); err != nil {
		slog.Debug("tabid: identity re-check failed", "error", err)
	}
}
