package cdptab

import (
	"sort"
	"sync"

	"github.com/chromedp/cdproto/target"
)

// Registry maps CDP target IDs to managed tabs.
type Registry struct {
	tabs map[target.ID]*Tab
	mu   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{tabs: make(map[target.ID]*Tab)}
}

// Register adds tab, replacing any tab with the same target ID.
func (r *Registry) Register(tab *Tab) {
	r.mu.Lock()
	r.tabs[tab.ID] = tab
	r.mu.Unlock()
}

func (r *Registry) Get(targetID target.ID) (*Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tab, ok := r.tabs[targetID]
	return tab, ok
}

func (r *Registry) GetByStringID(tabID string) (*Tab, bool) {
	return r.Get(target.ID(tabID))
}

// Remove drops the tab and returns it.
func (r *Registry) Remove(targetID target.ID) (*Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tab, ok := r.tabs[targetID]
	delete(r.tabs, targetID)
	return tab, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// List returns the tabs ordered by target ID.
func (r *Registry) List() []*Tab {
	r.mu.RLock()
	out := make([]*Tab, 0, len(r.tabs))
	for _, tab := range r.tabs {
		out = append(out, tab)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
