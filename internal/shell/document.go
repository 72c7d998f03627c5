package shell

import (
	"context"
	"sync"

	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

// Document is the host application's document model, used as a store for
// the title format and the title variables.
type Document interface {
	TitleFormat(ctx context.Context) (string, error)
	SetTitleFormat(ctx context.Context, format string) error
	Variables(ctx context.Context) (titlefmt.Variables, error)
	// MergeVariables overwrites the given keys and keeps every other one.
	MergeVariables(ctx context.Context, updates titlefmt.Variables) error
}

// ChangeTracker receives the notifications wrapped around a format change
// so the host records the document as modified.
type ChangeTracker interface {
	BeforeChange(ctx context.Context) error
	AfterChange(ctx context.Context) error
}

// Prompter asks the user for a new title format. ok is false when the user
// cancelled.
type Prompter interface {
	PromptFormat(ctx context.Context, current string) (format string, ok bool, err error)
}

// IdentityPublisher exposes the tab identity to the page so outgoing
// requests can be tagged with it.
type IdentityPublisher interface {
	PublishIdentity(ctx context.Context, id string) error
}

// NopTracker ignores change notifications.
type NopTracker struct{}

func (NopTracker) BeforeChange(context.Context) error { return nil }
func (NopTracker) AfterChange(context.Context) error  { return nil }

// MemoryDocument keeps the format and variables in process memory.
type MemoryDocument struct {
	mu     sync.Mutex
	format string
	vars   titlefmt.Variables
}

func NewMemoryDocument(format string) *MemoryDocument {
	return &MemoryDocument{format: format}
}

func (d *MemoryDocument) TitleFormat(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format, nil
}

func (d *MemoryDocument) SetTitleFormat(_ context.Context, format string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.format = format
	return nil
}

func (d *MemoryDocument) Variables(context.Context) (titlefmt.Variables, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vars.Clone(), nil
}

func (d *MemoryDocument) MergeVariables(_ context.Context, updates titlefmt.Variables) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vars == nil {
		d.vars = titlefmt.Variables{}
	}
	d.vars.Merge(updates)
	return nil
}
