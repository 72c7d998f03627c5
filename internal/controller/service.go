package controller

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/tabtitle/internal/cdptab"
	"github.com/dgnsrekt/tabtitle/internal/shell"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

// Tabs is the set of managed tabs. *cdptab.Client implements it.
type Tabs interface {
	Shell(tabID string) (*shell.Shell, error)
	Shells() []*shell.Shell
}

// Delivery reports how an inbound variable update was handled.
type Delivery struct {
	Tabs      int                `json:"tabs" doc:"Shells the update was offered to"`
	Applied   []string           `json:"applied" doc:"Tab identities that merged the update"`
	Variables titlefmt.Variables `json:"variables"`
}

// PromptResult is the outcome of an in-page format prompt.
type PromptResult struct {
	Format    string      `json:"format,omitempty"`
	Cancelled bool        `json:"cancelled"`
	Tab       shell.State `json:"tab"`
}

// Service wraps the title operations exposed over HTTP.
type Service struct {
	tabs Tabs
}

func NewService(tabs Tabs) *Service {
	return &Service{tabs: tabs}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &cdptab.CodedError{Code: cdptab.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) ListTabs(ctx context.Context) ([]shell.State, error) {
	shells := s.tabs.Shells()
	out := make([]shell.State, 0, len(shells))
	for _, sh := range shells {
		st, err := sh.Snapshot(ctx)
		if err != nil {
			slog.Debug("controller: snapshot skipped", "error", err)
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) GetTab(ctx context.Context, tabID string) (shell.State, error) {
	if err := s.requireNonEmpty(tabID, "tab_id"); err != nil {
		return shell.State{}, err
	}
	sh, err := s.tabs.Shell(strings.TrimSpace(tabID))
	if err != nil {
		return shell.State{}, err
	}
	return sh.Snapshot(ctx)
}

// SetFormat replaces the title format of one tab. An empty format clears it
// and gives the page its own title back.
func (s *Service) SetFormat(ctx context.Context, tabID, format string) (shell.State, error) {
	if err := s.requireNonEmpty(tabID, "tab_id"); err != nil {
		return shell.State{}, err
	}
	sh, err := s.tabs.Shell(strings.TrimSpace(tabID))
	if err != nil {
		return shell.State{}, err
	}
	if err := sh.SetFormat(ctx, format); err != nil {
		return shell.State{}, err
	}
	return sh.Snapshot(ctx)
}

func (s *Service) PromptFormat(ctx context.Context, tabID string) (PromptResult, error) {
	if err := s.requireNonEmpty(tabID, "tab_id"); err != nil {
		return PromptResult{}, err
	}
	sh, err := s.tabs.Shell(strings.TrimSpace(tabID))
	if err != nil {
		return PromptResult{}, err
	}
	format, ok, err := sh.PromptFormat(ctx)
	if err != nil {
		return PromptResult{}, err
	}
	st, err := sh.Snapshot(ctx)
	if err != nil {
		return PromptResult{}, err
	}
	return PromptResult{Format: format, Cancelled: !ok, Tab: st}, nil
}

// ApplyVariables offers the update to every shell; each one applies its own
// identity check. Names are passed through as given, the same as updates
// raised inside the page.
func (s *Service) ApplyVariables(ctx context.Context, u shell.VariableUpdate) (Delivery, error) {
	if u == nil {
		return Delivery{}, &cdptab.CodedError{Code: cdptab.CodeValidation, Message: "variables are required"}
	}
	shells := s.tabs.Shells()
	d := Delivery{Tabs: len(shells), Applied: []string{}, Variables: u.Values()}
	for _, sh := range shells {
		applied, err := sh.ApplyVariables(ctx, u)
		if err != nil {
			slog.Warn("controller: apply variables failed", "title_tab_id", sh.TabIdentity(), "error", err)
			continue
		}
		if applied {
			d.Applied = append(d.Applied, sh.TabIdentity())
		}
	}
	slog.Debug("controller: variables delivered", "tabs", d.Tabs, "applied", len(d.Applied))
	return d, nil
}

// MatchVariables extracts variables from value with a regular expression and
// delivers them to the tab identified by titleTabID. With an empty pattern
// value is bound to names verbatim.
func (s *Service) MatchVariables(ctx context.Context, names, value, pattern, titleTabID string) (Delivery, error) {
	vars, err := titlefmt.MatchVariables(names, value, pattern)
	if err != nil {
		return Delivery{}, &cdptab.CodedError{Code: cdptab.CodeValidation, Message: err.Error(), Cause: err}
	}
	return s.ApplyVariables(ctx, shell.ScopedVariables{TabIdentity: titleTabID, Variables: vars})
}

// Render previews a format without touching any tab.
func (s *Service) Render(_ context.Context, format, realTitle string, vars titlefmt.Variables) (string, error) {
	return titlefmt.Render(format, realTitle, vars), nil
}
