package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/tabtitle/internal/cdptab"
	"github.com/dgnsrekt/tabtitle/internal/shell"
	"github.com/dgnsrekt/tabtitle/internal/tabid"
	"github.com/dgnsrekt/tabtitle/internal/title"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct{}

func (staticSource) Subscribe(func(string)) (title.Subscription, error) { return nopSub{}, nil }
func (staticSource) SetTitle(context.Context, string) error             { return nil }

type nopSub struct{}

func (nopSub) Cancel() {}

type fakeTabs map[string]*shell.Shell

func (f fakeTabs) Shell(tabID string) (*shell.Shell, error) {
	s, ok := f[tabID]
	if !ok {
		return nil, cdptab.NewError(cdptab.CodeTabNotFound, "tab not found", nil)
	}
	return s, nil
}

func (f fakeTabs) Shells() []*shell.Shell {
	out := make([]*shell.Shell, 0, len(f))
	for _, s := range f {
		out = append(out, s)
	}
	return out
}

func newShell(t *testing.T, name, id string) *shell.Shell {
	t.Helper()
	s := shell.New(shell.Config{
		Name:     name,
		Source:   staticSource{},
		Storage:  tabid.NewMemoryStorage(id),
		Document: shell.NewMemoryDocument("%title% %step%"),
	})
	t.Cleanup(s.Dispose)
	require.NoError(t, s.Start(context.Background()))
	return s
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("T1", "tab_id"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	err := s.requireNonEmpty("   ", "tab_id")
	var got *cdptab.CodedError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, cdptab.CodeValidation, got.Code)
	assert.Equal(t, "tab_id is required", got.Message)
}

func TestApplyVariablesReachesOnlyTargetTab(t *testing.T) {
	tabs := fakeTabs{"A": newShell(t, "A", "1_a"), "B": newShell(t, "B", "2_b")}
	svc := NewService(tabs)

	d, err := svc.ApplyVariables(context.Background(), shell.ScopedVariables{TabIdentity: "2_b", Variables: titlefmt.Variables{"step": "7"}})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Tabs)
	assert.Equal(t, []string{"2_b"}, d.Applied)

	stB, err := svc.GetTab(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, titlefmt.Variables{"step": "7"}, stB.Variables)
	stA, err := svc.GetTab(context.Background(), "A")
	require.NoError(t, err)
	assert.Empty(t, stA.Variables)
}

func TestApplyVariablesKeepsNamesVerbatim(t *testing.T) {
	tabs := fakeTabs{"A": newShell(t, "A", "1_a")}
	svc := NewService(tabs)

	// Same payload as a liebs-title-vars event raised inside the page.
	u, err := shell.DecodeVariableUpdate([]byte(`{"title_tab_id":"1_a","variables":{"bad name":"x","step":"3"}}`))
	require.NoError(t, err)
	d, err := svc.ApplyVariables(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_a"}, d.Applied)

	st, err := svc.GetTab(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, titlefmt.Variables{"bad name": "x", "step": "3"}, st.Variables)

	_, err = svc.ApplyVariables(context.Background(), nil)
	assert.True(t, cdptab.HasCode(err, cdptab.CodeValidation))
}

func TestMatchVariables(t *testing.T) {
	tabs := fakeTabs{"A": newShell(t, "A", "1_a")}
	svc := NewService(tabs)

	d, err := svc.MatchVariables(context.Background(), "w, h", "image 512x768.png", `(\d+)x(\d+)`, "1_a")
	require.NoError(t, err)
	assert.Equal(t, titlefmt.Variables{"w": "512", "h": "768"}, d.Variables)
	assert.Equal(t, []string{"1_a"}, d.Applied)

	_, err = svc.MatchVariables(context.Background(), "w", "x", `(`, "1_a")
	assert.True(t, cdptab.HasCode(err, cdptab.CodeValidation))

	d, err = svc.MatchVariables(context.Background(), "w,h", "512x768", "", "1_a")
	require.NoError(t, err)
	assert.Equal(t, titlefmt.Variables{"w,h": "512x768"}, d.Variables)
	assert.Equal(t, []string{"1_a"}, d.Applied)
}

func TestSetFormatUnknownTab(t *testing.T) {
	svc := NewService(fakeTabs{})
	_, err := svc.SetFormat(context.Background(), "nope", "%title%")
	assert.True(t, cdptab.HasCode(err, cdptab.CodeTabNotFound))
}

func TestSetFormatReturnsState(t *testing.T) {
	tabs := fakeTabs{"A": newShell(t, "A", "1_a")}
	svc := NewService(tabs)
	st, err := svc.SetFormat(context.Background(), "A", "[%title%]")
	require.NoError(t, err)
	assert.Equal(t, "[%title%]", st.Format)
	assert.Equal(t, "1_a", st.TitleTabID)
}

func TestListTabs(t *testing.T) {
	tabs := fakeTabs{"A": newShell(t, "A", "1_a"), "B": newShell(t, "B", "2_b")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	states, err := NewService(tabs).ListTabs(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestRender(t *testing.T) {
	out, err := NewService(fakeTabs{}).Render(context.Background(), "%TITLE% %x%", "Editor", nil)
	require.NoError(t, err)
	assert.Equal(t, "Editor (no value)", out)
}
