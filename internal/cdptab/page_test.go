package cdptab

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/dgnsrekt/tabtitle/internal/config"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRule = config.Rule{Name: "test", URLPattern: "", Document: config.DocumentGraph}

// fakePage answers evaluations with canned JSON keyed by a substring of the
// expression.
type fakePage struct {
	mu      sync.Mutex
	answers map[string]string
	exprs   []string
	err     error
}

func (f *fakePage) eval(_ context.Context, expr string, res any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exprs = append(f.exprs, expr)
	if f.err != nil {
		return f.err
	}
	if res == nil {
		return nil
	}
	for key, answer := range f.answers {
		if strings.Contains(expr, key) {
			return json.Unmarshal([]byte(answer), res)
		}
	}
	return errors.New("no answer for " + expr)
}

func TestSessionStore(t *testing.T) {
	fp := &fakePage{answers: map[string]string{"getItem": `"1700000000000_ab12cd34"`}}
	store := sessionStore{eval: fp.eval}

	id, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1700000000000_ab12cd34", id)

	require.NoError(t, store.Store(context.Background(), "2_x"))
	assert.Contains(t, fp.exprs[1], `setItem("liebsTitleTabId", "2_x")`)
}

func TestSessionStoreWrapsErrors(t *testing.T) {
	fp := &fakePage{err: NewError(CodeEvalFailure, "page evaluation failed", errors.New("boom"))}
	_, err := sessionStore{eval: fp.eval}.Load(context.Background())
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeEvalFailure))
}

func TestGraphDocument(t *testing.T) {
	fp := &fakePage{answers: map[string]string{
		"String(":        `"%title% - %step%"`,
		"JSON.stringify": `"{\"step\":3,\"user\":\"Ada\"}"`,
	}}
	doc := graphDocument{eval: fp.eval}
	ctx := context.Background()

	format, err := doc.TitleFormat(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%title% - %step%", format)

	vars, err := doc.Variables(ctx)
	require.NoError(t, err)
	assert.Equal(t, titlefmt.Variables{"step": "3", "user": "Ada"}, vars)

	require.NoError(t, doc.SetTitleFormat(ctx, `say "hi"`))
	assert.Contains(t, fp.exprs[len(fp.exprs)-1], `liebsTabTitleFormat = "say \"hi\""`)

	n := len(fp.exprs)
	require.NoError(t, doc.MergeVariables(ctx, nil))
	assert.Len(t, fp.exprs, n)

	require.NoError(t, doc.MergeVariables(ctx, titlefmt.Variables{"user": "Bob"}))
	assert.Contains(t, fp.exprs[len(fp.exprs)-1], `Object.assign(extra.liebsTabTitleVars || {}, {"user":"Bob"})`)
}

func TestCanvasTrackerOrder(t *testing.T) {
	fp := &fakePage{}
	tr := canvasTracker{eval: fp.eval}
	require.NoError(t, tr.BeforeChange(context.Background()))
	require.NoError(t, tr.AfterChange(context.Background()))
	require.Len(t, fp.exprs, 2)
	assert.Contains(t, fp.exprs[0], `"litegraph:canvas"`)
	assert.Contains(t, fp.exprs[0], `subType: "before-change"`)
	assert.Contains(t, fp.exprs[1], `subType: "after-change"`)
}

func TestDialog(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   string
		ok     bool
	}{
		{name: "entered", answer: `"%title%!"`, want: "%title%!", ok: true},
		{name: "cancelled", answer: `null`},
		{name: "empty", answer: `""`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fp := &fakePage{answers: map[string]string{"prompt": tc.answer}}
			got, ok, err := dialog{eval: fp.eval}.PromptFormat(context.Background(), "old")
			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
			assert.Contains(t, fp.exprs[0], `window.prompt("Provide new title format:", "old")`)
		})
	}
}

func TestPageTitle(t *testing.T) {
	fp := &fakePage{answers: map[string]string{"document.title": `"Editor"`}}
	src := pageTitle{eval: fp.eval, feed: &titleFeed{}}

	text, err := src.current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Editor", text)

	require.NoError(t, src.SetTitle(context.Background(), "</title>"))
	assert.Contains(t, fp.exprs[1], `document.title = "</title>"`)
}

func TestTitleFeedKeepsLatestSubscription(t *testing.T) {
	feed := &titleFeed{}
	var first, second []string
	sub1 := feed.subscribe(func(s string) { first = append(first, s) })
	sub2 := feed.subscribe(func(s string) { second = append(second, s) })

	feed.deliver("a")
	sub1.Cancel()
	feed.deliver("b")
	sub2.Cancel()
	feed.deliver("c")

	assert.Empty(t, first)
	assert.Equal(t, []string{"a", "b"}, second)
}

func TestIdentityWidget(t *testing.T) {
	fp := &fakePage{}
	require.NoError(t, identityWidget{eval: fp.eval}.PublishIdentity(context.Background(), "9_z"))
	assert.Equal(t, `void (window.tabTitleTabId = "9_z")`, fp.exprs[0])
}

func TestHandleEventRoutesTitleBinding(t *testing.T) {
	tab := newTab(context.Background(), func() {}, "T1", "http://a", testRule, &Options{})
	var got []string
	tab.feed.subscribe(func(s string) { got = append(got, s) })

	tab.handleEvent(&runtime.EventBindingCalled{Name: titleBinding, Payload: "New title"})
	tab.handleEvent(&runtime.EventBindingCalled{Name: "somethingElse", Payload: "x"})
	assert.Equal(t, []string{"New title"}, got)

	tab.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{URL: "http://b"}})
	assert.Equal(t, "http://b", tab.URL())
	tab.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ParentID: "p", URL: "http://iframe"}})
	assert.Equal(t, "http://b", tab.URL())
	tab.handleEvent(&page.EventNavigatedWithinDocument{URL: "http://b#2"})
	assert.Equal(t, "http://b#2", tab.URL())
}

func TestTabWithoutShellIsNotReady(t *testing.T) {
	tab := newTab(context.Background(), func() {}, "T1", "", testRule, &Options{})
	_, err := tab.Shell()
	assert.True(t, HasCode(err, CodeTabNotReady))
}
