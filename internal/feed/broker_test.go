package feed

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/tabtitle/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titleEvent(tab, id, title string) shell.Event {
	return shell.Event{Kind: shell.EventTitle, Tab: tab, TitleTabID: id, RealTitle: "Editor", Title: title}
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	id1, ch1 := b.Subscribe(Filter{})
	_, ch2 := b.Subscribe(Filter{})
	assert.Equal(t, 2, b.ClientCount())

	evt := titleEvent("T1", "1_a", "x")
	b.Publish(evt)
	assert.Equal(t, Message{Seq: 1, Event: evt}, <-ch1)
	assert.Equal(t, Message{Seq: 1, Event: evt}, <-ch2)

	b.Unsubscribe(id1)
	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 1, b.ClientCount())
	b.Unsubscribe(id1)
}

func TestBrokerFiltersByKindAndTab(t *testing.T) {
	b := NewBroker()
	_, byTab := b.Subscribe(Filter{Tab: "T2"})
	_, byKind := b.Subscribe(Filter{Kinds: map[string]bool{shell.EventIdentity: true}})
	_, byID := b.Subscribe(Filter{TitleTabID: "1_a"})

	b.Emit(titleEvent("T1", "1_a", "one"))
	b.Emit(titleEvent("T2", "2_b", "two"))
	b.Emit(shell.Event{Kind: shell.EventIdentity, Tab: "T2", TitleTabID: "3_c"})

	require.Len(t, byTab, 2)
	assert.Equal(t, "two", (<-byTab).Event.Title)
	assert.Equal(t, shell.EventIdentity, (<-byTab).Event.Kind)

	require.Len(t, byKind, 1)
	assert.Equal(t, "3_c", (<-byKind).Event.TitleTabID)

	require.Len(t, byID, 1)
	assert.Equal(t, "one", (<-byID).Event.Title)
}

func TestBrokerReplaysLatestState(t *testing.T) {
	b := NewBroker()
	b.Emit(titleEvent("T1", "1_a", "old"))
	b.Emit(titleEvent("T2", "2_b", "other"))
	b.Emit(titleEvent("T1", "1_a", "new"))
	assert.Equal(t, 2, b.TabCount())

	_, ch := b.Subscribe(Filter{})
	require.Len(t, ch, 2)
	first, second := <-ch, <-ch
	assert.Equal(t, "other", first.Event.Title)
	assert.Equal(t, "new", second.Event.Title)
	assert.Less(t, first.Seq, second.Seq)

	_, onlyT1 := b.Subscribe(Filter{Tab: "T1"})
	require.Len(t, onlyT1, 1)
	assert.Equal(t, "new", (<-onlyT1).Event.Title)
}

func TestBrokerForgetsClosedTabs(t *testing.T) {
	b := NewBroker()
	_, live := b.Subscribe(Filter{})
	b.Emit(titleEvent("T1", "1_a", "x"))
	b.Emit(shell.Event{Kind: shell.EventClosed, Tab: "T1", TitleTabID: "1_a"})
	assert.Zero(t, b.TabCount())

	require.Len(t, live, 2)
	<-live
	assert.Equal(t, shell.EventClosed, (<-live).Event.Kind)

	_, late := b.Subscribe(Filter{})
	assert.Empty(t, late)
}

func TestBrokerDropsForSlowClient(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe(Filter{})
	for i := 0; i < subscriberBufSize+3; i++ {
		b.Publish(titleEvent("T1", "1_a", "x"))
	}
	assert.Len(t, ch, subscriberBufSize)
	assert.EqualValues(t, 3, b.Dropped())
}

func TestParseFilter(t *testing.T) {
	assert.Nil(t, parseFeeds(""))
	assert.Nil(t, parseFeeds(" , "))
	assert.Equal(t, map[string]bool{"title": true, "identity": true}, parseFeeds("title, identity"))

	q := url.Values{"feeds": {"title"}, "tab": {" T1 "}, "title_tab_id": {"1_a"}}
	assert.Equal(t, Filter{Kinds: map[string]bool{"title": true}, Tab: "T1", TitleTabID: "1_a"}, parseFilter(q))
	assert.Equal(t, Filter{}, parseFilter(url.Values{}))
}

func TestSSEHandlerFiltersEvents(t *testing.T) {
	b := NewBroker()
	b.Emit(titleEvent("T1", "1_a", "replayed"))
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?feeds=title&tab=T1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	b.Emit(shell.Event{Kind: shell.EventIdentity, Tab: "T1", TitleTabID: "2_b"})
	b.Emit(titleEvent("T2", "3_c", "other tab"))
	b.Emit(titleEvent("T1", "1_a", "live"))

	rd := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 6 {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "retry:") && !strings.HasPrefix(line, ":") {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, []string{
		"id: 1",
		"event: title",
		`data: {"kind":"title","tab":"T1","title_tab_id":"1_a","real_title":"Editor","title":"replayed"}`,
		"id: 4",
		"event: title",
		`data: {"kind":"title","tab":"T1","title_tab_id":"1_a","real_title":"Editor","title":"live"}`,
	}, lines)
}
