package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// KeepAlive is the interval between SSE comment frames on an idle stream.
var KeepAlive = 15 * time.Second

// SSEHandler streams shell events. Clients may narrow the stream with
// ?feeds=title,identity,closed, ?tab=<target id> and ?title_tab_id=<id>.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		filter := parseFilter(r.URL.Query())

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		fmt.Fprint(w, "retry: 3000\n\n")
		flusher.Flush()

		id, ch := broker.Subscribe(filter)
		defer broker.Unsubscribe(id)

		ping := time.NewTicker(KeepAlive)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case m, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(m.Event)
				if err != nil {
					slog.Warn("feed: encode event", "kind", m.Event.Kind, "error", err)
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", m.Seq, m.Event.Kind, data)
				flusher.Flush()
			}
		}
	}
}

func parseFilter(q url.Values) Filter {
	return Filter{
		Kinds:      parseFeeds(q.Get("feeds")),
		Tab:        strings.TrimSpace(q.Get("tab")),
		TitleTabID: strings.TrimSpace(q.Get("title_tab_id")),
	}
}

func parseFeeds(q string) map[string]bool {
	if q == "" {
		return nil
	}
	feeds := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		if f = strings.TrimSpace(f); f != "" {
			feeds[f] = true
		}
	}
	if len(feeds) == 0 {
		return nil
	}
	return feeds
}
