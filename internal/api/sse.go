package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reservo/internal/live"
)

// sseSink writes snapshots of one subscription as server-sent events.
// send is only called from the feed goroutine.
type sseSink struct {
	ctx    context.Context
	cancel context.CancelFunc
	w      http.ResponseWriter
	rc     *http.ResponseController
	event  string
	view   live.SnapshotView[any]
}

func (s *HTTPServer) serveSSE(w http.ResponseWriter, r *http.Request, event string, run func(*sseSink) error) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rc := http.NewResponseController(w)
	// streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	sink := &sseSink{ctx: ctx, cancel: cancel, w: w, rc: rc, event: event}
	if err := run(sink); err != nil {
		s.writeError(w, r, err)
	}
}

// send writes v unless it repeats the last snapshot sent.
func (k *sseSink) send(v any) {
	if !k.view.Apply(v) {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		k.cancel()
		return
	}
	if _, err := fmt.Fprintf(k.w, "event: %s\ndata: %s\n\n", k.event, data); err != nil {
		k.cancel()
		return
	}
	if err := k.rc.Flush(); err != nil {
		k.cancel()
	}
}

// wait blocks until the client goes away or a write fails.
func (k *sseSink) wait(sub *live.Subscription) {
	<-sub.Done()
}
