package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/service"
)

const keepAliveInterval = 15 * time.Second

type SSEHandler struct {
	eventBus  *service.EventBus
	status    func() domain.Status
	keepAlive time.Duration
}

func NewSSEHandler(eventBus *service.EventBus, status func() domain.Status) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		status:    status,
		keepAlive: keepAliveInterval,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendStatus writes st unless it equals the last status sent on this stream.
func sendStatus(w http.ResponseWriter, st domain.Status, last string) (string, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return last, err
	}
	payload := string(b)
	if payload == last {
		return last, nil
	}
	sseWrite(w, "status", payload)
	return payload, nil
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Events streams the pipeline status, starting with the current one, until
// the client goes away.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// the server write timeout is meant for uploads, not for this stream
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		// subscribe first so no change between the snapshot and the loop is lost
		ch := h.eventBus.Subscribe()
		defer h.eventBus.Unsubscribe(ch)

		last, _ := sendStatus(w, h.status(), "")

		ctx := r.Context()
		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case st, ok := <-ch:
				if !ok {
					return
				}
				last, _ = sendStatus(w, st, last)
			}
		}
	}
}
