package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/ticketchain/service/metrics"
	natspkg "github.com/brojonat/ticketchain/service/nats"
)

const sseKeepaliveInterval = 10 * time.Second

// handleStreamTickets streams ticket events as Server-Sent Events.
// GET /api/stream/tickets?kind=submitted|confirmed
// Without kind, every ticket event is streamed.
func handleStreamTickets(subscriber natspkg.Subscriber, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		subject := natspkg.StreamSubjects
		switch kind {
		case "":
			kind = "all"
		case natspkg.EventSubmitted, natspkg.EventConfirmed:
			subject = natspkg.SubjectPrefix + kind
		default:
			writeError(w, fmt.Sprintf("invalid kind: must be %q or %q", natspkg.EventSubmitted, natspkg.EventConfirmed), http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}

		ctx := r.Context()
		logger.DebugContext(ctx, "SSE client connected", "kind", kind, "remote_addr", r.RemoteAddr)

		events := make(chan *natspkg.TicketEvent, 10)
		subErr := make(chan error, 1)
		go func() {
			subErr <- subscriber.Subscribe(ctx, subject, func(event *natspkg.TicketEvent) {
				select {
				case events <- event:
				case <-ctx.Done():
				}
			})
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"kind\":%q}\n\n", kind)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event := <-events:
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent(event.Kind)
				}
				logger.DebugContext(ctx, "sent ticket event", "kind", event.Kind, "hash", event.Hash)

			case err := <-subErr:
				if err != nil {
					logger.ErrorContext(ctx, "ticket subscription failed", "error", err)
					fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
					flusher.Flush()
				}
				return

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected", "kind", kind, "remote_addr", r.RemoteAddr)
				return
			}
		}
	})
}
