package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ventas.io/internal/auth"
	"ventas.io/internal/sales"
)

const keepAliveInterval = 25 * time.Second

// streamSales handles Server-Sent Events for the caller's company sales. The
// security context is fixed for the life of the stream, so streams are closed
// after streamTTL and the client's reconnect resolves the session again.
func (a *API) streamSales(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	ch, err := a.sales.WatchSales(r.Context(), sc)
	if errors.Is(err, sales.ErrNoFeed) {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "streaming disabled")
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	expire := time.NewTimer(a.streamTTL)
	defer expire.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-expire.C:
			_, _ = w.Write([]byte(": stream expired\n\n"))
			_ = rc.Flush()
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
