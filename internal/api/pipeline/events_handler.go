package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xco2/tripspot/internal/api"
	"github.com/xco2/tripspot/internal/types"
)

const keepAliveInterval = 25 * time.Second

// Events godoc
// @Summary      Store change stream
// @Description  Server-sent events. The first "change" event carries the current snapshot, every
// @Description  following one the committed state after a write. Filter with ?collections=places,route.
// @Tags         Events
// @Produce      text/event-stream
// @Param        collections query string false "Comma separated: places, route, settings"
// @Success      200 {object} types.Change
// @Router       /events [get]
func (h *PipelineHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Events"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	collections, err := parseCollections(r.URL.Query().Get("collections"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Listeners run on the writer's goroutine, so they only hand the change
	// over. Each change carries a full snapshot; an undelivered one is replaced
	// by the newer one.
	changes := make(chan types.Change, 1)
	listener := func(c types.Change) {
		for {
			select {
			case changes <- c:
				return
			default:
			}
			select {
			case <-changes:
			default:
			}
		}
	}

	unsubscribe, err := h.store.Watch(ctx, listener, collections...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to watch store", slog.Any("error", err))
		api.ErrorFromDomain(w, r, err)
		return
	}
	defer unsubscribe()

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	var seq uint64
	for {
		select {
		case c := <-changes:
			seq++
			if c.Snapshot.Settings != nil {
				masked := c.Snapshot.Settings.Masked()
				c.Snapshot.Settings = &masked
			}
			data, err := json.Marshal(c)
			if err != nil {
				l.ErrorContext(ctx, "Failed to marshal change", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "id: %d\n", seq)
			fmt.Fprintf(w, "event: change\n")
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			l.DebugContext(ctx, "Event stream closed", slog.Uint64("events", seq))
			return
		}
	}
}

func parseCollections(raw string) ([]types.Collection, error) {
	if raw == "" {
		return nil, nil
	}
	var out []types.Collection
	for _, part := range strings.Split(raw, ",") {
		switch c := types.Collection(strings.TrimSpace(part)); c {
		case types.CollectionPlaces, types.CollectionRoute, types.CollectionSettings:
			out = append(out, c)
		case "":
		default:
			return nil, fmt.Errorf("unknown collection %s", strconv.Quote(part))
		}
	}
	return out, nil
}
