package ws

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"tkcollect/application"
	"tkcollect/domain/contracts"
	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// SeriesHandler serves the per-series websocket channel. Each connection
// observes one series' progress broadcasts and submits batch and removal
// requests for it.
type SeriesHandler struct {
	tasks    *application.TaskDispatcher
	removals *application.RemovalDispatcher
	bus      contracts.Broadcaster
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewSeriesHandler(
	tasks *application.TaskDispatcher,
	removals *application.RemovalDispatcher,
	bus contracts.Broadcaster,
) *SeriesHandler {
	return &SeriesHandler{
		tasks:    tasks,
		removals: removals,
		bus:      bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Web UI and GUI run on their own origins in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.Default().WithComponent("series_ws"),
	}
}

// Serve upgrades the connection and runs its read loop until the client
// goes away. Mounted at /ws/series/*; the wildcard tail is the toonkor
// series path, which may itself contain slashes.
func (h *SeriesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	seriesID := "/" + chi.URLParam(r, "*")
	if seriesID == "/" {
		http.Error(w, "missing series id", http.StatusBadRequest)
		return
	}
	groupKey := manhwa.EncodeSeriesID(seriesID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Transport("Websocket upgrade failed", "series_id", seriesID, "error", err.Error())
		return
	}

	sess := newSession(conn, h.logger)
	h.bus.Join(groupKey, sess)
	go sess.writePump()

	h.logger.Transport("Series session opened", "series_id", seriesID, "session_id", sess.ID())

	// Leave must run no matter how the read loop ends.
	defer func() {
		h.bus.Leave(groupKey, sess.ID())
		sess.close()
		h.logger.Transport("Series session closed", "series_id", seriesID, "session_id", sess.ID())
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(r.Context(), sess, seriesID, groupKey, raw)
	}
}

// handleFrame routes one inbound request. Validation failures answer only
// the requesting session; nothing is broadcast and no state is touched.
func (h *SeriesHandler) handleFrame(
	ctx context.Context,
	sess *session,
	seriesID string,
	groupKey manhwa.GroupKey,
	raw []byte,
) {
	msg, err := parseTaskMessage(raw)
	if err != nil {
		sess.send(events.NewErrorMessage(err.Error()))
		return
	}

	if msg.Task == string(manhwa.TaskRemove) {
		err = h.removals.SubmitRemoval(ctx, seriesID, groupKey, msg.refs(), msg.targets())
	} else {
		var kind manhwa.TaskKind
		kind, err = manhwa.ParseTaskKind(msg.Task)
		if err == nil {
			err = h.tasks.Submit(ctx, seriesID, groupKey, kind, msg.refs())
		}
	}

	if err != nil {
		h.logger.DispatchError("Request rejected", err, seriesID)
		sess.send(events.NewErrorMessage(err.Error()))
	}
}
