package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"tkcollect/application"
	"tkcollect/domain/contracts"
	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// QtHandler serves the qt control channel the translation GUI connects to.
// The GUI receives translation requests over it and reports finished
// chapters back.
type QtHandler struct {
	bridge   *application.QtBridge
	repo     contracts.ChapterRepository
	cache    contracts.StatusCache
	bus      contracts.Broadcaster
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewQtHandler(
	bridge *application.QtBridge,
	repo contracts.ChapterRepository,
	cache contracts.StatusCache,
	bus contracts.Broadcaster,
) *QtHandler {
	return &QtHandler{
		bridge: bridge,
		repo:   repo,
		cache:  cache,
		bus:    bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logging.Default().WithComponent("qt_ws"),
	}
}

func (h *QtHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Transport("Websocket upgrade failed", "channel", "qt", "error", err.Error())
		return
	}

	sess := newSession(conn, h.logger)
	h.bus.Join(manhwa.QtGroup, sess)
	go sess.writePump()

	h.logger.Transport("GUI session opened", "session_id", sess.ID())

	defer func() {
		h.bus.Leave(manhwa.QtGroup, sess.ID())
		sess.close()
		h.logger.Transport("GUI session closed", "session_id", sess.ID())
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleDone(r.Context(), sess, raw)
	}
}

// handleDone processes a finished translation. A pending bridge waiter means
// a dispatcher owns the chapter's transitions and just needs waking. With no
// waiter the GUI translated on its own initiative, and the session applies
// the READY transition directly and broadcasts it.
func (h *QtHandler) handleDone(ctx context.Context, sess *session, raw []byte) {
	msg, err := parseTranslationDone(raw)
	if err != nil {
		sess.send(events.NewErrorMessage(err.Error()))
		return
	}

	if h.bridge.Complete(msg.SeriesID, msg.Chapter) {
		return
	}

	h.markTranslated(ctx, sess, msg)
}

func (h *QtHandler) markTranslated(ctx context.Context, sess *session, msg *TranslationDone) {
	chapter, err := h.repo.GetChapter(ctx, msg.SeriesID, msg.Chapter)
	if err != nil {
		h.logger.DispatchError("Failed to load chapter for GUI translation", err, msg.SeriesID)
		sess.send(events.NewErrorMessage(err.Error()))
		return
	}

	// The cache is the live view: an optimistic REMOVING may not have
	// reached the store yet when the GUI reports.
	if cached, ok := h.cache.Get(msg.SeriesID, msg.Chapter, manhwa.FieldTranslation); ok {
		chapter.SetField(manhwa.FieldTranslation, cached)
	}

	lifecycle := &manhwa.ChapterLifecycle{}
	if err := lifecycle.MarkReady(chapter, manhwa.FieldTranslation); err != nil {
		h.logger.DispatchError("Rejected GUI translation", err, msg.SeriesID)
		sess.send(events.NewErrorMessage(err.Error()))
		return
	}

	if err := h.repo.SaveChapter(ctx, chapter); err != nil {
		// A failed durable write must not leave a false READY behind.
		h.logger.DispatchError("Failed to persist GUI translation", err, msg.SeriesID)
		chapter.SetField(manhwa.FieldTranslation, manhwa.StatusError)
	}

	status := chapter.Field(manhwa.FieldTranslation)
	h.cache.Set(msg.SeriesID, msg.Chapter, manhwa.FieldTranslation, status)

	update := events.ChapterUpdate{Index: msg.Chapter, TranslationStatus: status}
	groupKey := manhwa.EncodeSeriesID(msg.SeriesID)
	if err := h.bus.Publish(groupKey, events.NewProgressMessage([]events.ChapterUpdate{update}, msg.Progress)); err != nil {
		h.logger.DispatchError("Failed to broadcast GUI translation", err, msg.SeriesID)
	}
}
