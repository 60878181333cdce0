package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studyroom-relay/internal/logger"
	"studyroom-relay/internal/models"
	"studyroom-relay/internal/room"
	"studyroom-relay/internal/websocket"
)

const attachTimeout = 10 * time.Second

type RoomHandler struct {
	registry *room.Registry
	upgrader *websocket.Upgrader
	log      *logger.Logger
}

func NewRoomHandler(registry *room.Registry, upgrader *websocket.Upgrader, log *logger.Logger) *RoomHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RoomHandler{registry: registry, upgrader: upgrader, log: log}
}

// Sessions returns the room's live study sessions.
func (h *RoomHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		NotFound(w, r)
		return
	}

	sessions, err := h.registry.Sessions(r.Context(), roomID)
	if err != nil {
		h.log.Warn("sessions.failed", "room", roomID, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResp("UNAVAILABLE", "Room is not available", r))
		return
	}
	writeJSON(w, http.StatusOK, models.SessionListData{Sessions: sessions})
}

// WebSocket upgrades the request and joins the connection to its room until
// either side closes.
func (h *RoomHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		NotFound(w, r)
		return
	}
	if !websocket.IsUpgrade(r) {
		w.Header().Set("Upgrade", "websocket")
		writeJSON(w, http.StatusUpgradeRequired, errorResp("UPGRADE_REQUIRED", "Expected a websocket upgrade", r))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		h.log.Debug("ws.upgrade_failed", "room", roomID, "err", err)
		return
	}
	defer conn.Release()

	// The request context is not usable once the connection is hijacked.
	ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
	rm, err := h.registry.Attach(ctx, roomID, conn)
	cancel()
	if err != nil {
		h.log.Warn("ws.attach_failed", "room", roomID, "conn", conn.ID(), "err", err)
		code := models.CloseInternalError
		if errors.Is(err, room.ErrRegistryClosed) {
			code = models.CloseGoingAway
		}
		conn.Close(code, "room unavailable")
		return
	}
	defer rm.Detach(conn)

	err = conn.ReadPump(func(f models.Frame) error {
		return rm.Deliver(conn, f)
	})
	if err != nil && !websocket.ExpectedClose(err) && !errors.Is(err, room.ErrRoomClosed) {
		h.log.Debug("ws.read_ended", "room", roomID, "conn", conn.ID(), "err", err)
	}
}
