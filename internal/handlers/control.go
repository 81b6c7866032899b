package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"deskhealth/internal/logger"
	"deskhealth/internal/mode"
	"deskhealth/internal/models"
	"deskhealth/internal/state"
	"deskhealth/internal/websocket"
)

// maxBodySize bounds control request bodies
const maxBodySize = 1024

// Controller is the part of the simulator the HTTP surface drives
type Controller interface {
	Snapshot() state.Snapshot
	ApplyMode(text string) (models.Mode, bool)
	SetNotify(enabled bool)
	Healthy(ctx context.Context) error
	Stats() interface{}
}

// ControlHandler serves the inspection and control endpoints
type ControlHandler struct {
	ctrl     Controller
	hub      *websocket.Hub
	upgrader gws.Upgrader
}

// NewControlHandler creates a handler. hub may be nil, which disables /ws.
func NewControlHandler(ctrl Controller, hub *websocket.Hub) *ControlHandler {
	return &ControlHandler{
		ctrl: ctrl,
		hub:  hub,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local dashboards only
		},
	}
}

// Health reports whether the broker connection is up
func (h *ControlHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ctrl.Healthy(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("unhealthy: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// State returns the current mode, thresholds and notify flag
func (h *ControlHandler) State(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// Stats returns publish and dispatch counters
func (h *ControlHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Stats())
}

// SetMode applies a mode, the same as a message on the mode feed. The
// body is either the bare mode text or {"mode": "..."}.
func (h *ControlHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	text := string(body)
	var req struct {
		Mode string `json:"mode"`
	}
	if json.Unmarshal(body, &req) == nil && req.Mode != "" {
		text = req.Mode
	}

	m, ok := h.ctrl.ApplyMode(text)
	if !ok {
		h.writeError(w, http.StatusUnprocessableEntity, mode.ErrUnknownMode.Error())
		return
	}

	snap := h.ctrl.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":       m,
		"thresholds": snap.Thresholds,
	})
}

// SetNotify toggles external alert transmission
func (h *ControlHandler) SetNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil || req.Enabled == nil {
		h.writeError(w, http.StatusBadRequest, `expected {"enabled": true|false}`)
		return
	}

	h.ctrl.SetNotify(*req.Enabled)
	log := logger.WithComponent("control")
	log.Info().Bool("notify_enabled", *req.Enabled).Msg("notify flag changed")

	h.writeJSON(w, http.StatusOK, map[string]bool{"notify_enabled": *req.Enabled})
}

// LiveFeed upgrades to a websocket streaming readings and alerts
func (h *ControlHandler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeError(w, http.StatusNotFound, "live feed disabled")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log := logger.WithComponent("control")
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	websocket.NewClient(h.hub, conn).Serve()
}

// writeJSON writes a JSON response
func (h *ControlHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func (h *ControlHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
