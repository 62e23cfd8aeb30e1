package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yegors/livescribe/internal/capture"
	"github.com/yegors/livescribe/internal/transcript"
	"github.com/yegors/livescribe/internal/websocket"
	"github.com/yegors/livescribe/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	controller    *capture.Controller
	transcriptLog *transcript.Log
	wsServer      *websocket.Server
	logger        *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(controller *capture.Controller, transcriptLog *transcript.Log, wsServer *websocket.Server, logger *logger.Logger) *Handler {
	return &Handler{
		controller:    controller,
		transcriptLog: transcriptLog,
		wsServer:      wsServer,
		logger:        logger.Named("api-handler"),
	}
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StartCapture begins a capture session
func (h *Handler) StartCapture(w http.ResponseWriter, r *http.Request) {
	err := h.controller.Start()
	switch {
	case err == nil:
		h.logger.Info("Capture started via API")
		h.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeCaptureState,
			Data: map[string]any{"state": capture.StateCapturing},
		})
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "capturing",
			"timestamp": time.Now().UTC(),
		})

	case errors.Is(err, capture.ErrAlreadyCapturing):
		WriteJSON(w, http.StatusConflict, map[string]any{
			"error": "capture session already active",
		})

	case errors.Is(err, capture.ErrPermissionDenied):
		// A denied microphone is a user notice, not a server fault
		h.logger.Warn("Capture start denied", logger.Error(err))
		WriteJSON(w, http.StatusForbidden, map[string]any{
			"error":  "microphone access denied",
			"notice": "Check that the capture device is available and accessible",
		})

	default:
		h.logger.Error("Failed to start capture", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "failed to start capture",
		})
	}
}

// StopCapture ends the capture session; stopping an inactive session is a no-op
func (h *Handler) StopCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(); err != nil {
		h.logger.Error("Failed to stop capture", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "failed to stop capture",
		})
		return
	}

	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeCaptureState,
		Data: map[string]any{"state": capture.StateStopped},
	})
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "stopped",
		"timestamp": time.Now().UTC(),
	})
}

// GetStatus returns the capture state and session info
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	state, sessionStart := h.controller.Status()

	response := map[string]any{
		"timestamp":  time.Now().UTC(),
		"state":      state,
		"transcript": h.transcriptLog.Len(),
	}
	if state == capture.StateCapturing {
		response["session_started_at"] = sessionStart
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetTranscript returns the ordered list of accepted transcriptions
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	entries := h.transcriptLog.Snapshot()

	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp":      time.Now().UTC(),
		"count":          len(entries),
		"transcriptions": entries,
	})
}

// ClearTranscript discards all accepted transcriptions
func (h *Handler) ClearTranscript(w http.ResponseWriter, r *http.Request) {
	h.transcriptLog.Clear()
	h.logger.Info("Transcript cleared via API")

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "cleared",
		"timestamp": time.Now().UTC(),
	})
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("WebSocket connection request received")
	h.wsServer.HandleConnection(w, r)
}
