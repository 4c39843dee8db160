package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/receiver"
	"github.com/foxseedlab/roomcall/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultReceptionLimit = 20
	maxReceptionLimit     = 200
)

// Controller is the part of the receive pipeline the API drives.
type Controller interface {
	JoinRoom(roomID int, ssrcToIgnore uint32) error
	LeaveRoom(roomID int) error
	ReceiveUnicast() (int, error)
	StopUnicast()
	Status() receiver.Status
}

type Handler struct {
	cfg      *config.Config
	ctrl     Controller
	history  repository.Repository
	registry *prometheus.Registry
}

func NewHandler(cfg *config.Config, ctrl Controller, history repository.Repository) *Handler {
	return &Handler{
		cfg:      cfg,
		ctrl:     ctrl,
		history:  history,
		registry: newRegistry(ctrl),
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/rooms/{roomID}", h.joinRoom)
	r.Delete("/rooms/{roomID}", h.leaveRoom)
	r.Post("/unicast", h.receiveUnicast)
	r.Delete("/unicast", h.stopUnicast)
	r.Get("/status", h.status)
	r.Get("/receptions", h.receptions)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	return r
}

type joinRoomRequest struct {
	SSRCToIgnore *uint32 `json:"ssrc_to_ignore"`
}

func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.parseRoomID(w, r)
	if !ok {
		return
	}
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ssrc := h.cfg.SelfSSRC
	if req.SSRCToIgnore != nil {
		ssrc = *req.SSRCToIgnore
	}

	if err := h.ctrl.JoinRoom(roomID, ssrc); err != nil {
		slog.Error("failed to join room", "error", err, "room_id", roomID)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"room_id":        roomID,
		"group":          h.cfg.RoomGroup(roomID),
		"port":           h.cfg.RTPMulticastPort,
		"ssrc_to_ignore": ssrc,
	})
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.parseRoomID(w, r)
	if !ok {
		return
	}
	if err := h.ctrl.LeaveRoom(roomID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) receiveUnicast(w http.ResponseWriter, _ *http.Request) {
	port, err := h.ctrl.ReceiveUnicast()
	if err != nil {
		slog.Error("failed to start unicast receive", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"port": port})
}

func (h *Handler) stopUnicast(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.StopUnicast()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

type receptionResponse struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	RoomID     *int       `json:"room_id,omitempty"`
	Port       int        `json:"port"`
	SenderSSRC *uint32    `json:"sender_ssrc,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

func (h *Handler) receptions(w http.ResponseWriter, r *http.Request) {
	limit := defaultReceptionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxReceptionLimit {
			writeError(w, http.StatusBadRequest, "limit must be in 1.."+strconv.Itoa(maxReceptionLimit))
			return
		}
		limit = n
	}
	list, err := h.history.ListRecentReceptions(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list receptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list receptions")
		return
	}
	out := make([]receptionResponse, 0, len(list))
	for _, rec := range list {
		out = append(out, receptionResponse{
			ID:         rec.ID,
			Kind:       string(rec.Kind),
			RoomID:     rec.RoomID,
			Port:       rec.Port,
			SenderSSRC: rec.SenderSSRC,
			StartedAt:  rec.StartedAt,
			EndedAt:    rec.EndedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) parseRoomID(w http.ResponseWriter, r *http.Request) (int, bool) {
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "room id must be an integer")
		return 0, false
	}
	if err := h.cfg.CheckRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return roomID, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, receiver.ErrAlreadyJoined), errors.Is(err, receiver.ErrUnicastActive):
		return http.StatusConflict
	case errors.Is(err, receiver.ErrRoomNotJoined):
		return http.StatusNotFound
	case errors.Is(err, receiver.ErrNotStarted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("control request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
