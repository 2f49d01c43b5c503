// Package health serves the liveness and debug endpoints of a sync session.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/catenarymaps/spruce-sync/internal/connection"
	"github.com/catenarymaps/spruce-sync/internal/subscription"
)

// StateSource reports the connection lifecycle state.
type StateSource interface {
	State() connection.State
}

// TripSource reports the active trip subscription.
type TripSource interface {
	Active() (subscription.TripSubscription, bool)
}

// StatusResponse is the JSON body for GET /health.
type StatusResponse struct {
	Status     string           `json:"status"`
	Connection connection.State `json:"connection"`
	SessionID  uuid.UUID        `json:"session_id"`
	Timestamp  time.Time        `json:"timestamp"`
}

// TripResponse is the JSON body for GET /debug/trip.
type TripResponse struct {
	Active    bool           `json:"active"`
	Partition string         `json:"partition,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// Handler serves session health.
type Handler struct {
	state   StateSource
	trips   TripSource
	session uuid.UUID
}

// NewHandler creates a Handler.
func NewHandler(state StateSource, trips TripSource, session uuid.UUID) *Handler {
	return &Handler{state: state, trips: trips, session: session}
}

// Routes returns the router for the health endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/debug/trip", h.Trip)
	return r
}

// Health handles GET /health. It answers 503 unless the socket is connected.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.state.State()

	resp := StatusResponse{
		Status:     "ok",
		Connection: state,
		SessionID:  h.session,
		Timestamp:  time.Now().UTC(),
	}
	code := http.StatusOK
	if state != connection.StateConnected {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

// Trip handles GET /debug/trip.
func (h *Handler) Trip(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.trips.Active()
	resp := TripResponse{Active: ok}
	if ok {
		resp.Partition = sub.Partition
		resp.Params = sub.Params
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
