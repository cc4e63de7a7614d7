package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sdnlb/vip-switch/internal/service"
	"github.com/sdnlb/vip-switch/pkg/logger"
)

// AdminHandler provides the read-only administrative API: the observable
// state of the balancer (pool, registry, counters) over HTTP. It never
// mutates core state.
type AdminHandler struct {
	controller *service.Controller
	logger     *logger.Logger
	startTime  time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(controller *service.Controller, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		controller: controller,
		logger:     log.AdminLogger(),
		startTime:  time.Now(),
	}
}

// RegisterRoutes registers the admin endpoints on the given router
func (h *AdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/admin/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/admin/backends", h.handleBackends).Methods(http.MethodGet)
	r.HandleFunc("/admin/clients", h.handleClients).Methods(http.MethodGet)
	r.HandleFunc("/admin/stats", h.handleStats).Methods(http.MethodGet)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	VirtualIP    string `json:"virtual_ip"`
	LinkAttached bool   `json:"link_attached"`
	Backends     int    `json:"backends"`
	Clients      int    `json:"clients"`
	Uptime       string `json:"uptime"`
}

// BackendResponse represents one backend in API responses
type BackendResponse struct {
	Index int    `json:"index"`
	IP    string `json:"ip"`
	MAC   string `json:"mac"`
	Port  uint16 `json:"port"`
}

// ClientResponse represents one registered client in API responses
type ClientResponse struct {
	IP           string `json:"ip"`
	MAC          string `json:"mac"`
	BackendIndex int    `json:"backend_index"`
	Position     int    `json:"position"`
}

// handleHealth reports liveness and a state summary
func (h *AdminHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !h.controller.LinkAttached() {
		status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:       status,
		VirtualIP:    h.controller.VirtualAddress().String(),
		LinkAttached: h.controller.LinkAttached(),
		Backends:     len(h.controller.Backends()),
		Clients:      len(h.controller.Clients()),
		Uptime:       time.Since(h.startTime).String(),
	})
}

// handleBackends lists the configured backend pool in order
func (h *AdminHandler) handleBackends(w http.ResponseWriter, r *http.Request) {
	backends := h.controller.Backends()
	out := make([]BackendResponse, 0, len(backends))
	for i, b := range backends {
		out = append(out, BackendResponse{
			Index: i,
			IP:    b.IP.String(),
			MAC:   b.MAC.String(),
			Port:  b.Port,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleClients lists registered clients in insertion order
func (h *AdminHandler) handleClients(w http.ResponseWriter, r *http.Request) {
	clients := h.controller.Clients()
	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, ClientResponse{
			IP:           c.IP.String(),
			MAC:          c.MAC.String(),
			BackendIndex: c.BackendIndex,
			Position:     c.Position,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleStats returns controller counters
func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controller.Stats())
}

// writeJSON writes a JSON response
func (h *AdminHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
