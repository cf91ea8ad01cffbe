package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	incidentapp "cityreport/internal/incidents/application"
	incidents "cityreport/internal/incidents/domain"
)

// Handler provides incident HTTP endpoints.
type Handler struct {
	service *incidentapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *incidentapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("incidents handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/incidents and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/incidents":
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == "/api/v1/incidents/stats":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStats(w, r)
	case r.URL.Path == "/api/v1/incidents/audit-logs":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAuditLogs(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/incidents/"):
		h.handleByID(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input incidents.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	incident, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, incident)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := incidents.Filter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
		Source: r.URL.Query().Get("source"),
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.AuditLogs(r.Context(), r.URL.Query().Get("action"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/incidents/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		incident, err := h.service.Get(r.Context(), parts[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, incident)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		var body struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		incident, err := h.service.UpdateStatus(r.Context(), parts[0], body.Status, body.Note)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, incident)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, incidents.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, incidents.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
