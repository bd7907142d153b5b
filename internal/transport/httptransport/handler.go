package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cashbridge/advance-engine/internal/advance"
	"github.com/cashbridge/advance-engine/internal/app"
	"github.com/cashbridge/advance-engine/internal/transport/advancedto"
)

type Handler struct {
	svc app.ApprovalService
}

func NewHandler(svc app.ApprovalService) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the approval API on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /approvals", h.Approve)
	mux.HandleFunc("GET /approvals/{id}", h.Run)
	mux.HandleFunc("GET /graph", h.Graph)
	mux.HandleFunc("GET /healthz", h.Health)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var in advancedto.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	run, records, err := h.svc.Approve(r.Context(), in.ToApp())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, advancedto.RunDocument(run, records))
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	run, records, err := h.svc.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advancedto.RunDocument(run, records))
}

func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.svc.RenderGraph(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, advance.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, advance.ErrAccountNotFound),
		errors.Is(err, advance.ErrRunNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
