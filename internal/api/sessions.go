package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/types"
)

// SessionsResponse is the wire format for GET /api/sessions.
type SessionsResponse struct {
	Sessions []stream.Info `json:"sessions"`
}

// HistoryResponse is the wire format for GET /api/sessions/{id}/history.
type HistoryResponse struct {
	ID      string           `json:"id"`
	Source  string           `json:"source"`
	Entries []types.LogEntry `json:"entries"`
}

// SessionsHandler lists, inspects and stops stream sessions.
type SessionsHandler struct {
	logger  *zap.Logger
	manager *stream.Manager
}

// NewSessionsHandler creates a SessionsHandler.
func NewSessionsHandler(m *stream.Manager, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{logger: logger.Named("sessions"), manager: m}
}

// List handles GET /api/sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SessionsResponse{Sessions: h.manager.List()})
}

// History handles GET /api/sessions/{id}/history.
func (h *SessionsHandler) History(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.notFound(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, HistoryResponse{
		ID:      s.ID(),
		Source:  s.Source().String(),
		Entries: s.History(),
	})
}

// Session handles GET and DELETE /api/sessions/{id}. DELETE stops the
// session and succeeds for ids that are already gone.
func (h *SessionsHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		s, err := h.manager.Get(id)
		if err != nil {
			h.notFound(w, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, s.Info())
	case http.MethodDelete:
		h.manager.Stop(id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionsHandler) notFound(w http.ResponseWriter, err error) {
	if errors.Is(err, stream.ErrSessionNotFound) {
		writeError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, h.logger, http.StatusInternalServerError, err.Error())
}
