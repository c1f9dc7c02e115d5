package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/types"
)

const maxAnalyzeBody = 5 << 20

// Analyzer is an analysis backend that can report whether it is usable.
type Analyzer interface {
	analysis.Analyzer
	Configured() bool
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Logs []types.LogEntry `json:"logs"`
}

// AnalyzeHandler handles POST /api/analyze.
type AnalyzeHandler struct {
	logger   *zap.Logger
	analyzer Analyzer
}

// NewAnalyzeHandler creates an AnalyzeHandler. A nil analyzer reports
// not configured.
func NewAnalyzeHandler(a Analyzer, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{logger: logger.Named("analyze"), analyzer: a}
}

// ServeHTTP implements http.Handler.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if h.analyzer == nil || !h.analyzer.Configured() {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, analysis.NotConfigured())
		return
	}

	var req AnalyzeRequest
	body := io.LimitReader(r.Body, maxAnalyzeBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Logs) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "No logs provided")
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), req.Logs)
	if err != nil {
		h.logger.Warn("Analysis unavailable", zap.Error(err))
		writeJSON(w, h.logger, http.StatusBadGateway, analysis.Unavailable(err.Error()))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}
