package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/types"
)

// Directory lists namespaces and pods.
type Directory interface {
	ListNamespaces(ctx context.Context) ([]types.NamespaceInfo, error)
	ListPods(ctx context.Context, namespace string) ([]types.PodInfo, error)
}

// NamespacesHandler handles GET /api/namespaces.
type NamespacesHandler struct {
	logger    *zap.Logger
	directory Directory
}

// NewNamespacesHandler creates a NamespacesHandler.
func NewNamespacesHandler(dir Directory, logger *zap.Logger) *NamespacesHandler {
	return &NamespacesHandler{logger: logger.Named("namespaces"), directory: dir}
}

// ServeHTTP implements http.Handler.
func (h *NamespacesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	namespaces, err := h.directory.ListNamespaces(r.Context())
	if err != nil {
		h.logger.Error("Error fetching namespaces", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	if namespaces == nil {
		namespaces = []types.NamespaceInfo{}
	}
	writeJSON(w, h.logger, http.StatusOK, namespaces)
}

// PodsHandler handles GET /api/pods?namespace=.
type PodsHandler struct {
	logger    *zap.Logger
	directory Directory
}

// NewPodsHandler creates a PodsHandler.
func NewPodsHandler(dir Directory, logger *zap.Logger) *PodsHandler {
	return &PodsHandler{logger: logger.Named("pods"), directory: dir}
}

// ServeHTTP implements http.Handler.
func (h *PodsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	namespace := r.URL.Query().Get("namespace")
	pods, err := h.directory.ListPods(r.Context(), namespace)
	if err != nil {
		h.logger.Error("Error fetching pods", zap.String("namespace", namespace), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	if pods == nil {
		pods = []types.PodInfo{}
	}
	writeJSON(w, h.logger, http.StatusOK, pods)
}
