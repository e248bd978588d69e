package handler

import (
	"net/http"

	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ScanHandler resolves scanned unit tags
type ScanHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(svc *service.InventoryService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		service: svc,
		logger:  log,
	}
}

// Resolve resolves a scanned payload to its unit and product
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Error(w, errors.BadRequest("code query parameter is required"))
		return
	}
	// Reject excessively long input to avoid unnecessary DB queries
	if len(code) > 200 {
		httputil.Error(w, errors.BadRequest("code too long"))
		return
	}

	result, err := h.service.ResolveScan(r.Context(), code)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
