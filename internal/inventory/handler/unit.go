package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// UnitHandler handles per-unit endpoints
type UnitHandler struct {
	service     *service.InventoryService
	logger      *logger.Logger
	sampleLimit int
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(svc *service.InventoryService, log *logger.Logger, sampleLimit int) *UnitHandler {
	return &UnitHandler{
		service:     svc,
		logger:      log,
		sampleLimit: sampleLimit,
	}
}

// CreateUnitsRequest is the payload for generating additional units
type CreateUnitsRequest struct {
	Count int `json:"count" validate:"required,min=1,max=1000"`
}

// CreateBatch generates additional units for a product, continuing the
// sequence from the current live unit count
func (h *UnitHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req CreateUnitsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.CreateUnits(r.Context(), productID, req.Count, actorID(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if h.sampleLimit > 0 && len(batch.Units) > h.sampleLimit {
		batch.Units = batch.Units[:h.sampleLimit]
	}

	// A partial batch is still a 201: the units that exist are real.
	// Callers compare created vs requested.
	httputil.Created(w, batch)
}

// ListByProduct lists a product's units with optional status filter
func (h *UnitHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	status := r.URL.Query().Get("status")
	page, perPage := pagination(r)

	units, total, err := h.service.ListUnits(r.Context(), productID, status, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, units, paginationMeta(page, perPage, total))
}

// Get gets a unit by its human-readable identifier
func (h *UnitHandler) Get(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitId")

	unit, err := h.service.GetUnit(r.Context(), unitID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// UpdateStatusRequest is the payload for changing a unit's status. Notes
// are optional; when absent the existing notes stay as they are.
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty"`
}

// UpdateStatus changes a unit's status
func (h *UnitHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitId")

	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	unit, err := h.service.UpdateUnitStatus(r.Context(), unitID, req.Status, req.Notes, actorID(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// UpdateNotesRequest is the payload for replacing a unit's notes
type UpdateNotesRequest struct {
	Notes *string `json:"notes"`
}

// UpdateNotes replaces a unit's free-form notes
func (h *UnitHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitId")

	var req UpdateNotesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	unit, err := h.service.UpdateUnitNotes(r.Context(), unitID, req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// Delete deletes a unit and decrements the owning product's quantity
func (h *UnitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitId")

	if err := h.service.DeleteUnit(r.Context(), unitID, actorID(r)); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// QRCode serves the unit's scan code as a PNG, re-rendered from the
// stored payload on every request
func (h *UnitHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitId")

	png, err := h.service.RenderQRCode(r.Context(), unitID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
