package handlers

import (
	"net/http"
	"time"

	"device-tracker/internal/cache"
	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"
)

type CartonHandler struct {
	Allocator *services.AllocatorService
	Batches   *services.BatchService
	Packlists *services.PacklistService
	CacheTTL  time.Duration
}

func NewCartonHandler(allocator *services.AllocatorService, batches *services.BatchService, packlists *services.PacklistService, ttl time.Duration) *CartonHandler {
	return &CartonHandler{
		Allocator: allocator,
		Batches:   batches,
		Packlists: packlists,
		CacheTTL:  ttl,
	}
}

// Create adds cartons to an existing batch
func (h *CartonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCartonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cartons, err := h.Allocator.AllocateCartonIDs(r.Context(), req.BatchID, req.CartonSize, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateCartonCaches(r.Context())

	utils.JSON(w, http.StatusCreated, cartons)
}

// Filter returns the next carton with room, optionally within one batch
func (h *CartonHandler) Filter(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batchId")
	serveCached(w, r, cache.CartonOpenKey(batchID), h.CacheTTL, func() (interface{}, error) {
		return h.Packlists.NextOpenCarton(r.Context(), batchID)
	})
}

func (h *CartonHandler) List(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batchId")
	if batchID == "" {
		writeError(w, r, models.NewValidationError("batchId", "is required"))
		return
	}
	cartons, err := h.Batches.ListCartons(r.Context(), batchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, cartons)
}
