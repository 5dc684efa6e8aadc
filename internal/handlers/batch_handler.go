package handlers

import (
	"net/http"
	"time"

	"device-tracker/internal/cache"
	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"

	"github.com/gorilla/mux"
)

type BatchHandler struct {
	Allocator *services.AllocatorService
	Service   *services.BatchService
	CacheTTL  time.Duration
}

func NewBatchHandler(allocator *services.AllocatorService, s *services.BatchService, ttl time.Duration) *BatchHandler {
	return &BatchHandler{Allocator: allocator, Service: s, CacheTTL: ttl}
}

// Create allocates batches and their cartons for one request or an array.
// A collision answers 409 with the offending ids in existingBatchIds.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	reqs, err := decodeOneOrMany[models.CreateBatchRequest](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Allocator.CreateBatches(r.Context(), reqs, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateCartonCaches(r.Context())

	utils.JSON(w, http.StatusCreated, result)
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, cache.BatchesAllKey(), h.CacheTTL, func() (interface{}, error) {
		return h.Service.ListBatches(r.Context())
	})
}

func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Service.GetBatch(r.Context(), mux.Vars(r)["batchId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, batch)
}

func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	batch, err := h.Service.UpdateBatch(r.Context(), mux.Vars(r)["batchId"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateCartonCaches(r.Context())

	utils.JSON(w, http.StatusOK, batch)
}

func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteBatch(r.Context(), mux.Vars(r)["batchId"]); err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateCartonCaches(r.Context())

	w.WriteHeader(http.StatusNoContent)
}
