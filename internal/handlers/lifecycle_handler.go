package handlers

import (
	"net/http"
	"time"

	"device-tracker/internal/cache"
	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"
)

type LifecycleHandler struct {
	Service  *services.LifecycleService
	CacheTTL time.Duration
}

func NewLifecycleHandler(s *services.LifecycleService, ttl time.Duration) *LifecycleHandler {
	return &LifecycleHandler{Service: s, CacheTTL: ttl}
}

func (h *LifecycleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.StageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.Service.RecordStage(r.Context(), req.ID, req.Type, req.Stage, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateLifecycleCaches(r.Context())

	utils.JSON(w, http.StatusCreated, entry)
}

// Fetch answers whether the device behind an alias is dispatched. Unknown
// devices are reported as not dispatched with status 200.
func (h *LifecycleHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var q models.AliasQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := models.ParseAliasType(string(q.Type))
	if err != nil {
		writeError(w, r, err)
		return
	}

	serveCached(w, r, cache.LifecycleFetchKey(string(t), q.ID), h.CacheTTL, func() (interface{}, error) {
		return h.Service.ResolveDispatchStatus(r.Context(), q.ID, t)
	})
}

func (h *LifecycleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.StageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.Service.UpdateStage(r.Context(), req.ID, req.Type, req.Stage, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateLifecycleCaches(r.Context())

	utils.JSON(w, http.StatusOK, entry)
}

func (h *LifecycleHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := models.ParseAliasType(q.Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := h.Service.History(r.Context(), q.Get("id"), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, history)
}
