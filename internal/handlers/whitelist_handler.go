package handlers

import (
	"net/http"

	"device-tracker/internal/cache"
	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"
)

type WhitelistHandler struct {
	Service *services.WhitelistService
}

func NewWhitelistHandler(s *services.WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{Service: s}
}

// Create registers one request group or an array of them
func (h *WhitelistHandler) Create(w http.ResponseWriter, r *http.Request) {
	reqs, err := decodeOneOrMany[models.WhitelistRequest](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.Service.RegisterBatch(r.Context(), reqs, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateWhitelistCaches(r.Context())

	utils.JSON(w, http.StatusCreated, entries)
}

func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	var t models.AliasType
	if v := r.URL.Query().Get("type"); v != "" {
		parsed, err := models.ParseAliasType(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t = parsed
	}

	entries, err := h.Service.List(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, entries)
}

func (h *WhitelistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, err := refVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.Service.Get(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, entry)
}

func (h *WhitelistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref, err := refVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateWhitelistCaches(r.Context())

	w.WriteHeader(http.StatusNoContent)
}
