package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"device-tracker/internal/cache"
	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"
)

type MappingHandler struct {
	Service  *services.MappingService
	CacheTTL time.Duration
}

func NewMappingHandler(s *services.MappingService, ttl time.Duration) *MappingHandler {
	return &MappingHandler{Service: s, CacheTTL: ttl}
}

// Create binds one alias triple or an array of them. Every triple is
// resolved before any is written.
func (h *MappingHandler) Create(w http.ResponseWriter, r *http.Request) {
	triples, err := decodeOneOrMany[models.AliasTriple](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	mappings, err := h.Service.CreateMappings(r.Context(), triples, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateMappingCaches(r.Context())
	cache.PreWarmKey(cache.MappingAvailable, func(ctx context.Context) ([]byte, error) {
		avail, err := h.Service.Available(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(avail)
	}, h.CacheTTL)

	if len(mappings) == 1 {
		utils.JSON(w, http.StatusCreated, mappings[0])
		return
	}
	utils.JSON(w, http.StatusCreated, mappings)
}

// Available returns the next unmapped serial number and device id
func (h *MappingHandler) Available(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, cache.MappingAvailable, h.CacheTTL, func() (interface{}, error) {
		return h.Service.Available(r.Context())
	})
}

// FetchMap resolves the mapping that holds an alias
func (h *MappingHandler) FetchMap(w http.ResponseWriter, r *http.Request) {
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

	serveCached(w, r, cache.MappingFetchKey(string(t), q.ID), h.CacheTTL, func() (interface{}, error) {
		return h.Service.ResolveMapping(r.Context(), q.ID, t)
	})
}

func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, mappings)
}

func (h *MappingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ref, err := refVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdateMappingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	mapping, err := h.Service.UpdateMapping(r.Context(), ref, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateMappingCaches(r.Context())

	utils.JSON(w, http.StatusOK, mapping)
}

func (h *MappingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref, err := refVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateMappingCaches(r.Context())

	w.WriteHeader(http.StatusNoContent)
}
