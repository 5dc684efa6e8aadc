package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"device-tracker/internal/cache"
	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"

	"github.com/gorilla/mux"
)

type PacklistHandler struct {
	Service  *services.PacklistService
	Reports  *services.ReportService
	CacheTTL time.Duration
}

func NewPacklistHandler(s *services.PacklistService, reports *services.ReportService, ttl time.Duration) *PacklistHandler {
	return &PacklistHandler{Service: s, Reports: reports, CacheTTL: ttl}
}

// Create packs a mapped device into a carton
func (h *PacklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.Service.Assign(r.Context(), req, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidatePacklistCaches(r.Context())

	utils.JSON(w, http.StatusCreated, entry)
}

// Fetch lists entries by cartonId, batchId or shipmentDate
func (h *PacklistHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var q models.PacklistQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := models.ParsePacklistFilter(q.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	serveCached(w, r, cache.PacklistFetchKey(string(filter), q.Value), h.CacheTTL, func() (interface{}, error) {
		return h.Service.Query(r.Context(), filter, q.Value)
	})
}

func (h *PacklistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ref, err := refVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdatePacklistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.Service.Reassign(r.Context(), ref, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidatePacklistCaches(r.Context())

	utils.JSON(w, http.StatusOK, entry)
}

func (h *PacklistHandler) DeleteByCarton(w http.ResponseWriter, r *http.Request) {
	cartonID := mux.Vars(r)["cartonId"]
	n, err := h.Service.UnassignByCarton(r.Context(), cartonID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidatePacklistCaches(r.Context())

	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"cartonId": cartonID,
		"deleted":  n,
	})
}

// Export renders a manifest. With archive=true the file is uploaded and
// its URL returned instead of the file itself.
func (h *PacklistHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := models.ParsePacklistFilter(q.Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	manifest, err := h.Reports.PacklistManifest(r.Context(), filter, q.Get("value"), q.Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if archive, _ := strconv.ParseBool(q.Get("archive")); archive {
		if err := h.Reports.ArchiveManifest(r.Context(), manifest); err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusCreated, map[string]string{
			"filename": manifest.Filename,
			"url":      manifest.URL,
		})
		return
	}

	w.Header().Set("Content-Type", manifest.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", manifest.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(manifest.Data)))
	w.Write(manifest.Data)
}
