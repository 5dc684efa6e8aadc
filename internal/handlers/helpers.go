package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"device-tracker/internal/cache"
	"device-tracker/internal/middleware"
	"device-tracker/internal/models"
	"device-tracker/pkg/utils"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies; bulk whitelist uploads are the largest
const maxBodyBytes = 8 << 20

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrDuplicate):
		utils.JSON(w, http.StatusConflict, utils.ErrorBody{Error: err.Error(), ExistingIDs: models.DuplicateIDs(err)})
	case errors.Is(err, models.ErrNotFound):
		utils.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		utils.Error(w, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	default:
		log.Printf("[API] %s %s failed (req=%s): %v", r.Method, r.URL.Path, middleware.GetRequestID(r.Context()), err)
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return models.NewValidationError("body", "invalid request body: %v", err)
	}
	return nil
}

// decodeOneOrMany accepts either a single object or an array of them
func decodeOneOrMany[T any](r *http.Request) ([]T, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, models.NewValidationError("body", "unreadable request body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, models.NewValidationError("body", "request body is empty")
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, models.NewValidationError("body", "invalid request body: %v", err)
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, models.NewValidationError("body", "invalid request body: %v", err)
	}
	return []T{item}, nil
}

// actor is the authenticated user behind a mutating call
func actor(r *http.Request) int {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

func refVar(r *http.Request) (int64, error) {
	ref, err := strconv.ParseInt(mux.Vars(r)["ref"], 10, 64)
	if err != nil || ref <= 0 {
		return 0, models.NewValidationError("ref", "must be a positive integer")
	}
	return ref, nil
}

// serveCached answers from Redis when possible and fills it on a miss.
func serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, fetch func() (interface{}, error)) {
	if data, ok := cache.GetCached(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Write(data)
		return
	}

	result, err := fetch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cache.SetCached(r.Context(), key, data, ttl)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.Write(data)
}
