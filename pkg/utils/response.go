package utils

import (
	"encoding/json"
	"net/http"
)

// JSON writes data with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorBody is the JSON shape of every API error
type ErrorBody struct {
	Error       string   `json:"error"`
	ExistingIDs []string `json:"existingBatchIds,omitempty"`
}

// Error writes {"error": message}
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}
