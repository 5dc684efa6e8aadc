package handlers

import (
	"errors"
	"log"
	"net/http"

	"device-tracker/internal/models"
	"device-tracker/internal/services"
	"device-tracker/pkg/utils"
)

type AuthHandler struct {
	Service *services.UserService
}

func NewAuthHandler(s *services.UserService) *AuthHandler {
	return &AuthHandler{Service: s}
}

// Signup handles user registration
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	authResp, err := h.Service.Signup(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusCreated, authResp)
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	authResp, err := h.Service.Login(r.Context(), &req)
	if errors.Is(err, services.ErrInvalidCredentials) {
		log.Printf("[Auth] failed login for %q from %s", req.Email, r.RemoteAddr)
		utils.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	if errors.Is(err, services.ErrAccountSuspended) {
		utils.Error(w, http.StatusForbidden, "Account suspended. Please contact administrator.")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, authResp)
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetUser(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}
