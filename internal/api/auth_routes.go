package api

import (
	"encoding/json"
	"net/http"

	"github.com/avillalba/watertariff/internal/auth"
)

type loginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	ExpiresIn string `json:"expires_in"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

// Login authenticates a user and issues an opaque API token
// @Summary Log in
// @Description Exchange username and password for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} loginResponse
// @Router /api/v2/auth/login [post]
func (h *V2Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.authSvc == nil {
		http.Error(w, "auth disabled", http.StatusNotImplemented)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.authSvc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	expiresIn := req.ExpiresIn
	if expiresIn == "" {
		expiresIn = "30d"
	}
	expiresAt, err := auth.ParseExpirationDuration(expiresIn)
	if err != nil {
		http.Error(w, "invalid expires_in", http.StatusBadRequest)
		return
	}

	_, raw, err := h.authSvc.CreateToken(r.Context(), user.ID, "login", user.Role, expiresAt)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: raw, Role: user.Role, Username: user.Username})
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin operator viewer"`
}

// RegisterUser creates a user account. The "users" object is only granted to
// admins, so the route is admin-only.
// @Summary Create user
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/v2/auth/users [post]
func (h *V2Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.authSvc == nil {
		http.Error(w, "auth disabled", http.StatusNotImplemented)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
