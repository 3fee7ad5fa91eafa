package api

import (
	"encoding/json"
	"net/http"

	"github.com/avillalba/watertariff/internal/storage"
)

// GetEmailConfig returns the stored email configuration
// @Summary Get email settings
// @Tags settings
// @Produce json
// @Success 200 {object} storage.EmailConfig
// @Router /api/v2/settings/email [get]
func (h *V2Handler) GetEmailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.notifSvc.GetConfig(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		cfg = &storage.EmailConfig{}
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SaveEmailConfig stores the email configuration
// @Summary Save email settings
// @Tags settings
// @Accept json
// @Router /api/v2/settings/email [put]
func (h *V2Handler) SaveEmailConfig(w http.ResponseWriter, r *http.Request) {
	var req storage.EmailConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.notifSvc.SaveConfig(r.Context(), req); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// TestEmailConfig sends a test email with a possibly unsaved configuration
// @Summary Test email settings
// @Tags settings
// @Accept json
// @Router /api/v2/settings/email/test [post]
func (h *V2Handler) TestEmailConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Config storage.EmailConfig `json:"config"`
		To     string              `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.notifSvc.TestConfig(r.Context(), req.Config, req.To); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
