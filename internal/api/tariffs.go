package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/avillalba/watertariff/internal/storage"
)

// TariffBandDTO is the request body for creating or updating a band.
type TariffBandDTO struct {
	Name           string   `json:"name" validate:"required"`
	MinConsumption float64  `json:"min_consumption" validate:"gte=0"`
	MaxConsumption *float64 `json:"max_consumption,omitempty" validate:"omitempty,gte=0"`
	PricePerUnit   float64  `json:"price_per_unit" validate:"gte=0"`
	MaxUnits       *float64 `json:"max_units,omitempty" validate:"omitempty,gt=0"`
	FixedCharge    float64  `json:"fixed_charge" validate:"gte=0"`
	OrderIndex     int      `json:"order_index" validate:"gte=0"`
	Status         string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (dto *TariffBandDTO) toBand(id string) storage.TariffBand {
	status := dto.Status
	if status == "" {
		status = storage.BandActive
	}
	return storage.TariffBand{
		ID:             id,
		Name:           dto.Name,
		MinConsumption: dto.MinConsumption,
		MaxConsumption: dto.MaxConsumption,
		PricePerUnit:   dto.PricePerUnit,
		MaxUnits:       dto.MaxUnits,
		FixedCharge:    dto.FixedCharge,
		OrderIndex:     dto.OrderIndex,
		Status:         status,
	}
}

// ListTariffs lists all tariff bands
// @Summary List tariff bands
// @Description Get all configured tariff bands, active and inactive
// @Tags tariffs
// @Produce json
// @Success 200 {array} storage.TariffBand
// @Router /api/v2/tariffs [get]
func (h *V2Handler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	bands, err := h.st.ListTariffBands(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bands)
}

// UpsertTariff creates a tariff band
// @Summary Create tariff band
// @Description Create a new tariff band with a generated id
// @Tags tariffs
// @Accept json
// @Produce json
// @Success 201 {object} storage.TariffBand
// @Router /api/v2/tariffs [post]
func (h *V2Handler) UpsertTariff(w http.ResponseWriter, r *http.Request) {
	var dto TariffBandDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	band := dto.toBand(uuid.New().String())
	if err := h.st.UpsertTariffBand(r.Context(), band); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, band)
}

func tariffID(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api/v2/tariffs/")
}

// GetTariff fetches a tariff band
// @Summary Get tariff band
// @Tags tariffs
// @Produce json
// @Param id path string true "Band ID"
// @Router /api/v2/tariffs/{id} [get]
func (h *V2Handler) GetTariff(w http.ResponseWriter, r *http.Request) {
	band, err := h.st.GetTariffBand(r.Context(), tariffID(r))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if band == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, band)
}

// UpsertTariffByID updates a tariff band
// @Summary Update tariff band
// @Tags tariffs
// @Accept json
// @Produce json
// @Param id path string true "Band ID"
// @Router /api/v2/tariffs/{id} [put]
func (h *V2Handler) UpsertTariffByID(w http.ResponseWriter, r *http.Request) {
	id := tariffID(r)
	if id == "" {
		http.NotFound(w, r)
		return
	}
	var dto TariffBandDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	band := dto.toBand(id)
	if err := h.st.UpsertTariffBand(r.Context(), band); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, band)
}

// DeleteTariff deletes a tariff band
// @Summary Delete tariff band
// @Tags tariffs
// @Param id path string true "Band ID"
// @Router /api/v2/tariffs/{id} [delete]
func (h *V2Handler) DeleteTariff(w http.ResponseWriter, r *http.Request) {
	id := tariffID(r)
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if err := h.st.DeleteTariffBand(r.Context(), id); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
