package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/avillalba/watertariff/internal/storage"
)

// MeterDTO is the request body for creating or updating a meter.
type MeterDTO struct {
	Code      string `json:"code" validate:"required"`
	OwnerName string `json:"owner_name" validate:"required"`
	Sector    string `json:"sector"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// ReadingDTO records a meter reading for a period.
type ReadingDTO struct {
	Period string  `json:"period" validate:"required,len=7"`
	Value  float64 `json:"value" validate:"gte=0"`
}

// ListMeters lists all meters
// @Summary List meters
// @Tags meters
// @Produce json
// @Success 200 {array} storage.Meter
// @Router /api/v2/meters [get]
func (h *V2Handler) ListMeters(w http.ResponseWriter, r *http.Request) {
	meters, err := h.st.ListMeters(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, meters)
}

// UpsertMeter creates a meter
// @Summary Create meter
// @Tags meters
// @Accept json
// @Produce json
// @Success 201 {object} storage.Meter
// @Router /api/v2/meters [post]
func (h *V2Handler) UpsertMeter(w http.ResponseWriter, r *http.Request) {
	var dto MeterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m := dto.toMeter(uuid.New().String())
	if err := h.st.UpsertMeter(r.Context(), m); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (dto *MeterDTO) toMeter(id string) storage.Meter {
	status := dto.Status
	if status == "" {
		status = "active"
	}
	return storage.Meter{
		ID:        id,
		Code:      dto.Code,
		OwnerName: dto.OwnerName,
		Sector:    dto.Sector,
		Status:    status,
		Email:     dto.Email,
	}
}

// HandleMeterSubtree routes /api/v2/meters/{id} and
// /api/v2/meters/{id}/readings.
func (h *V2Handler) HandleMeterSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/meters/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		meterID := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.protect("meters", "read", func(w http.ResponseWriter, r *http.Request) {
				h.getMeter(w, r, meterID)
			}).ServeHTTP(w, r)
		case http.MethodPut:
			h.protect("meters", "write", func(w http.ResponseWriter, r *http.Request) {
				h.updateMeter(w, r, meterID)
			}).ServeHTTP(w, r)
		case http.MethodDelete:
			h.protect("meters", "write", func(w http.ResponseWriter, r *http.Request) {
				h.deleteMeter(w, r, meterID)
			}).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 2 && parts[1] == "readings":
		meterID := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.protect("readings", "read", func(w http.ResponseWriter, r *http.Request) {
				h.listReadings(w, r, meterID)
			}).ServeHTTP(w, r)
		case http.MethodPut, http.MethodPost:
			h.protect("readings", "write", func(w http.ResponseWriter, r *http.Request) {
				h.upsertReading(w, r, meterID)
			}).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		http.NotFound(w, r)
	}
}

func (h *V2Handler) getMeter(w http.ResponseWriter, r *http.Request, meterID string) {
	m, err := h.st.GetMeter(r.Context(), meterID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *V2Handler) updateMeter(w http.ResponseWriter, r *http.Request, meterID string) {
	var dto MeterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m := dto.toMeter(meterID)
	if err := h.st.UpsertMeter(r.Context(), m); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *V2Handler) deleteMeter(w http.ResponseWriter, r *http.Request, meterID string) {
	if err := h.st.DeleteMeter(r.Context(), meterID); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listReadings returns a meter's readings, newest period first
// @Summary List readings for a meter
// @Tags readings
// @Produce json
// @Param id path string true "Meter ID"
// @Router /api/v2/meters/{id}/readings [get]
func (h *V2Handler) listReadings(w http.ResponseWriter, r *http.Request, meterID string) {
	readings, err := h.st.ListReadingsForMeter(r.Context(), meterID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// upsertReading records a reading; a second write for the same period
// replaces the first.
// @Summary Record a meter reading
// @Tags readings
// @Accept json
// @Param id path string true "Meter ID"
// @Router /api/v2/meters/{id}/readings [put]
func (h *V2Handler) upsertReading(w http.ResponseWriter, r *http.Request, meterID string) {
	var dto ReadingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.st.GetMeter(r.Context(), meterID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.NotFound(w, r)
		return
	}
	reading := storage.Reading{MeterID: meterID, Period: dto.Period, Value: dto.Value}
	if err := h.st.UpsertReading(r.Context(), reading); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}
