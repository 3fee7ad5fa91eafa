package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
)

// PeriodReport streams a CSV summary of all bills for a period
// @Summary Export period report
// @Description Download all bills for a period as CSV
// @Tags reports
// @Produce text/csv
// @Param period path string true "Period (YYYY-MM)"
// @Router /api/v2/reports/{period}.csv [get]
func (h *V2Handler) PeriodReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v2/reports/")
	period := strings.TrimSuffix(name, ".csv")
	if period == "" || period == name || strings.Contains(period, "/") {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=planillas_%s.csv", period))
	if err := h.reportSvc.WritePeriodCSV(r.Context(), w, period); err != nil {
		// Headers are already out; all we can do is log.
		log.Printf("write period report %s failed: %v", period, err)
	}
}

// ImportGarden imports garden charges from a CSV body
// @Summary Import garden charges
// @Description Upsert garden charges from CSV rows of meter_code,period,amount
// @Tags reports
// @Accept text/csv
// @Produce json
// @Success 200 {object} report.ImportResult
// @Router /api/v2/garden/import [post]
func (h *V2Handler) ImportGarden(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := h.reportSvc.ImportGardenCSV(r.Context(), r.Body)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
