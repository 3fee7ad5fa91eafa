package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/avillalba/watertariff/internal/alerting"
	"github.com/avillalba/watertariff/internal/billing"
	"github.com/avillalba/watertariff/internal/metrics"
)

// RunPeriod runs billing for every meter in a period
// @Summary Run billing for a period
// @Description Compose and save a bill for every meter with a reading in the period
// @Tags bills
// @Produce json
// @Param period path string true "Period (YYYY-MM)"
// @Success 200 {object} billing.RunResult
// @Router /api/v2/bills/run/{period} [post]
func (h *V2Handler) RunPeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	period := strings.TrimPrefix(r.URL.Path, "/api/v2/bills/run/")
	if period == "" || strings.Contains(period, "/") {
		http.NotFound(w, r)
		return
	}

	res, err := h.svc.RunPeriod(r.Context(), period)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	metrics.UpdateRunMetrics(res.Period, res.Calculated, res.Failed)
	if res.Failed > 0 {
		h.alertRun(r, res)
	}
	writeJSON(w, http.StatusOK, res)
}

// alertRun sends a webhook alert about failed meters, best effort.
func (h *V2Handler) alertRun(r *http.Request, res *billing.RunResult) {
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	details := make([]alerting.MeterFailure, 0, len(res.Failures))
	for _, f := range res.Failures {
		details = append(details, alerting.MeterFailure{MeterID: f.MeterID, Code: f.Code, Error: f.Error})
	}
	alert := alerting.RunAlert{
		Period:        res.Period,
		TotalMeters:   res.Calculated + res.Skipped + res.Failed,
		Calculated:    res.Calculated,
		Skipped:       res.Skipped,
		FailedCount:   res.Failed,
		Duration:      res.Duration,
		FailedDetails: details,
		Timestamp:     time.Now(),
	}
	if err := alerter.SendRunAlert(r.Context(), alert); err != nil {
		log.Printf("send run alert failed: %v", err)
	}
}

// HandleBillSubtree routes:
//
//	GET  /api/v2/bills/{period}                    list bills for a period
//	GET  /api/v2/bills/{meterID}/{period}          stored bill
//	PUT  /api/v2/bills/{meterID}/{period}          manual edit
//	GET  /api/v2/bills/{meterID}/{period}/preview  compose without saving
//	POST /api/v2/bills/{meterID}/{period}/payment  set payment status
//	POST /api/v2/bills/{meterID}/{period}/notify   email the bill to the owner
func (h *V2Handler) HandleBillSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/bills/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		period := parts[0]
		h.protect("bills", "read", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.listBills(w, r, period)
		}).ServeHTTP(w, r)

	case len(parts) == 2:
		meterID, period := parts[0], parts[1]
		switch r.Method {
		case http.MethodGet:
			h.protect("bills", "read", func(w http.ResponseWriter, r *http.Request) {
				h.getBill(w, r, meterID, period)
			}).ServeHTTP(w, r)
		case http.MethodPut:
			h.protect("bills", "write", func(w http.ResponseWriter, r *http.Request) {
				h.editBill(w, r, meterID, period)
			}).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 3:
		meterID, period, action := parts[0], parts[1], parts[2]
		switch action {
		case "preview":
			h.protect("bills", "read", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
					return
				}
				h.previewBill(w, r, meterID, period)
			}).ServeHTTP(w, r)
		case "payment":
			h.protect("bills", "write", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
					return
				}
				h.setPayment(w, r, meterID, period)
			}).ServeHTTP(w, r)
		case "notify":
			h.protect("bills", "write", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
					return
				}
				h.notifyBill(w, r, meterID, period)
			}).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}

	default:
		http.NotFound(w, r)
	}
}

func (h *V2Handler) listBills(w http.ResponseWriter, r *http.Request, period string) {
	bills, err := h.st.ListBillsForPeriod(r.Context(), period)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (h *V2Handler) getBill(w http.ResponseWriter, r *http.Request, meterID, period string) {
	bill, err := h.st.GetBill(r.Context(), meterID, period)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if bill == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// previewBill composes a bill without persisting it
// @Summary Preview a bill
// @Description Compose the bill for a meter and period without saving it
// @Tags bills
// @Produce json
// @Router /api/v2/bills/{meterID}/{period}/preview [get]
func (h *V2Handler) previewBill(w http.ResponseWriter, r *http.Request, meterID, period string) {
	bill, err := h.svc.CalculateBill(r.Context(), meterID, period)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// editBill applies a manual correction to a stored bill
// @Summary Edit a bill
// @Tags bills
// @Accept json
// @Produce json
// @Router /api/v2/bills/{meterID}/{period} [put]
func (h *V2Handler) editBill(w http.ResponseWriter, r *http.Request, meterID, period string) {
	var edit billing.BillEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	bill, err := h.svc.EditBill(r.Context(), meterID, period, edit)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// setPayment marks a bill paid or pending
// @Summary Set payment status
// @Tags bills
// @Accept json
// @Produce json
// @Router /api/v2/bills/{meterID}/{period}/payment [post]
func (h *V2Handler) setPayment(w http.ResponseWriter, r *http.Request, meterID, period string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	bill, err := h.svc.SetPaymentStatus(r.Context(), meterID, period, req.Status)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// notifyBill emails the stored bill to the meter owner
// @Summary Email a bill
// @Tags bills
// @Router /api/v2/bills/{meterID}/{period}/notify [post]
func (h *V2Handler) notifyBill(w http.ResponseWriter, r *http.Request, meterID, period string) {
	bill, err := h.st.GetBill(r.Context(), meterID, period)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if bill == nil {
		http.NotFound(w, r)
		return
	}
	m, err := h.st.GetMeter(r.Context(), meterID)
	if err != nil || m == nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.notifSvc.SendBillNotice(r.Context(), *m, *bill); err != nil {
		http.Error(w, fmt.Sprintf("send failed: %v", err), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
