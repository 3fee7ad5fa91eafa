package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/avillalba/watertariff/internal/auth"
	"github.com/avillalba/watertariff/internal/billing"
	"github.com/avillalba/watertariff/internal/notification"
	"github.com/avillalba/watertariff/internal/report"
	"github.com/avillalba/watertariff/internal/storage"
)

var validate = validator.New()

type V2Handler struct {
	svc       *billing.Service
	st        storage.Storage
	authSvc   *auth.Service
	notifSvc  *notification.Service
	reportSvc *report.Service
}

func RegisterV2Routes(mux *http.ServeMux, svc *billing.Service, st storage.Storage, authSvc *auth.Service, notifSvc *notification.Service, reportSvc *report.Service) {
	h := &V2Handler{
		svc:       svc,
		st:        st,
		authSvc:   authSvc,
		notifSvc:  notifSvc,
		reportSvc: reportSvc,
	}

	// Helper to wrap a handler with auth middleware and a permission check
	// when auth is enabled.
	protected := func(obj, act string, handler http.HandlerFunc) http.Handler {
		if authSvc == nil {
			return handler
		}
		return authSvc.Middleware(authSvc.RequirePermission(obj, act, handler))
	}

	mux.Handle("/api/v2/tariffs", instrument("/api/v2/tariffs", &methodSplit{
		get:  protected("tariffs", "read", h.ListTariffs),
		post: protected("tariffs", "write", h.UpsertTariff),
	}))
	mux.Handle("/api/v2/tariffs/", instrument("/api/v2/tariffs", &methodSplit{
		get:    protected("tariffs", "read", h.GetTariff),
		put:    protected("tariffs", "write", h.UpsertTariffByID),
		delete: protected("tariffs", "write", h.DeleteTariff),
	}))

	mux.Handle("/api/v2/meters", instrument("/api/v2/meters", &methodSplit{
		get:  protected("meters", "read", h.ListMeters),
		post: protected("meters", "write", h.UpsertMeter),
	}))
	mux.Handle("/api/v2/meters/", instrument("/api/v2/meters", http.HandlerFunc(h.HandleMeterSubtree)))

	mux.Handle("/api/v2/bills/run/", instrument("/api/v2/bills/run",
		protected("bills", "write", h.RunPeriod)))
	mux.Handle("/api/v2/bills/", instrument("/api/v2/bills", http.HandlerFunc(h.HandleBillSubtree)))

	mux.Handle("/api/v2/garden/import", instrument("/api/v2/garden/import",
		protected("bills", "write", h.ImportGarden)))
	mux.Handle("/api/v2/reports/", instrument("/api/v2/reports",
		protected("reports", "read", h.PeriodReport)))

	mux.Handle("/api/v2/auth/login", instrument("/api/v2/auth/login", http.HandlerFunc(h.Login)))
	mux.Handle("/api/v2/auth/users", instrument("/api/v2/auth/users",
		protected("users", "write", h.RegisterUser)))

	mux.Handle("/api/v2/settings/email", instrument("/api/v2/settings/email", &methodSplit{
		get: protected("settings", "read", h.GetEmailConfig),
		put: protected("settings", "write", h.SaveEmailConfig),
	}))
	mux.Handle("/api/v2/settings/email/test", instrument("/api/v2/settings/email",
		protected("settings", "write", h.TestEmailConfig)))
}

// methodSplit dispatches by HTTP method so read and write permissions can
// differ on the same path.
type methodSplit struct {
	get    http.Handler
	put    http.Handler
	post   http.Handler
	delete http.Handler
}

func (m *methodSplit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.Handler
	switch r.Method {
	case http.MethodGet:
		h = m.get
	case http.MethodPut:
		h = m.put
	case http.MethodPost:
		h = m.post
	case http.MethodDelete:
		h = m.delete
	}
	if h == nil {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.ServeHTTP(w, r)
}

// protect applies the permission check inside a subtree handler where the
// object depends on the parsed path.
func (h *V2Handler) protect(obj, act string, handler http.HandlerFunc) http.Handler {
	if h.authSvc == nil {
		return handler
	}
	return h.authSvc.Middleware(h.authSvc.RequirePermission(obj, act, handler))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
	}
}

// writeBillingError maps billing error types onto HTTP status codes.
func writeBillingError(w http.ResponseWriter, err error) {
	var ve *billing.ValidationError
	if errors.As(err, &ve) {
		http.Error(w, ve.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, billing.ErrNoReading) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Printf("billing error: %v", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
