package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avillalba/watertariff/internal/auth"
	"github.com/avillalba/watertariff/internal/billing"
	"github.com/avillalba/watertariff/internal/config"
	"github.com/avillalba/watertariff/internal/metrics"
	migrate "github.com/avillalba/watertariff/internal/migrate"
	"github.com/avillalba/watertariff/internal/notification"
	"github.com/avillalba/watertariff/internal/report"
	"github.com/avillalba/watertariff/internal/storage"
)

// NewMux constructs the HTTP mux, wiring in the billing service, auth,
// metrics, and health endpoints.
func NewMux() *http.ServeMux {
	cfg := config.FromEnv()
	ctx := context.Background()

	// Optional auto-migration: run `goose up` on startup when enabled.
	if cfg.AutoMigrate && cfg.Driver != "memory" {
		if err := migrate.Up(ctx, cfg.Driver, cfg.DSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s dsn=%s): %v; falling back to in-memory storage", cfg.Driver, cfg.DSN, err)
		st = storage.NewMemory()
	} else {
		log.Printf("billing service using storage backend driver=%s", cfg.Driver)
	}

	// Auth is optional: when the enforcer cannot be built the API runs open,
	// which keeps local development working without a user table.
	authSvc, err := auth.NewService(st)
	if err != nil {
		log.Printf("auth disabled: %v", err)
		authSvc = nil
	} else {
		bootstrapAdmin(ctx, st, authSvc, cfg)
	}

	svc := billing.NewService(st)
	notifSvc := notification.NewService(st)
	reportSvc := report.NewService(st)

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	RegisterV2Routes(mux, svc, st, authSvc, notifSvc, reportSvc)

	return mux
}

// bootstrapAdmin creates the initial admin account when no users exist yet.
func bootstrapAdmin(ctx context.Context, st storage.Storage, authSvc *auth.Service, cfg config.Config) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		log.Printf("bootstrap: list users failed: %v", err)
		return
	}
	if len(users) > 0 {
		return
	}
	if cfg.AdminPassword == "" {
		log.Printf("bootstrap: no users and WATERTARIFF_ADMIN_PASSWORD unset, skipping admin creation")
		return
	}
	if _, err := authSvc.Register(ctx, cfg.AdminUsername, cfg.AdminPassword, auth.RoleAdmin); err != nil {
		log.Printf("bootstrap: create admin failed: %v", err)
		return
	}
	log.Printf("bootstrap: created admin user %q", cfg.AdminUsername)
}

// instrument wraps a handler with per-path request metrics.
func instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestsTotal.WithLabelValues(path).Inc()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
		if sw.status >= 400 {
			metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(sw.status)).Inc()
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
