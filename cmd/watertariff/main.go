package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/avillalba/watertariff/internal/api"
	"github.com/avillalba/watertariff/internal/config"
	"github.com/avillalba/watertariff/internal/cron"
	"github.com/avillalba/watertariff/internal/migrate"
)

var rootCmd = &cobra.Command{
	Use:   "watertariff",
	Short: "Water utility billing service",
	Long: `watertariff bills community water meters against a configurable
progressive tariff: readings per period, tiered consumption allocation,
fines, mora and garden charges, with an HTTP API and a batch worker.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		mux := api.NewMux()
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Printf("watertariff listening on %s", addr)
		return http.ListenAndServe(addr, mux)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the periodic billing worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := cron.Run(ctx, cfg.Driver, cfg.DSN); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

var runPeriod string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run billing once for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		period := runPeriod
		if period == "" {
			period = cron.CurrentPeriod()
		}
		res, err := cron.RunOnce(cmd.Context(), cfg.Driver, cfg.DSN, period)
		if err != nil {
			return err
		}
		log.Printf("run %s: calculated=%d skipped=%d failed=%d duration=%s",
			res.Period, res.Calculated, res.Skipped, res.Failed, res.Duration)
		for _, f := range res.Failures {
			log.Printf("run %s: meter %s failed: %s", res.Period, f.Code, f.Error)
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d meters failed", res.Failed)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

func migrateAction(fn func(ctx context.Context, driver, dsn string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		return fn(cmd.Context(), cfg.Driver, cfg.DSN)
	}
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE:  migrateAction(migrate.Up),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE:  migrateAction(migrate.Down),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print migration status",
	RunE:  migrateAction(migrate.Status),
}

func init() {
	runCmd.Flags().StringVar(&runPeriod, "period", "", "billing period YYYY-MM (default: current month)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, workerCmd, runCmd, migrateCmd)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
