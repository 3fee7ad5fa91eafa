package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Driver selects the storage backend: "sqlite", "postgres" or "memory".
	Driver string
	// DSN is the database connection string (file path for sqlite).
	DSN string
	// Port is the HTTP listen port.
	Port int
	// AutoMigrate runs embedded migrations on startup when true.
	AutoMigrate bool
	// AdminUsername and AdminPassword bootstrap the initial admin account.
	AdminUsername string
	AdminPassword string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	driver := os.Getenv("WATERTARIFF_DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("WATERTARIFF_DB_DSN")
	if dsn == "" {
		dsn = "watertariff.db"
	}
	port := 8000
	if v := os.Getenv("WATERTARIFF_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			port = n
		}
	}
	autoMigrate := true
	if v := os.Getenv("WATERTARIFF_AUTO_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			autoMigrate = b
		}
	}
	admin := os.Getenv("WATERTARIFF_ADMIN_USERNAME")
	if admin == "" {
		admin = "admin"
	}
	return Config{
		Driver:        driver,
		DSN:           dsn,
		Port:          port,
		AutoMigrate:   autoMigrate,
		AdminUsername: admin,
		AdminPassword: os.Getenv("WATERTARIFF_ADMIN_PASSWORD"),
	}
}
