package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for meters, readings, tariff bands, bills and
// the per-period charge lookups the billing engine consumes.
type Storage interface {
	// Tariff bands
	ListTariffBands(ctx context.Context) ([]TariffBand, error)
	// ListActiveTariffBands returns bands with status "active" ordered by
	// order_index ascending, ties broken by min_consumption ascending.
	ListActiveTariffBands(ctx context.Context) ([]TariffBand, error)
	GetTariffBand(ctx context.Context, id string) (*TariffBand, error)
	UpsertTariffBand(ctx context.Context, b TariffBand) error
	DeleteTariffBand(ctx context.Context, id string) error

	// Meters
	ListMeters(ctx context.Context) ([]Meter, error)
	GetMeter(ctx context.Context, id string) (*Meter, error)
	GetMeterByCode(ctx context.Context, code string) (*Meter, error)
	UpsertMeter(ctx context.Context, m Meter) error
	DeleteMeter(ctx context.Context, id string) error

	// Readings
	// ListReadingsForMeter returns all readings for a meter ordered by
	// period descending (most recent first).
	ListReadingsForMeter(ctx context.Context, meterID string) ([]Reading, error)
	UpsertReading(ctx context.Context, r Reading) error

	// Per-period charge lookups. A missing row is (nil, nil), not an error.
	GetDebt(ctx context.Context, meterID, period string) (*Debt, error)
	UpsertDebt(ctx context.Context, d Debt) error
	GetFines(ctx context.Context, meterID, period string) (*Fine, error)
	UpsertFine(ctx context.Context, f Fine) error
	GetGardenValue(ctx context.Context, meterID, period string) (*GardenCharge, error)
	UpsertGardenValue(ctx context.Context, g GardenCharge) error

	// Bills. SaveBill is an upsert keyed on (meter_id, period).
	SaveBill(ctx context.Context, b Bill) error
	GetBill(ctx context.Context, meterID, period string) (*Bill, error)
	ListBillsForPeriod(ctx context.Context, period string) ([]Bill, error)

	// Users
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg EmailConfig) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs & locking
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
