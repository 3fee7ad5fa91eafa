package storage

import "time"

// Band status values.
const (
	BandActive   = "active"
	BandInactive = "inactive"
)

// Payment status values for bills.
const (
	PaymentPending  = "PENDIENTE"
	PaymentCredited = "ACREDITADO"
)

// Meter is a registered water meter.
type Meter struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	Code      string    `json:"code" gorm:"unique;column:code"`
	OwnerName string    `json:"owner_name" gorm:"column:owner_name"`
	Sector    string    `json:"sector,omitempty" gorm:"column:sector"`
	Status    string    `json:"status" gorm:"column:status"`
	Email     string    `json:"email,omitempty" gorm:"column:email"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Reading is a meter reading for a billing period. Periods are "YYYY-MM"
// strings so lexical order matches chronological order.
type Reading struct {
	ID        uint      `json:"id" gorm:"primaryKey;column:id"`
	MeterID   string    `json:"meter_id" gorm:"column:meter_id;uniqueIndex:idx_readings_meter_period"`
	Period    string    `json:"period" gorm:"column:period;uniqueIndex:idx_readings_meter_period"`
	Value     float64   `json:"value" gorm:"column:value"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// TariffBand is one segment of the progressive tariff scale. Bands are
// evaluated in OrderIndex order, which administrators control independently
// of the numeric range boundaries.
type TariffBand struct {
	ID             string  `json:"id" gorm:"primaryKey;column:id"`
	Name           string  `json:"name" gorm:"column:name"`
	MinConsumption float64 `json:"min_consumption" gorm:"column:min_consumption"`
	// MaxConsumption nil means the band is open-ended at the top.
	MaxConsumption *float64 `json:"max_consumption,omitempty" gorm:"column:max_consumption"`
	PricePerUnit   float64  `json:"price_per_unit" gorm:"column:price_per_unit"`
	// MaxUnits optionally caps the billable units inside the band,
	// independent of the band's own width.
	MaxUnits    *float64  `json:"max_units,omitempty" gorm:"column:max_units"`
	FixedCharge float64   `json:"fixed_charge" gorm:"column:fixed_charge"`
	OrderIndex  int       `json:"order_index" gorm:"column:order_index"`
	Status      string    `json:"status" gorm:"column:status"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Bill is the composed charge for one meter and period. TotalAmount is always
// recomputed from its six components and never edited independently.
type Bill struct {
	ID              uint     `json:"id" gorm:"primaryKey;column:id"`
	MeterID         string   `json:"meter_id" gorm:"column:meter_id;uniqueIndex:idx_bills_meter_period"`
	Period          string   `json:"period" gorm:"column:period;uniqueIndex:idx_bills_meter_period"`
	PreviousReading *float64 `json:"previous_reading,omitempty" gorm:"column:previous_reading"`
	CurrentReading  float64  `json:"current_reading" gorm:"column:current_reading"`
	Consumption     float64  `json:"consumption" gorm:"column:consumption"`

	BaseAmount  float64 `json:"base_amount" gorm:"column:base_amount"`
	Range16To20 float64 `json:"range_16_20" gorm:"column:range_16_20"`
	Range21To25 float64 `json:"range_21_25" gorm:"column:range_21_25"`
	Range26Plus float64 `json:"range_26_plus" gorm:"column:range_26_plus"`
	TariffTotal float64 `json:"tariff_total" gorm:"column:tariff_total"`

	PreviousDebt   float64 `json:"previous_debt" gorm:"column:previous_debt"`
	FinesReuniones float64 `json:"fines_reuniones" gorm:"column:fines_reuniones"`
	FinesMingas    float64 `json:"fines_mingas" gorm:"column:fines_mingas"`
	MoraAmount     float64 `json:"mora_amount" gorm:"column:mora_amount"`
	GardenAmount   float64 `json:"garden_amount" gorm:"column:garden_amount"`
	TotalAmount    float64 `json:"total_amount" gorm:"column:total_amount"`

	PaymentStatus string    `json:"payment_status" gorm:"column:payment_status"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Debt is the carried-over unpaid balance for a meter at the start of a period.
type Debt struct {
	ID      uint    `json:"id" gorm:"primaryKey;column:id"`
	MeterID string  `json:"meter_id" gorm:"column:meter_id;uniqueIndex:idx_debts_meter_period"`
	Period  string  `json:"period" gorm:"column:period;uniqueIndex:idx_debts_meter_period"`
	Amount  float64 `json:"amount" gorm:"column:amount"`
}

// Fine records assembly and minga fines for a meter and period, plus the mora
// (late payment) penalty, either a fixed amount or a percentage of the
// previous debt.
type Fine struct {
	ID             uint    `json:"id" gorm:"primaryKey;column:id"`
	MeterID        string  `json:"meter_id" gorm:"column:meter_id;uniqueIndex:idx_fines_meter_period"`
	Period         string  `json:"period" gorm:"column:period;uniqueIndex:idx_fines_meter_period"`
	FinesReuniones float64 `json:"fines_reuniones" gorm:"column:fines_reuniones"`
	FinesMingas    float64 `json:"fines_mingas" gorm:"column:fines_mingas"`
	MoraPercentage float64 `json:"mora_percentage" gorm:"column:mora_percentage"`
	MoraAmount     float64 `json:"mora_amount" gorm:"column:mora_amount"`
}

// GardenCharge is the communal garden contribution for a meter and period.
type GardenCharge struct {
	ID      uint    `json:"id" gorm:"primaryKey;column:id"`
	MeterID string  `json:"meter_id" gorm:"column:meter_id;uniqueIndex:idx_garden_meter_period"`
	Period  string  `json:"period" gorm:"column:period;uniqueIndex:idx_garden_meter_period"`
	Amount  float64 `json:"amount" gorm:"column:amount"`
}

// User represents a registered user in the system.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	FirstName    string    `json:"first_name" gorm:"column:first_name"`
	LastName     string    `json:"last_name" gorm:"column:last_name"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`      // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Setting is a key/value configuration row (e.g. billing run interval).
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the last outcome of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}
