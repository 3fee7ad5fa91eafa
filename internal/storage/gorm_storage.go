package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	if driver == "postgres" {
		gormDialector = postgres.Open(dsn)
	} else if driver == "sqlite" {
		gormDialector = sqlite.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&Meter{},
		&Reading{},
		&TariffBand{},
		&Bill{},
		&Debt{},
		&Fine{},
		&GardenCharge{},
		&User{},
		&Token{},
		&CasbinRule{},
		&EmailConfig{},
		&Setting{},
		&ScheduledJob{},
	)
}

// Tariff bands

func (s *GormStorage) ListTariffBands(ctx context.Context) ([]TariffBand, error) {
	var bands []TariffBand
	result := s.db.WithContext(ctx).Order("order_index asc, min_consumption asc").Find(&bands)
	return bands, result.Error
}

func (s *GormStorage) ListActiveTariffBands(ctx context.Context) ([]TariffBand, error) {
	var bands []TariffBand
	result := s.db.WithContext(ctx).
		Where("status = ?", BandActive).
		Order("order_index asc, min_consumption asc").
		Find(&bands)
	return bands, result.Error
}

func (s *GormStorage) GetTariffBand(ctx context.Context, id string) (*TariffBand, error) {
	var band TariffBand
	result := s.db.WithContext(ctx).First(&band, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &band, nil
}

func (s *GormStorage) UpsertTariffBand(ctx context.Context, b TariffBand) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&b).Error
}

func (s *GormStorage) DeleteTariffBand(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&TariffBand{}, "id = ?", id).Error
}

// Meters

func (s *GormStorage) ListMeters(ctx context.Context) ([]Meter, error) {
	var meters []Meter
	result := s.db.WithContext(ctx).Order("code asc").Find(&meters)
	return meters, result.Error
}

func (s *GormStorage) GetMeter(ctx context.Context, id string) (*Meter, error) {
	var meter Meter
	result := s.db.WithContext(ctx).First(&meter, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &meter, nil
}

func (s *GormStorage) GetMeterByCode(ctx context.Context, code string) (*Meter, error) {
	var meter Meter
	result := s.db.WithContext(ctx).First(&meter, "code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &meter, nil
}

func (s *GormStorage) UpsertMeter(ctx context.Context, m Meter) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (s *GormStorage) DeleteMeter(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Meter{}, "id = ?", id).Error
}

// Readings

func (s *GormStorage) ListReadingsForMeter(ctx context.Context, meterID string) ([]Reading, error) {
	var readings []Reading
	result := s.db.WithContext(ctx).
		Where("meter_id = ?", meterID).
		Order("period desc").
		Find(&readings)
	return readings, result.Error
}

func (s *GormStorage) UpsertReading(ctx context.Context, r Reading) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meter_id"}, {Name: "period"}},
		UpdateAll: true,
	}).Create(&r).Error
}

// Per-period charges

func (s *GormStorage) GetDebt(ctx context.Context, meterID, period string) (*Debt, error) {
	var d Debt
	result := s.db.WithContext(ctx).First(&d, "meter_id = ? AND period = ?", meterID, period)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &d, nil
}

func (s *GormStorage) UpsertDebt(ctx context.Context, d Debt) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meter_id"}, {Name: "period"}},
		UpdateAll: true,
	}).Create(&d).Error
}

func (s *GormStorage) GetFines(ctx context.Context, meterID, period string) (*Fine, error) {
	var f Fine
	result := s.db.WithContext(ctx).First(&f, "meter_id = ? AND period = ?", meterID, period)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &f, nil
}

func (s *GormStorage) UpsertFine(ctx context.Context, f Fine) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meter_id"}, {Name: "period"}},
		UpdateAll: true,
	}).Create(&f).Error
}

func (s *GormStorage) GetGardenValue(ctx context.Context, meterID, period string) (*GardenCharge, error) {
	var g GardenCharge
	result := s.db.WithContext(ctx).First(&g, "meter_id = ? AND period = ?", meterID, period)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &g, nil
}

func (s *GormStorage) UpsertGardenValue(ctx context.Context, g GardenCharge) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meter_id"}, {Name: "period"}},
		UpdateAll: true,
	}).Create(&g).Error
}

// Bills

func (s *GormStorage) SaveBill(ctx context.Context, b Bill) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meter_id"}, {Name: "period"}},
		UpdateAll: true,
	}).Create(&b).Error
}

func (s *GormStorage) GetBill(ctx context.Context, meterID, period string) (*Bill, error) {
	var b Bill
	result := s.db.WithContext(ctx).First(&b, "meter_id = ? AND period = ?", meterID, period)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &b, nil
}

func (s *GormStorage) ListBillsForPeriod(ctx context.Context, period string) ([]Bill, error) {
	var bills []Bill
	result := s.db.WithContext(ctx).Where("period = ?", period).Order("meter_id asc").Find(&bills)
	return bills, result.Error
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Create(&user).Error
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStorage) UpdateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Save(&user).Error
}

func (s *GormStorage) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&User{}, "id = ?", id).Error
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	result := s.db.WithContext(ctx).Find(&users)
	return users, result.Error
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	result := s.db.WithContext(ctx).First(&token, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &token, nil
}

func (s *GormStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	var tokens []Token
	result := s.db.WithContext(ctx).Find(&tokens, "user_id = ?", userID)
	return tokens, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", now).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Email Config

func (s *GormStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var config EmailConfig
	result := s.db.WithContext(ctx).First(&config)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &config, nil
}

func (s *GormStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default" // Force single row if not specified
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&config).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Scheduled Jobs & Locking

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error
		return ok, err
	}
	// No advisory locks on SQLite, assume single instance.
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&ok).Error
		return ok, err
	}
	return true, nil
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
