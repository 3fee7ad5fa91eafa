package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu      sync.RWMutex
	meters  map[string]Meter
	readings map[string]Reading // meterID + ":" + period
	bands   map[string]TariffBand
	bills   map[string]Bill // meterID + ":" + period
	debts   map[string]Debt
	fines   map[string]Fine
	garden  map[string]GardenCharge
	users   map[string]User
	tokens  map[string]Token
	rules   []CasbinRule
	emailConfig *EmailConfig
	settings    map[string]string
	jobs        map[string]ScheduledJob
	nextID      uint
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		meters:   make(map[string]Meter),
		readings: make(map[string]Reading),
		bands:    make(map[string]TariffBand),
		bills:    make(map[string]Bill),
		debts:    make(map[string]Debt),
		fines:    make(map[string]Fine),
		garden:   make(map[string]GardenCharge),
		users:    make(map[string]User),
		tokens:   make(map[string]Token),
		settings: make(map[string]string),
		jobs:     make(map[string]ScheduledJob),
	}
}

func periodKey(meterID, period string) string { return meterID + ":" + period }

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) nextIDLocked() uint {
	m.nextID++
	return m.nextID
}

// Tariff bands

func (m *MemoryStorage) ListTariffBands(ctx context.Context) ([]TariffBand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TariffBand, 0, len(m.bands))
	for _, b := range m.bands {
		out = append(out, b)
	}
	sortBands(out)
	return out, nil
}

func (m *MemoryStorage) ListActiveTariffBands(ctx context.Context) ([]TariffBand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TariffBand
	for _, b := range m.bands {
		if b.Status == BandActive {
			out = append(out, b)
		}
	}
	sortBands(out)
	return out, nil
}

func sortBands(bands []TariffBand) {
	sort.SliceStable(bands, func(i, j int) bool {
		if bands[i].OrderIndex != bands[j].OrderIndex {
			return bands[i].OrderIndex < bands[j].OrderIndex
		}
		return bands[i].MinConsumption < bands[j].MinConsumption
	})
}

func (m *MemoryStorage) GetTariffBand(ctx context.Context, id string) (*TariffBand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bands[id]
	if !ok {
		return nil, nil
	}
	cp := b
	return &cp, nil
}

func (m *MemoryStorage) UpsertTariffBand(ctx context.Context, b TariffBand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bands[b.ID] = b
	return nil
}

func (m *MemoryStorage) DeleteTariffBand(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bands, id)
	return nil
}

// Meters

func (m *MemoryStorage) ListMeters(ctx context.Context) ([]Meter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Meter, 0, len(m.meters))
	for _, mt := range m.meters {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStorage) GetMeter(ctx context.Context, id string) (*Meter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.meters[id]
	if !ok {
		return nil, nil
	}
	cp := mt
	return &cp, nil
}

func (m *MemoryStorage) GetMeterByCode(ctx context.Context, code string) (*Meter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mt := range m.meters {
		if mt.Code == code {
			cp := mt
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpsertMeter(ctx context.Context, mt Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meters[mt.ID] = mt
	return nil
}

func (m *MemoryStorage) DeleteMeter(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meters, id)
	return nil
}

// Readings

func (m *MemoryStorage) ListReadingsForMeter(ctx context.Context, meterID string) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Reading
	for _, r := range m.readings {
		if r.MeterID == meterID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (m *MemoryStorage) UpsertReading(ctx context.Context, r Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := periodKey(r.MeterID, r.Period)
	if prev, ok := m.readings[key]; ok {
		r.ID = prev.ID
	} else if r.ID == 0 {
		r.ID = m.nextIDLocked()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.readings[key] = r
	return nil
}

// Per-period charges

func (m *MemoryStorage) GetDebt(ctx context.Context, meterID, period string) (*Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.debts[periodKey(meterID, period)]
	if !ok {
		return nil, nil
	}
	cp := d
	return &cp, nil
}

func (m *MemoryStorage) UpsertDebt(ctx context.Context, d Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.nextIDLocked()
	}
	m.debts[periodKey(d.MeterID, d.Period)] = d
	return nil
}

func (m *MemoryStorage) GetFines(ctx context.Context, meterID, period string) (*Fine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fines[periodKey(meterID, period)]
	if !ok {
		return nil, nil
	}
	cp := f
	return &cp, nil
}

func (m *MemoryStorage) UpsertFine(ctx context.Context, f Fine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == 0 {
		f.ID = m.nextIDLocked()
	}
	m.fines[periodKey(f.MeterID, f.Period)] = f
	return nil
}

func (m *MemoryStorage) GetGardenValue(ctx context.Context, meterID, period string) (*GardenCharge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.garden[periodKey(meterID, period)]
	if !ok {
		return nil, nil
	}
	cp := g
	return &cp, nil
}

func (m *MemoryStorage) UpsertGardenValue(ctx context.Context, g GardenCharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == 0 {
		g.ID = m.nextIDLocked()
	}
	m.garden[periodKey(g.MeterID, g.Period)] = g
	return nil
}

// Bills

func (m *MemoryStorage) SaveBill(ctx context.Context, b Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := periodKey(b.MeterID, b.Period)
	if prev, ok := m.bills[key]; ok {
		b.ID = prev.ID
		b.CreatedAt = prev.CreatedAt
	} else {
		if b.ID == 0 {
			b.ID = m.nextIDLocked()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = time.Now()
		}
	}
	b.UpdatedAt = time.Now()
	m.bills[key] = b
	return nil
}

func (m *MemoryStorage) GetBill(ctx context.Context, meterID, period string) (*Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[periodKey(meterID, period)]
	if !ok {
		return nil, nil
	}
	cp := b
	return &cp, nil
}

func (m *MemoryStorage) ListBillsForPeriod(ctx context.Context, period string) ([]Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Bill
	for _, b := range m.bills {
		if b.Period == period {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeterID < out[j].MeterID })
	return out, nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil
	}
	now := time.Now()
	t.LastUsedAt = &now
	m.tokens[id] = t
	return nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.PType == rule.PType && r.V0 == rule.V0 && r.V1 == rule.V1 && r.V2 == rule.V2 {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

// Email config

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailConfig == nil {
		return nil, nil
	}
	cp := *m.emailConfig
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, cfg EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailConfig = &cfg
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Scheduled jobs & locking

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}
