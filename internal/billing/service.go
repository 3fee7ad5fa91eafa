package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avillalba/watertariff/internal/storage"
)

var validate = validator.New()

// Service coordinates tariff catalog access, bill composition and billing
// runs against a storage backend.
type Service struct {
	store storage.Storage
}

func NewService(st storage.Storage) *Service {
	return &Service{store: st}
}

// Catalog loads the active tariff bands for a billing run, ordered by
// order_index (ties by min_consumption). A store failure is fatal; billing
// cannot proceed without a catalog.
func (s *Service) Catalog(ctx context.Context) ([]storage.TariffBand, error) {
	bands, err := s.store.ListActiveTariffBands(ctx)
	if err != nil {
		return nil, &DataAccessError{Op: "tariff catalog", Err: err}
	}
	return bands, nil
}

// PreviousReading resolves the previous reading for a meter relative to the
// given period.
func (s *Service) PreviousReading(ctx context.Context, meterID, period string) (*float64, error) {
	readings, err := s.store.ListReadingsForMeter(ctx, meterID)
	if err != nil {
		return nil, &DataAccessError{Op: "readings", Err: err}
	}
	return PreviousReading(readings, period), nil
}

// charges collects debt, fines, mora and garden amounts for a meter and
// period. Missing rows and lookup failures both degrade to zero; these are
// optional augmentations, not core billing data.
func (s *Service) charges(ctx context.Context, meterID, period string) Charges {
	var ch Charges

	if d, err := s.store.GetDebt(ctx, meterID, period); err != nil {
		log.Printf("billing: debt lookup for %s/%s failed: %v", meterID, period, err)
	} else if d != nil {
		ch.PreviousDebt = d.Amount
	}

	if f, err := s.store.GetFines(ctx, meterID, period); err != nil {
		log.Printf("billing: fines lookup for %s/%s failed: %v", meterID, period, err)
	} else if f != nil {
		ch.FinesReuniones = f.FinesReuniones
		ch.FinesMingas = f.FinesMingas
		ch.MoraAmount = f.MoraAmount
		// A fixed mora amount wins; otherwise apply the percentage to the
		// previous debt.
		if ch.MoraAmount == 0 && f.MoraPercentage > 0 {
			ch.MoraAmount = ch.PreviousDebt * f.MoraPercentage / 100
		}
	}

	if g, err := s.store.GetGardenValue(ctx, meterID, period); err != nil {
		log.Printf("billing: garden lookup for %s/%s failed: %v", meterID, period, err)
	} else if g != nil {
		ch.GardenAmount = g.Amount
	}

	return ch
}

// CalculateBill composes the bill for a single meter and period without
// persisting it.
func (s *Service) CalculateBill(ctx context.Context, meterID, period string) (*storage.Bill, error) {
	bands, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.composeWith(ctx, meterID, period, bands)
}

// composeWith builds one bill against an already-loaded catalog so that a
// batch run applies the same catalog snapshot to every meter.
func (s *Service) composeWith(ctx context.Context, meterID, period string, bands []storage.TariffBand) (*storage.Bill, error) {
	readings, err := s.store.ListReadingsForMeter(ctx, meterID)
	if err != nil {
		return nil, &CompositionError{MeterID: meterID, Period: period, Err: &DataAccessError{Op: "readings", Err: err}}
	}

	var current *storage.Reading
	for i := range readings {
		if readings[i].Period == period {
			current = &readings[i]
			break
		}
	}
	if current == nil {
		return nil, &CompositionError{MeterID: meterID, Period: period, Err: ErrNoReading}
	}

	previous := PreviousReading(readings, period)
	ch := s.charges(ctx, meterID, period)
	bill := Compose(meterID, period, current.Value, previous, bands, ch)
	return &bill, nil
}

// SaveBill persists a composed bill, updating any existing row for the same
// meter and period.
func (s *Service) SaveBill(ctx context.Context, b storage.Bill) error {
	if err := s.store.SaveBill(ctx, b); err != nil {
		return &DataAccessError{Op: "save bill", Err: err}
	}
	return nil
}

// BillEdit carries the manually editable fields of a bill. Nil fields keep
// their stored value. Monetary components must be non-negative.
type BillEdit struct {
	CurrentReading *float64 `json:"current_reading,omitempty" validate:"omitempty,gte=0"`
	PreviousDebt   *float64 `json:"previous_debt,omitempty" validate:"omitempty,gte=0"`
	FinesReuniones *float64 `json:"fines_reuniones,omitempty" validate:"omitempty,gte=0"`
	FinesMingas    *float64 `json:"fines_mingas,omitempty" validate:"omitempty,gte=0"`
	MoraAmount     *float64 `json:"mora_amount,omitempty" validate:"omitempty,gte=0"`
	GardenAmount   *float64 `json:"garden_amount,omitempty" validate:"omitempty,gte=0"`
}

// EditBill applies a manual edit to a stored bill. Validation failures reject
// the edit without touching stored state. Editing the current reading
// recomputes consumption and the tariff allocation against the current
// catalog; every edit recomputes TotalAmount.
func (s *Service) EditBill(ctx context.Context, meterID, period string, edit BillEdit) (*storage.Bill, error) {
	if err := validate.Struct(edit); err != nil {
		return nil, &ValidationError{Field: "bill", Reason: err.Error()}
	}

	bill, err := s.store.GetBill(ctx, meterID, period)
	if err != nil {
		return nil, &DataAccessError{Op: "get bill", Err: err}
	}
	if bill == nil {
		return nil, fmt.Errorf("no bill for meter %s period %s", meterID, period)
	}

	if edit.PreviousDebt != nil {
		bill.PreviousDebt = *edit.PreviousDebt
	}
	if edit.FinesReuniones != nil {
		bill.FinesReuniones = *edit.FinesReuniones
	}
	if edit.FinesMingas != nil {
		bill.FinesMingas = *edit.FinesMingas
	}
	if edit.MoraAmount != nil {
		bill.MoraAmount = *edit.MoraAmount
	}
	if edit.GardenAmount != nil {
		bill.GardenAmount = *edit.GardenAmount
	}
	if edit.CurrentReading != nil {
		bands, err := s.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		calc := Allocate(Consumption(*edit.CurrentReading, bill.PreviousReading), bands)
		bill.CurrentReading = *edit.CurrentReading
		bill.Consumption = calc.Consumption
		bill.BaseAmount = calc.Base
		bill.Range16To20 = calc.Range16To20
		bill.Range21To25 = calc.Range21To25
		bill.Range26Plus = calc.Range26Plus
		bill.TariffTotal = calc.TariffTotal
	}

	bill.TotalAmount = Total(bill)

	if err := s.store.SaveBill(ctx, *bill); err != nil {
		return nil, &DataAccessError{Op: "save bill", Err: err}
	}
	return bill, nil
}

// SetPaymentStatus transitions a bill between PENDIENTE and ACREDITADO.
func (s *Service) SetPaymentStatus(ctx context.Context, meterID, period, status string) (*storage.Bill, error) {
	if status != storage.PaymentPending && status != storage.PaymentCredited {
		return nil, &ValidationError{Field: "payment_status", Reason: "must be PENDIENTE or ACREDITADO"}
	}
	bill, err := s.store.GetBill(ctx, meterID, period)
	if err != nil {
		return nil, &DataAccessError{Op: "get bill", Err: err}
	}
	if bill == nil {
		return nil, fmt.Errorf("no bill for meter %s period %s", meterID, period)
	}
	bill.PaymentStatus = status
	bill.TotalAmount = Total(bill)
	if err := s.store.SaveBill(ctx, *bill); err != nil {
		return nil, &DataAccessError{Op: "save bill", Err: err}
	}
	return bill, nil
}

// MeterFailure records one meter that could not be billed during a run.
type MeterFailure struct {
	MeterID string `json:"meter_id"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// RunResult summarizes a whole-period billing run.
type RunResult struct {
	Period     string         `json:"period"`
	Calculated int            `json:"calculated"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Failures   []MeterFailure `json:"failures,omitempty"`
	Duration   time.Duration  `json:"-"`
}

// RunPeriod composes and saves bills for every meter with a reading in the
// given period. The catalog is loaded once and shared across all meters so
// the whole run observes one snapshot even if an administrator edits tariffs
// mid-run. Meters are processed sequentially; one meter's failure is recorded
// and the run continues.
func (s *Service) RunPeriod(ctx context.Context, period string) (*RunResult, error) {
	if _, err := time.Parse("2006-01", period); err != nil {
		return nil, &ValidationError{Field: "period", Reason: "must be YYYY-MM"}
	}

	started := time.Now()

	bands, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	meters, err := s.store.ListMeters(ctx)
	if err != nil {
		return nil, &DataAccessError{Op: "meters", Err: err}
	}

	res := &RunResult{Period: period}
	for _, m := range meters {
		bill, err := s.composeWith(ctx, m.ID, period, bands)
		if err != nil {
			if errors.Is(err, ErrNoReading) {
				res.Skipped++
				continue
			}
			log.Printf("billing: run %s: meter %s failed: %v", period, m.Code, err)
			res.Failed++
			res.Failures = append(res.Failures, MeterFailure{MeterID: m.ID, Code: m.Code, Error: err.Error()})
			continue
		}
		if err := s.store.SaveBill(ctx, *bill); err != nil {
			log.Printf("billing: run %s: save for meter %s failed: %v", period, m.Code, err)
			res.Failed++
			res.Failures = append(res.Failures, MeterFailure{MeterID: m.ID, Code: m.Code, Error: err.Error()})
			continue
		}
		res.Calculated++
	}

	res.Duration = time.Since(started)
	return res, nil
}
