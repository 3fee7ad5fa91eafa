package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/avillalba/watertariff/internal/storage"
)

// failingStore wraps a Storage and fails selected operations, to exercise
// failure isolation in batch runs.
type failingStore struct {
	storage.Storage
	failCatalog      bool
	failReadingsFor  string
}

func (s *failingStore) ListActiveTariffBands(ctx context.Context) ([]storage.TariffBand, error) {
	if s.failCatalog {
		return nil, errors.New("store unreachable")
	}
	return s.Storage.ListActiveTariffBands(ctx)
}

func (s *failingStore) ListReadingsForMeter(ctx context.Context, meterID string) ([]storage.Reading, error) {
	if s.failReadingsFor == meterID {
		return nil, errors.New("store unreachable")
	}
	return s.Storage.ListReadingsForMeter(ctx, meterID)
}

func seedStore(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemory()

	for i, b := range standardBands() {
		b.OrderIndex = i
		if err := st.UpsertTariffBand(ctx, b); err != nil {
			t.Fatalf("seed band: %v", err)
		}
	}
	meters := []storage.Meter{
		{ID: "m1", Code: "001", OwnerName: "Rosa Quispe", Status: "active"},
		{ID: "m2", Code: "002", OwnerName: "Luis Chango", Status: "active"},
	}
	for _, m := range meters {
		if err := st.UpsertMeter(ctx, m); err != nil {
			t.Fatalf("seed meter: %v", err)
		}
	}
	return st
}

func TestCalculateBill_ComposesAllCharges(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2025-12", Value: 100})
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 130})
	st.UpsertDebt(ctx, storage.Debt{MeterID: "m1", Period: "2026-01", Amount: 3.00})
	st.UpsertFine(ctx, storage.Fine{MeterID: "m1", Period: "2026-01", FinesReuniones: 1.00, FinesMingas: 2.00, MoraPercentage: 10})
	st.UpsertGardenValue(ctx, storage.GardenCharge{MeterID: "m1", Period: "2026-01", Amount: 1.50})

	svc := NewService(st)
	bill, err := svc.CalculateBill(ctx, "m1", "2026-01")
	if err != nil {
		t.Fatalf("CalculateBill failed: %v", err)
	}

	if bill.Consumption != 30 {
		t.Errorf("consumption: want 30 got %v", bill.Consumption)
	}
	if !almostEqual(bill.TariffTotal, 7.00) {
		t.Errorf("tariff total: want 7.00 got %v", bill.TariffTotal)
	}
	// Mora: no fixed amount, 10% of the 3.00 previous debt.
	if !almostEqual(bill.MoraAmount, 0.30) {
		t.Errorf("mora: want 0.30 got %v", bill.MoraAmount)
	}
	want := 3.00 + 7.00 + 1.00 + 2.00 + 0.30 + 1.50
	if !almostEqual(bill.TotalAmount, want) {
		t.Errorf("total: want %v got %v", want, bill.TotalAmount)
	}
}

func TestCalculateBill_FixedMoraOverridesPercentage(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 130})
	st.UpsertDebt(ctx, storage.Debt{MeterID: "m1", Period: "2026-01", Amount: 10})
	st.UpsertFine(ctx, storage.Fine{MeterID: "m1", Period: "2026-01", MoraPercentage: 10, MoraAmount: 5.00})

	svc := NewService(st)
	bill, err := svc.CalculateBill(ctx, "m1", "2026-01")
	if err != nil {
		t.Fatalf("CalculateBill failed: %v", err)
	}
	if !almostEqual(bill.MoraAmount, 5.00) {
		t.Errorf("mora: want fixed 5.00 got %v", bill.MoraAmount)
	}
}

func TestCalculateBill_MissingChargeRowsAreZero(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 10})

	svc := NewService(st)
	bill, err := svc.CalculateBill(ctx, "m1", "2026-01")
	if err != nil {
		t.Fatalf("CalculateBill failed: %v", err)
	}
	if bill.PreviousDebt != 0 || bill.FinesReuniones != 0 || bill.FinesMingas != 0 || bill.MoraAmount != 0 || bill.GardenAmount != 0 {
		t.Errorf("expected zero charges, got %+v", bill)
	}
	if !almostEqual(bill.TotalAmount, bill.TariffTotal) {
		t.Errorf("total: want %v got %v", bill.TariffTotal, bill.TotalAmount)
	}
}

func TestCalculateBill_CatalogFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := NewService(&failingStore{Storage: st, failCatalog: true})

	_, err := svc.CalculateBill(ctx, "m1", "2026-01")
	if err == nil {
		t.Fatalf("expected error")
	}
	var dae *DataAccessError
	if !errors.As(err, &dae) {
		t.Fatalf("expected DataAccessError, got %T: %v", err, err)
	}
}

func TestRunPeriod_ContinuesAfterMeterFailure(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 130})
	st.UpsertReading(ctx, storage.Reading{MeterID: "m2", Period: "2026-01", Value: 80})

	svc := NewService(&failingStore{Storage: st, failReadingsFor: "m1"})
	res, err := svc.RunPeriod(ctx, "2026-01")
	if err != nil {
		t.Fatalf("RunPeriod failed: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("failed: want 1 got %d", res.Failed)
	}
	if res.Calculated != 1 {
		t.Errorf("calculated: want 1 got %d", res.Calculated)
	}
	if len(res.Failures) != 1 || res.Failures[0].MeterID != "m1" {
		t.Errorf("unexpected failures: %+v", res.Failures)
	}

	// The healthy meter's bill was persisted.
	bill, err := st.GetBill(ctx, "m2", "2026-01")
	if err != nil || bill == nil {
		t.Fatalf("expected saved bill for m2, got %v %v", bill, err)
	}
}

func TestRunPeriod_SkipsMetersWithoutReading(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 130})

	svc := NewService(st)
	res, err := svc.RunPeriod(ctx, "2026-01")
	if err != nil {
		t.Fatalf("RunPeriod failed: %v", err)
	}
	if res.Calculated != 1 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunPeriod_RejectsBadPeriod(t *testing.T) {
	svc := NewService(seedStore(t))
	_, err := svc.RunPeriod(context.Background(), "enero-2026")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRunPeriod_RecalculationUpserts(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 130})

	svc := NewService(st)
	if _, err := svc.RunPeriod(ctx, "2026-01"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// A corrected reading arrives; rerunning replaces the bill in place.
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2025-12", Value: 100})
	if _, err := svc.RunPeriod(ctx, "2026-01"); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	bills, err := st.ListBillsForPeriod(ctx, "2026-01")
	if err != nil {
		t.Fatalf("ListBillsForPeriod failed: %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("expected 1 bill after rerun, got %d", len(bills))
	}
	if bills[0].Consumption != 30 {
		t.Errorf("consumption after rerun: want 30 got %v", bills[0].Consumption)
	}
}

func TestEditBill_RejectsNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 130})

	svc := NewService(st)
	if _, err := svc.RunPeriod(ctx, "2026-01"); err != nil {
		t.Fatalf("RunPeriod failed: %v", err)
	}
	before, _ := st.GetBill(ctx, "m1", "2026-01")

	neg := -5.0
	_, err := svc.EditBill(ctx, "m1", "2026-01", BillEdit{GardenAmount: &neg})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// Stored state untouched.
	after, _ := st.GetBill(ctx, "m1", "2026-01")
	if after.GardenAmount != before.GardenAmount || after.TotalAmount != before.TotalAmount {
		t.Errorf("bill mutated by rejected edit: before %+v after %+v", before, after)
	}
}

func TestEditBill_RecomputesTotal(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 10})

	svc := NewService(st)
	if _, err := svc.RunPeriod(ctx, "2026-01"); err != nil {
		t.Fatalf("RunPeriod failed: %v", err)
	}

	mora := 4.25
	bill, err := svc.EditBill(ctx, "m1", "2026-01", BillEdit{MoraAmount: &mora})
	if err != nil {
		t.Fatalf("EditBill failed: %v", err)
	}
	want := bill.PreviousDebt + bill.TariffTotal + bill.FinesReuniones + bill.FinesMingas + bill.MoraAmount + bill.GardenAmount
	if !almostEqual(bill.TotalAmount, want) {
		t.Errorf("total: want %v got %v", want, bill.TotalAmount)
	}
	if !almostEqual(bill.MoraAmount, 4.25) {
		t.Errorf("mora: want 4.25 got %v", bill.MoraAmount)
	}
}

func TestEditBill_CurrentReadingReallocatesTariff(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2025-12", Value: 100})
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 110})

	svc := NewService(st)
	if _, err := svc.RunPeriod(ctx, "2026-01"); err != nil {
		t.Fatalf("RunPeriod failed: %v", err)
	}

	corrected := 130.0
	bill, err := svc.EditBill(ctx, "m1", "2026-01", BillEdit{CurrentReading: &corrected})
	if err != nil {
		t.Fatalf("EditBill failed: %v", err)
	}
	if bill.Consumption != 30 {
		t.Errorf("consumption: want 30 got %v", bill.Consumption)
	}
	if !almostEqual(bill.TariffTotal, 7.00) {
		t.Errorf("tariff total: want 7.00 got %v", bill.TariffTotal)
	}
}

func TestSetPaymentStatus(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	st.UpsertReading(ctx, storage.Reading{MeterID: "m1", Period: "2026-01", Value: 10})

	svc := NewService(st)
	if _, err := svc.RunPeriod(ctx, "2026-01"); err != nil {
		t.Fatalf("RunPeriod failed: %v", err)
	}

	bill, err := svc.SetPaymentStatus(ctx, "m1", "2026-01", storage.PaymentCredited)
	if err != nil {
		t.Fatalf("SetPaymentStatus failed: %v", err)
	}
	if bill.PaymentStatus != storage.PaymentCredited {
		t.Errorf("status: want %s got %s", storage.PaymentCredited, bill.PaymentStatus)
	}

	if _, err := svc.SetPaymentStatus(ctx, "m1", "2026-01", "PAGADO"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
