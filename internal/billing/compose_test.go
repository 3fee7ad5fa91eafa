package billing

import (
	"testing"

	"github.com/avillalba/watertariff/internal/storage"
)

func TestConsumption_NoPreviousIsZero(t *testing.T) {
	if got := Consumption(120, nil); got != 0 {
		t.Errorf("want 0 got %v", got)
	}
}

func TestConsumption_NegativeDeltaClampsToZero(t *testing.T) {
	// Meter rollback or replacement: clamped, not flagged.
	if got := Consumption(10, f(15)); got != 0 {
		t.Errorf("want 0 got %v", got)
	}
}

func TestConsumption_Delta(t *testing.T) {
	if got := Consumption(130, f(100)); got != 30 {
		t.Errorf("want 30 got %v", got)
	}
}

func TestPreviousReading_NoReadings(t *testing.T) {
	if got := PreviousReading(nil, "2026-01"); got != nil {
		t.Errorf("want nil got %v", *got)
	}
}

func TestPreviousReading_CurrentPeriodPresent(t *testing.T) {
	readings := []storage.Reading{
		{Period: "2026-03", Value: 140},
		{Period: "2026-02", Value: 120},
		{Period: "2026-01", Value: 100},
	}
	got := PreviousReading(readings, "2026-02")
	if got == nil || *got != 100 {
		t.Errorf("want 100 got %v", got)
	}
}

func TestPreviousReading_FirstEverReading(t *testing.T) {
	readings := []storage.Reading{
		{Period: "2026-01", Value: 100},
	}
	if got := PreviousReading(readings, "2026-01"); got != nil {
		t.Errorf("want nil for oldest reading, got %v", *got)
	}
}

func TestPreviousReading_MissingPeriodFallsBackToMostRecent(t *testing.T) {
	// The period being billed has no reading row yet: the most recent
	// reading is returned as a best-effort previous value, not nil.
	readings := []storage.Reading{
		{Period: "2026-05", Value: 100},
	}
	got := PreviousReading(readings, "2026-06")
	if got == nil || *got != 100 {
		t.Errorf("want fallback 100 got %v", got)
	}
}

func TestCompose_TotalIsSumOfComponents(t *testing.T) {
	ch := Charges{
		PreviousDebt:   3.00,
		FinesReuniones: 1.00,
		FinesMingas:    2.00,
		MoraAmount:     0.30,
		GardenAmount:   1.50,
	}
	bill := Compose("m1", "2026-01", 130, f(100), standardBands(), ch)

	if !almostEqual(bill.TariffTotal, 7.00) {
		t.Errorf("tariff total: want 7.00 got %v", bill.TariffTotal)
	}
	want := ch.PreviousDebt + bill.TariffTotal + ch.FinesReuniones + ch.FinesMingas + ch.MoraAmount + ch.GardenAmount
	if !almostEqual(bill.TotalAmount, want) {
		t.Errorf("total: want %v got %v", want, bill.TotalAmount)
	}
}

func TestCompose_NewBillsArePending(t *testing.T) {
	bill := Compose("m1", "2026-01", 130, f(100), standardBands(), Charges{})
	if bill.PaymentStatus != storage.PaymentPending {
		t.Errorf("payment status: want %s got %s", storage.PaymentPending, bill.PaymentStatus)
	}
}

func TestCompose_NoPreviousReadingBillsZeroConsumption(t *testing.T) {
	bill := Compose("m1", "2026-01", 500, nil, standardBands(), Charges{})
	if bill.Consumption != 0 {
		t.Errorf("consumption: want 0 got %v", bill.Consumption)
	}
	// Base band starts at 0, so the fixed charge still applies.
	if !almostEqual(bill.TariffTotal, 2.00) {
		t.Errorf("tariff total: want 2.00 got %v", bill.TariffTotal)
	}
	if bill.PreviousReading != nil {
		t.Errorf("previous reading: want nil got %v", *bill.PreviousReading)
	}
}

func TestTotal_Recompute(t *testing.T) {
	bill := Compose("m1", "2026-01", 130, f(100), standardBands(), Charges{})
	bill.MoraAmount = 4.25
	if got := Total(&bill); !almostEqual(got, bill.TariffTotal+4.25) {
		t.Errorf("total after edit: want %v got %v", bill.TariffTotal+4.25, got)
	}
}
