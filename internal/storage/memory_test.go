package storage

import (
	"context"
	"testing"
)

func TestMemory_UpsertReadingReplacesPeriod(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if err := m.UpsertReading(ctx, Reading{MeterID: "m1", Period: "2026-01", Value: 100}); err != nil {
		t.Fatalf("UpsertReading failed: %v", err)
	}
	if err := m.UpsertReading(ctx, Reading{MeterID: "m1", Period: "2026-01", Value: 105}); err != nil {
		t.Fatalf("UpsertReading failed: %v", err)
	}

	readings, err := m.ListReadingsForMeter(ctx, "m1")
	if err != nil {
		t.Fatalf("ListReadingsForMeter failed: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(readings))
	}
	if readings[0].Value != 105 {
		t.Fatalf("expected replaced value 105, got %v", readings[0].Value)
	}
}

func TestMemory_ListReadingsForMeter_PeriodDescending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	for _, p := range []string{"2025-11", "2026-01", "2025-12"} {
		if err := m.UpsertReading(ctx, Reading{MeterID: "m1", Period: p, Value: 1}); err != nil {
			t.Fatalf("UpsertReading failed: %v", err)
		}
	}
	// Another meter's readings must not leak in.
	if err := m.UpsertReading(ctx, Reading{MeterID: "m2", Period: "2026-02", Value: 9}); err != nil {
		t.Fatalf("UpsertReading failed: %v", err)
	}

	readings, err := m.ListReadingsForMeter(ctx, "m1")
	if err != nil {
		t.Fatalf("ListReadingsForMeter failed: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	want := []string{"2026-01", "2025-12", "2025-11"}
	for i, p := range want {
		if readings[i].Period != p {
			t.Errorf("position %d: want period %s got %s", i, p, readings[i].Period)
		}
	}
}

func TestMemory_SaveBillUpsertsByMeterPeriod(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if err := m.SaveBill(ctx, Bill{MeterID: "m1", Period: "2026-01", TotalAmount: 7}); err != nil {
		t.Fatalf("SaveBill failed: %v", err)
	}
	if err := m.SaveBill(ctx, Bill{MeterID: "m1", Period: "2026-01", TotalAmount: 9.5}); err != nil {
		t.Fatalf("SaveBill failed: %v", err)
	}

	bills, err := m.ListBillsForPeriod(ctx, "2026-01")
	if err != nil {
		t.Fatalf("ListBillsForPeriod failed: %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("expected upsert to keep one bill, got %d", len(bills))
	}
	if bills[0].TotalAmount != 9.5 {
		t.Fatalf("expected updated total 9.5, got %v", bills[0].TotalAmount)
	}
}

func TestMemory_ListActiveTariffBands_Ordering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	bands := []TariffBand{
		{ID: "b3", Name: "R2", MinConsumption: 21, OrderIndex: 2, Status: BandActive},
		{ID: "b1", Name: "BASE", MinConsumption: 0, OrderIndex: 0, Status: BandActive},
		{ID: "b2", Name: "R1", MinConsumption: 16, OrderIndex: 1, Status: BandActive},
		{ID: "b4", Name: "OLD", MinConsumption: 0, OrderIndex: 3, Status: BandInactive},
		// Same order index as R1, higher min: must sort after it.
		{ID: "b5", Name: "R1b", MinConsumption: 18, OrderIndex: 1, Status: BandActive},
	}
	for _, b := range bands {
		if err := m.UpsertTariffBand(ctx, b); err != nil {
			t.Fatalf("UpsertTariffBand failed: %v", err)
		}
	}

	active, err := m.ListActiveTariffBands(ctx)
	if err != nil {
		t.Fatalf("ListActiveTariffBands failed: %v", err)
	}
	want := []string{"BASE", "R1", "R1b", "R2"}
	if len(active) != len(want) {
		t.Fatalf("expected %d active bands, got %d", len(want), len(active))
	}
	for i, name := range want {
		if active[i].Name != name {
			t.Errorf("position %d: want %s got %s", i, name, active[i].Name)
		}
	}
}

func TestMemory_GetDebt_MissingRowIsNil(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	d, err := m.GetDebt(ctx, "m1", "2026-01")
	if err != nil {
		t.Fatalf("GetDebt failed: %v", err)
	}
	if d != nil {
		t.Fatalf("expected nil for missing debt row, got %+v", d)
	}
}
