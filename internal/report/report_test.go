package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/avillalba/watertariff/internal/storage"
)

func seed(t *testing.T) storage.Storage {
	t.Helper()
	st := storage.NewMemory()
	ctx := context.Background()
	meters := []storage.Meter{
		{ID: "m2", Code: "002", OwnerName: "Luis Chango", Sector: "Norte", Status: "active"},
		{ID: "m1", Code: "001", OwnerName: "Rosa Quispe", Sector: "Centro", Status: "active"},
	}
	for _, m := range meters {
		if err := st.UpsertMeter(ctx, m); err != nil {
			t.Fatalf("seed meter: %v", err)
		}
	}
	return st
}

func TestWritePeriodCSVSortsByMeterCode(t *testing.T) {
	st := seed(t)
	ctx := context.Background()
	for _, b := range []storage.Bill{
		{MeterID: "m2", Period: "2026-03", CurrentReading: 120, Consumption: 20, TotalAmount: 3.0, PaymentStatus: storage.PaymentPending},
		{MeterID: "m1", Period: "2026-03", CurrentReading: 130, Consumption: 30, TotalAmount: 7.0, PaymentStatus: storage.PaymentCredited},
	} {
		if err := st.SaveBill(ctx, b); err != nil {
			t.Fatalf("seed bill: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := NewService(st).WritePeriodCSV(ctx, &buf, "2026-03"); err != nil {
		t.Fatalf("WritePeriodCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "meter_code,owner_name") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "001,") {
		t.Errorf("expected meter 001 first, got: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "002,") {
		t.Errorf("expected meter 002 second, got: %s", lines[2])
	}
	if !strings.Contains(lines[1], storage.PaymentCredited) {
		t.Errorf("expected payment status in row: %s", lines[1])
	}
}

func TestWritePeriodCSVEmptyPeriod(t *testing.T) {
	st := seed(t)
	var buf bytes.Buffer
	if err := NewService(st).WritePeriodCSV(context.Background(), &buf, "2026-07"); err != nil {
		t.Fatalf("WritePeriodCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
}

func TestImportGardenCSV(t *testing.T) {
	st := seed(t)
	ctx := context.Background()
	in := strings.Join([]string{
		"meter_code,period,amount",
		"001,2026-03,1.50",
		"999,2026-03,2.00",
		"002,2026-03,abc",
		"002,2026-03,0.75",
	}, "\n")

	res, err := NewService(st).ImportGardenCSV(ctx, strings.NewReader(in))
	if err != nil {
		t.Fatalf("ImportGardenCSV: %v", err)
	}
	if res.Imported != 2 {
		t.Errorf("expected 2 imported, got %d", res.Imported)
	}
	if len(res.Errors) != 2 {
		t.Errorf("expected 2 row errors, got %v", res.Errors)
	}

	g, err := st.GetGardenValue(ctx, "m1", "2026-03")
	if err != nil || g == nil {
		t.Fatalf("garden charge for m1 missing: %v", err)
	}
	if g.Amount != 1.50 {
		t.Errorf("expected amount 1.50, got %v", g.Amount)
	}
}

func TestImportGardenCSVRejectsNegative(t *testing.T) {
	st := seed(t)
	res, err := NewService(st).ImportGardenCSV(context.Background(), strings.NewReader("001,2026-03,-5\n"))
	if err != nil {
		t.Fatalf("ImportGardenCSV: %v", err)
	}
	if res.Imported != 0 || len(res.Errors) != 1 {
		t.Errorf("expected rejection, got %+v", res)
	}
}
