package billing

import (
	"math"
	"testing"

	"github.com/avillalba/watertariff/internal/storage"
)

func f(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// standardBands mirrors the catalog most juntas configure: a flat base charge
// up to 15 m3 and three progressive ranges above it.
func standardBands() []storage.TariffBand {
	return []storage.TariffBand{
		{ID: "base", Name: "BASE", MinConsumption: 0, MaxConsumption: f(15), FixedCharge: 2.00, OrderIndex: 0, Status: storage.BandActive},
		{ID: "r1", Name: "Rango 16-20", MinConsumption: 16, MaxConsumption: f(20), PricePerUnit: 0.20, OrderIndex: 1, Status: storage.BandActive},
		{ID: "r2", Name: "Rango 21-25", MinConsumption: 21, MaxConsumption: f(25), PricePerUnit: 0.30, OrderIndex: 2, Status: storage.BandActive},
		{ID: "r3", Name: "Rango 26+", MinConsumption: 26, PricePerUnit: 0.50, OrderIndex: 3, Status: storage.BandActive},
	}
}

func TestAllocate_SpansAllRanges(t *testing.T) {
	calc := Allocate(30, standardBands())

	if !almostEqual(calc.Base, 2.00) {
		t.Errorf("base: want 2.00 got %v", calc.Base)
	}
	if !almostEqual(calc.Range16To20, 1.00) {
		t.Errorf("range 16-20: want 1.00 got %v", calc.Range16To20)
	}
	if !almostEqual(calc.Range21To25, 1.50) {
		t.Errorf("range 21-25: want 1.50 got %v", calc.Range21To25)
	}
	if !almostEqual(calc.Range26Plus, 2.50) {
		t.Errorf("range 26+: want 2.50 got %v", calc.Range26Plus)
	}
	if !almostEqual(calc.TariffTotal, 7.00) {
		t.Errorf("tariff total: want 7.00 got %v", calc.TariffTotal)
	}
	if len(calc.Breakdown) != 4 {
		t.Errorf("expected 4 breakdown entries, got %d", len(calc.Breakdown))
	}
}

func TestAllocate_BaseOnly(t *testing.T) {
	calc := Allocate(10, standardBands())

	if !almostEqual(calc.Base, 2.00) {
		t.Errorf("base: want 2.00 got %v", calc.Base)
	}
	if calc.Range16To20 != 0 || calc.Range21To25 != 0 || calc.Range26Plus != 0 {
		t.Errorf("expected empty range buckets, got %v %v %v", calc.Range16To20, calc.Range21To25, calc.Range26Plus)
	}
	if !almostEqual(calc.TariffTotal, 2.00) {
		t.Errorf("tariff total: want 2.00 got %v", calc.TariffTotal)
	}
}

func TestAllocate_ZeroConsumptionStillPaysBase(t *testing.T) {
	// The base band starts at 0, so the fixed charge applies even with no
	// consumption at all.
	calc := Allocate(0, standardBands())
	if !almostEqual(calc.TariffTotal, 2.00) {
		t.Errorf("tariff total: want 2.00 got %v", calc.TariffTotal)
	}
}

func TestAllocate_FixedChargeAppliesOnce(t *testing.T) {
	for _, consumption := range []float64{0, 15, 30, 500} {
		calc := Allocate(consumption, standardBands())
		if !almostEqual(calc.Base, 2.00) {
			t.Errorf("consumption %v: base want 2.00 got %v", consumption, calc.Base)
		}
	}
}

func TestAllocate_MaxUnitsCapsOpenEndedBand(t *testing.T) {
	bands := standardBands()
	bands[3].MaxUnits = f(5)

	calc := Allocate(40, bands)
	if !almostEqual(calc.Range26Plus, 2.50) {
		t.Errorf("range 26+: want capped 2.50 got %v", calc.Range26Plus)
	}
}

func TestAllocate_BelowEveryBandIsZero(t *testing.T) {
	bands := []storage.TariffBand{
		{Name: "Rango 16-20", MinConsumption: 16, MaxConsumption: f(20), PricePerUnit: 0.20, OrderIndex: 0, Status: storage.BandActive},
		{Name: "Rango 21-25", MinConsumption: 21, MaxConsumption: f(25), PricePerUnit: 0.30, OrderIndex: 1, Status: storage.BandActive},
	}
	calc := Allocate(5, bands)
	if calc.TariffTotal != 0 {
		t.Errorf("tariff total: want 0 got %v", calc.TariffTotal)
	}
	if len(calc.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d entries", len(calc.Breakdown))
	}
}

func TestAllocate_BucketRoutingIgnoresEvaluationOrder(t *testing.T) {
	// Administrators may reorder bands; amounts must still land in the
	// bucket matching each band's numeric range.
	bands := standardBands()
	reordered := []storage.TariffBand{bands[3], bands[1], bands[0], bands[2]}
	for i := range reordered {
		reordered[i].OrderIndex = i
	}

	calc := Allocate(30, reordered)
	if !almostEqual(calc.Range16To20, 1.00) || !almostEqual(calc.Range21To25, 1.50) || !almostEqual(calc.Range26Plus, 2.50) {
		t.Errorf("buckets changed with evaluation order: %v %v %v", calc.Range16To20, calc.Range21To25, calc.Range26Plus)
	}
	if !almostEqual(calc.TariffTotal, 7.00) {
		t.Errorf("tariff total: want 7.00 got %v", calc.TariffTotal)
	}
}

func TestAllocate_PerUnitBandBelow16HasNoBucket(t *testing.T) {
	// A per-unit band fully inside [0,15] contributes to the breakdown but
	// to none of the report buckets, and therefore not to the total.
	bands := []storage.TariffBand{
		{Name: "Low", MinConsumption: 1, MaxConsumption: f(15), PricePerUnit: 0.10, OrderIndex: 0, Status: storage.BandActive},
	}
	calc := Allocate(10, bands)
	if calc.Base != 0 || calc.Range16To20 != 0 || calc.Range21To25 != 0 || calc.Range26Plus != 0 {
		t.Errorf("expected all buckets zero, got %+v", calc)
	}
	if calc.TariffTotal != 0 {
		t.Errorf("tariff total: want 0 got %v", calc.TariffTotal)
	}
	if len(calc.Breakdown) != 1 {
		t.Fatalf("expected 1 breakdown entry, got %d", len(calc.Breakdown))
	}
	if !almostEqual(calc.Breakdown[0].Amount, 1.00) {
		t.Errorf("breakdown amount: want 1.00 got %v", calc.Breakdown[0].Amount)
	}
}

func TestAllocate_BucketsAlwaysSumToTotal(t *testing.T) {
	bands := standardBands()
	for _, consumption := range []float64{0, 3, 15, 16, 20, 21, 25, 26, 30, 100} {
		calc := Allocate(consumption, bands)
		sum := calc.Base + calc.Range16To20 + calc.Range21To25 + calc.Range26Plus
		if !almostEqual(sum, calc.TariffTotal) {
			t.Errorf("consumption %v: bucket sum %v != total %v", consumption, sum, calc.TariffTotal)
		}
	}
}

func TestAllocate_FixedChargeBandIgnoresPerUnitPrice(t *testing.T) {
	bands := []storage.TariffBand{
		{Name: "BASE", MinConsumption: 0, MaxConsumption: f(15), FixedCharge: 3.00, PricePerUnit: 0.25, OrderIndex: 0, Status: storage.BandActive},
	}
	calc := Allocate(12, bands)
	if !almostEqual(calc.TariffTotal, 3.00) {
		t.Errorf("tariff total: want flat 3.00 got %v", calc.TariffTotal)
	}
}

func TestAllocate_CappedBandPartiallyFilled(t *testing.T) {
	// Consumption of 18 reaches only 3 units into the 16-20 band.
	calc := Allocate(18, standardBands())
	if !almostEqual(calc.Range16To20, 0.60) {
		t.Errorf("range 16-20: want 0.60 got %v", calc.Range16To20)
	}
	if calc.Range21To25 != 0 || calc.Range26Plus != 0 {
		t.Errorf("expected upper buckets empty, got %v %v", calc.Range21To25, calc.Range26Plus)
	}
}
