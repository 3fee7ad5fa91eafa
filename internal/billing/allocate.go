package billing

import (
	"math"

	"github.com/avillalba/watertariff/internal/storage"
)

// Calculation is the result of allocating consumption across tariff bands.
// The four buckets always sum to TariffTotal.
type Calculation struct {
	Consumption float64      `json:"consumption"`
	Base        float64      `json:"base"`
	Range16To20 float64      `json:"range_16_20"`
	Range21To25 float64      `json:"range_21_25"`
	Range26Plus float64      `json:"range_26_plus"`
	TariffTotal float64      `json:"tariff_total"`
	Breakdown   []BandCharge `json:"breakdown"`
}

// BandCharge is one band's contribution, kept for audit and display.
type BandCharge struct {
	Band      string   `json:"band"`
	Min       float64  `json:"min"`
	Max       *float64 `json:"max,omitempty"`
	Units     float64  `json:"units"`
	UnitPrice float64  `json:"unit_price"`
	Amount    float64  `json:"amount"`
}

// Allocate distributes consumption across bands and computes each band's
// charge. Bands are evaluated in the order given, which callers obtain from
// the catalog (order_index, ties by min_consumption); Allocate never
// re-sorts. Overlapping band ranges are not detected: the algorithm is
// applied as stated and the result is additive.
func Allocate(consumption float64, bands []storage.TariffBand) Calculation {
	calc := Calculation{Consumption: consumption}

	for _, b := range bands {
		if b.FixedCharge > 0 {
			// A positive fixed charge makes this a flat-fee band; its
			// per-unit price is ignored. It contributes at most once,
			// however far consumption exceeds its range.
			if consumption >= b.MinConsumption {
				calc.Base += b.FixedCharge
				calc.Breakdown = append(calc.Breakdown, BandCharge{
					Band:      b.Name,
					Min:       b.MinConsumption,
					Max:       b.MaxConsumption,
					Units:     1,
					UnitPrice: b.FixedCharge,
					Amount:    b.FixedCharge,
				})
			}
			continue
		}

		if b.PricePerUnit <= 0 || consumption < b.MinConsumption {
			continue
		}

		previousLimit := b.MinConsumption - 1
		var units float64
		if b.MaxConsumption == nil {
			// Open-ended top band.
			units = math.Max(0, consumption-previousLimit)
		} else {
			actualMax := math.Min(consumption, *b.MaxConsumption)
			if actualMax > previousLimit {
				units = actualMax - previousLimit
			}
		}
		if b.MaxUnits != nil && units > *b.MaxUnits {
			units = *b.MaxUnits
		}
		amount := units * b.PricePerUnit

		// Bucket routing goes by the band's numeric lower bound, never by
		// its position in the evaluation order: reordering bands must not
		// change which report bucket an amount lands in. Per-unit bands
		// fully below 16 route to no bucket; only their fixed-charge form
		// reaches the base bucket.
		switch {
		case b.MinConsumption >= 26:
			calc.Range26Plus += amount
		case b.MinConsumption >= 21:
			calc.Range21To25 += amount
		case b.MinConsumption >= 16:
			calc.Range16To20 += amount
		}

		if units > 0 {
			calc.Breakdown = append(calc.Breakdown, BandCharge{
				Band:      b.Name,
				Min:       b.MinConsumption,
				Max:       b.MaxConsumption,
				Units:     units,
				UnitPrice: b.PricePerUnit,
				Amount:    amount,
			})
		}
	}

	calc.TariffTotal = calc.Base + calc.Range16To20 + calc.Range21To25 + calc.Range26Plus
	return calc
}
