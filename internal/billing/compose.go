package billing

import (
	"github.com/avillalba/watertariff/internal/storage"
)

// Consumption returns the billed delta between the current and previous
// readings. A missing previous reading yields 0. Negative deltas (meter
// rollback, replacement, or data error) clamp to 0 rather than being flagged.
func Consumption(current float64, previous *float64) float64 {
	if previous == nil {
		return 0
	}
	delta := current - *previous
	if delta < 0 {
		return 0
	}
	return delta
}

// PreviousReading resolves the reading that precedes currentPeriod in a list
// already ordered by period descending. When currentPeriod is not among the
// readings, the most recent reading is returned as a best-effort fallback —
// not nil — even though it may not belong to the immediately preceding
// period. Processing periods out of order can therefore misattribute the
// previous value; that behavior is kept as-is.
func PreviousReading(readings []storage.Reading, currentPeriod string) *float64 {
	if len(readings) == 0 {
		return nil
	}
	for i := range readings {
		if readings[i].Period == currentPeriod {
			if i+1 < len(readings) {
				v := readings[i+1].Value
				return &v
			}
			return nil
		}
	}
	v := readings[0].Value
	return &v
}

// Charges are the non-tariff components of a bill. Each defaults to zero when
// the corresponding row is missing.
type Charges struct {
	PreviousDebt   float64
	FinesReuniones float64
	FinesMingas    float64
	MoraAmount     float64
	GardenAmount   float64
}

// Compose builds the bill for one meter and period from a current reading, a
// resolved previous reading, the tariff catalog and the period's charges.
// Newly composed bills are always PENDIENTE; credit is a separate, explicit
// transition.
func Compose(meterID, period string, current float64, previous *float64, bands []storage.TariffBand, ch Charges) storage.Bill {
	calc := Allocate(Consumption(current, previous), bands)

	bill := storage.Bill{
		MeterID:         meterID,
		Period:          period,
		PreviousReading: previous,
		CurrentReading:  current,
		Consumption:     calc.Consumption,
		BaseAmount:      calc.Base,
		Range16To20:     calc.Range16To20,
		Range21To25:     calc.Range21To25,
		Range26Plus:     calc.Range26Plus,
		TariffTotal:     calc.TariffTotal,
		PreviousDebt:    ch.PreviousDebt,
		FinesReuniones:  ch.FinesReuniones,
		FinesMingas:     ch.FinesMingas,
		MoraAmount:      ch.MoraAmount,
		GardenAmount:    ch.GardenAmount,
		PaymentStatus:   storage.PaymentPending,
	}
	bill.TotalAmount = Total(&bill)
	return bill
}

// Total recomputes the payable amount from the six components. Every path
// that mutates a bill must go through this; TotalAmount is never written
// directly.
func Total(b *storage.Bill) float64 {
	return b.PreviousDebt + b.TariffTotal + b.FinesReuniones + b.FinesMingas + b.MoraAmount + b.GardenAmount
}
