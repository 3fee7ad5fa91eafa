// Package report exports period billing summaries as CSV and imports
// per-meter garden charges from CSV files.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/avillalba/watertariff/internal/storage"
)

type Service struct {
	storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{storage: s}
}

var periodHeader = []string{
	"meter_code", "owner_name", "sector", "period",
	"previous_reading", "current_reading", "consumption",
	"base_amount", "range_16_20", "range_21_25", "range_26_plus", "tariff_total",
	"previous_debt", "fines_reuniones", "fines_mingas", "mora_amount", "garden_amount",
	"total_amount", "payment_status",
}

// WritePeriodCSV writes all bills for a period as CSV rows sorted by meter
// code so the output is stable across runs.
func (s *Service) WritePeriodCSV(ctx context.Context, w io.Writer, period string) error {
	bills, err := s.storage.ListBillsForPeriod(ctx, period)
	if err != nil {
		return fmt.Errorf("list bills for %s: %w", period, err)
	}

	meters, err := s.storage.ListMeters(ctx)
	if err != nil {
		return fmt.Errorf("list meters: %w", err)
	}
	byID := make(map[string]storage.Meter, len(meters))
	for _, m := range meters {
		byID[m.ID] = m
	}

	sort.Slice(bills, func(i, j int) bool {
		return byID[bills[i].MeterID].Code < byID[bills[j].MeterID].Code
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(periodHeader); err != nil {
		return err
	}
	for _, b := range bills {
		m := byID[b.MeterID]
		prev := ""
		if b.PreviousReading != nil {
			prev = fmtAmount(*b.PreviousReading)
		}
		row := []string{
			m.Code, m.OwnerName, m.Sector, b.Period,
			prev, fmtAmount(b.CurrentReading), fmtAmount(b.Consumption),
			fmtAmount(b.BaseAmount), fmtAmount(b.Range16To20), fmtAmount(b.Range21To25),
			fmtAmount(b.Range26Plus), fmtAmount(b.TariffTotal),
			fmtAmount(b.PreviousDebt), fmtAmount(b.FinesReuniones), fmtAmount(b.FinesMingas),
			fmtAmount(b.MoraAmount), fmtAmount(b.GardenAmount),
			fmtAmount(b.TotalAmount), b.PaymentStatus,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ImportResult summarizes a garden charge import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportGardenCSV reads rows of meter_code,period,amount and upserts a garden
// charge for each. Rows that fail to resolve or parse are reported in the
// result; the import continues past them.
func (s *Service) ImportGardenCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	res := &ImportResult{}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		// Skip a header row if present.
		if line == 1 && rec[0] == "meter_code" {
			continue
		}

		code, period := rec[0], rec[1]
		amount, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: bad amount %q", line, rec[2]))
			continue
		}
		if amount < 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: negative amount", line))
			continue
		}

		m, err := s.storage.GetMeterByCode(ctx, code)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: meter %s: %v", line, code, err))
			continue
		}
		if m == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: unknown meter %s", line, code))
			continue
		}

		g := storage.GardenCharge{MeterID: m.ID, Period: period, Amount: amount}
		if err := s.storage.UpsertGardenValue(ctx, g); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: save: %v", line, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}
