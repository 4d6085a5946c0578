// Package netmetering settles hourly production and consumption into monthly
// bills with carried-forward credits.
package netmetering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

// ErrUnordered is returned when hours are not in chronological order.
var ErrUnordered = errors.New("hours are not in chronological order")

// MonthlyStatement is the settled bill of one month.
type MonthlyStatement struct {
	Month time.Time `json:"month"`

	ProductionKWH       float64 `json:"productionKWH"`
	LoadKWH             float64 `json:"loadKWH"`
	SelfConsumedKWH     float64 `json:"selfConsumedKWH"`
	BatteryChargeKWH    float64 `json:"batteryChargeKWH"`
	BatteryDischargeKWH float64 `json:"batteryDischargeKWH"`
	ExportKWH           float64 `json:"exportKWH"`
	ImportKWH           float64 `json:"importKWH"`

	ExportCredit float64 `json:"exportCredit"`
	ImportCost   float64 `json:"importCost"`
	// NetPosition is export credit minus import cost.
	NetPosition   float64 `json:"netPosition"`
	CreditApplied float64 `json:"creditApplied"`
	CreditAdded   float64 `json:"creditAdded"`
	Expired       float64 `json:"expired"`
	Bill          float64 `json:"bill"`
	Balance       float64 `json:"balance"`
}

// Result is a full settlement.
type Result struct {
	Months   []MonthlyStatement        `json:"months"`
	Expiries []ExpiryEvent             `json:"expiries,omitempty"`
	Ledger   []types.CreditLedgerEntry `json:"ledger"`

	TotalImportCost   float64 `json:"totalImportCost"`
	TotalExportCredit float64 `json:"totalExportCredit"`
	TotalBill         float64 `json:"totalBill"`
	TotalCreditAdded  float64 `json:"totalCreditAdded"`
	TotalApplied      float64 `json:"totalApplied"`
	TotalExpired      float64 `json:"totalExpired"`
	FinalBalance      float64 `json:"finalBalance"`
}

// reading is one metered hour after any battery action.
type reading struct {
	ts         time.Time
	production float64
	load       float64
	self       float64
	charge     float64
	discharge  float64
	export     float64
	imported   float64
}

// Settle nets each hour's production against its load, runs the battery on
// the difference and rolls the hours up into monthly bills. Surplus months
// add credit to a FIFO ledger, deficit months draw it down and credits expire
// after CreditLifetimeMonths.
func Settle(ctx context.Context, t *tariff.Tariff, hours []types.HourlyFlow, b *types.BatteryDevice) (*Result, error) {
	if t == nil {
		return nil, errors.New("tariff is required")
	}
	var (
		usable, power float64
		eff           = 1.0
		soc           float64
	)
	if b != nil {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid battery: %w", err)
		}
		usable = b.UsableKWH
		eff = b.Efficiency()
		power = b.MaxPowerKW
	}
	if power <= 0 {
		power = math.Inf(1)
	}

	readings := make([]reading, 0, len(hours))
	for i, h := range hours {
		if i > 0 && h.TS.Before(hours[i-1].TS) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnordered, h.TS.Format(time.RFC3339), hours[i-1].TS.Format(time.RFC3339))
		}
		if h.ProductionKWH < 0 || h.LoadKWH < 0 {
			return nil, fmt.Errorf("negative energy at %s", h.TS.Format(time.RFC3339))
		}
		self := math.Min(h.ProductionKWH, h.LoadKWH)
		r := reading{
			ts:         h.TS,
			production: h.ProductionKWH,
			load:       h.LoadKWH,
			self:       self,
			export:     h.ProductionKWH - self,
			imported:   h.LoadKWH - self,
		}
		if usable > 0 {
			r.charge = math.Max(0, math.Min(math.Min(r.export, power), (usable-soc)/eff))
			soc += r.charge * eff
			r.export -= r.charge
			r.discharge = math.Max(0, math.Min(math.Min(r.imported, power), soc))
			soc -= r.discharge
			r.imported -= r.discharge
		}
		readings = append(readings, r)
	}
	return settle(ctx, t, readings), nil
}

// SettleDispatch settles the hours of an hourly dispatch as they were
// simulated. Grid charging shows up as import and solar the battery did not
// take is exported.
func SettleDispatch(ctx context.Context, t *tariff.Tariff, hours []types.HourTrace) (*Result, error) {
	if t == nil {
		return nil, errors.New("tariff is required")
	}
	readings := make([]reading, 0, len(hours))
	for i, h := range hours {
		if i > 0 && h.TS.Before(hours[i-1].TS) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnordered, h.TS.Format(time.RFC3339), hours[i-1].TS.Format(time.RFC3339))
		}
		if h.SolarKWH < 0 || h.LoadKWH < 0 {
			return nil, fmt.Errorf("negative energy at %s", h.TS.Format(time.RFC3339))
		}
		// solar used directly is whatever load the grid and battery did not serve
		self := h.LoadKWH - (h.GridKWH + h.DischargeKWH - h.GridChargeKWH)
		self = math.Max(0, math.Min(self, math.Min(h.SolarKWH, h.LoadKWH)))
		readings = append(readings, reading{
			ts:         h.TS,
			production: h.SolarKWH,
			load:       h.LoadKWH,
			self:       self,
			charge:     h.SolarChargeKWH + h.GridChargeKWH,
			discharge:  h.DischargeKWH,
			export:     math.Max(0, h.SolarKWH-self-h.SolarChargeKWH),
			imported:   math.Max(0, h.GridKWH),
		})
	}
	return settle(ctx, t, readings), nil
}

func settle(ctx context.Context, t *tariff.Tariff, readings []reading) *Result {
	loc := t.Location()
	res := &Result{}
	var (
		cur    *MonthlyStatement
		credit float64
		cost   float64
	)
	for _, r := range readings {
		ts := r.ts.In(loc)
		month := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, loc)
		if cur == nil || !cur.Month.Equal(month) {
			if cur != nil {
				cur.ExportCredit, cur.ImportCost = credit, cost
				res.Months = append(res.Months, *cur)
			}
			cur = &MonthlyStatement{Month: month}
			credit, cost = 0, 0
		}

		cur.ProductionKWH += r.production
		cur.LoadKWH += r.load
		cur.SelfConsumedKWH += r.self
		cur.BatteryChargeKWH += r.charge
		cur.BatteryDischargeKWH += r.discharge
		cur.ExportKWH += r.export
		cur.ImportKWH += r.imported
		if r.export > 0 {
			credit += r.export * t.ExportPrice(ts)
		}
		if r.imported > 0 {
			cost += r.imported * t.ResolveTime(ts).DollarsPerKWH
		}
	}
	if cur != nil {
		cur.ExportCredit, cur.ImportCost = credit, cost
		res.Months = append(res.Months, *cur)
	}

	var (
		q                                  CreditQueue
		added, applied, expired, totalBill decimal.Decimal
	)
	for i := range res.Months {
		m := &res.Months[i]

		exp, events := q.Expire(m.Month)
		for _, e := range events {
			log.Ctx(ctx).WarnContext(
				ctx,
				"net metering credit expired",
				slog.Time("generated", e.GeneratedMonth),
				slog.Time("expired", e.ExpiredMonth),
				slog.Float64("amount", e.Amount),
			)
		}
		res.Expiries = append(res.Expiries, events...)
		expired = expired.Add(exp)
		m.Expired = exp.InexactFloat64()

		net := decimal.NewFromFloat(m.ExportCredit).Sub(decimal.NewFromFloat(m.ImportCost))
		m.NetPosition = net.InexactFloat64()
		if net.IsPositive() {
			q.Push(m.Month, net)
			added = added.Add(net)
			m.CreditAdded = m.NetPosition
		} else {
			owed := net.Neg()
			used := q.Drawdown(owed)
			applied = applied.Add(used)
			bill := owed.Sub(used)
			totalBill = totalBill.Add(bill)
			m.CreditApplied = used.InexactFloat64()
			m.Bill = bill.InexactFloat64()
		}
		m.Balance = q.Balance().InexactFloat64()

		res.TotalImportCost += m.ImportCost
		res.TotalExportCredit += m.ExportCredit
	}
	res.TotalCreditAdded = added.InexactFloat64()
	res.TotalApplied = applied.InexactFloat64()
	res.TotalExpired = expired.InexactFloat64()
	res.TotalBill = totalBill.InexactFloat64()
	res.FinalBalance = q.Balance().InexactFloat64()
	res.Ledger = q.Entries()
	return res
}

// Flows pairs aligned load and production series into hourly flows.
func Flows(load, production []types.HourlyEnergy) ([]types.HourlyFlow, error) {
	if len(production) > 0 && len(production) != len(load) {
		return nil, fmt.Errorf("production has %d hours but load has %d", len(production), len(load))
	}
	out := make([]types.HourlyFlow, len(load))
	for i, l := range load {
		out[i] = types.HourlyFlow{TS: l.TS, LoadKWH: l.KWH}
		if len(production) > 0 {
			out[i].ProductionKWH = production[i].KWH
		}
	}
	return out, nil
}
