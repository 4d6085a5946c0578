package netmetering

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/raterudder/payback/pkg/types"
)

// CreditLifetimeMonths is how long an unused credit stays on the ledger.
const CreditLifetimeMonths = 12

// ExpiryEvent records credit that was forfeited unused.
type ExpiryEvent struct {
	GeneratedMonth time.Time `json:"generatedMonth"`
	ExpiredMonth   time.Time `json:"expiredMonth"`
	Amount         float64   `json:"amount"`
}

type ledgerEntry struct {
	month  time.Time
	amount decimal.Decimal
}

// CreditQueue holds net-metering credits oldest first.
type CreditQueue struct {
	entries []ledgerEntry
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// Push appends a credit generated in the month. Non-positive amounts are
// ignored.
func (q *CreditQueue) Push(month time.Time, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	q.entries = append(q.entries, ledgerEntry{month: month, amount: amount})
}

// Drawdown consumes up to amount from the oldest credits first and returns
// how much was consumed.
func (q *CreditQueue) Drawdown(amount decimal.Decimal) decimal.Decimal {
	consumed := decimal.Zero
	for len(q.entries) > 0 && amount.IsPositive() {
		e := &q.entries[0]
		if e.amount.Cmp(amount) > 0 {
			e.amount = e.amount.Sub(amount)
			consumed = consumed.Add(amount)
			break
		}
		consumed = consumed.Add(e.amount)
		amount = amount.Sub(e.amount)
		q.entries = q.entries[1:]
	}
	return consumed
}

// Expire removes every credit generated CreditLifetimeMonths or more before
// the current month.
func (q *CreditQueue) Expire(current time.Time) (decimal.Decimal, []ExpiryEvent) {
	expired := decimal.Zero
	var events []ExpiryEvent
	cur := monthIndex(current)
	for len(q.entries) > 0 && cur-monthIndex(q.entries[0].month) >= CreditLifetimeMonths {
		e := q.entries[0]
		expired = expired.Add(e.amount)
		events = append(events, ExpiryEvent{
			GeneratedMonth: e.month,
			ExpiredMonth:   current,
			Amount:         e.amount.InexactFloat64(),
		})
		q.entries = q.entries[1:]
	}
	return expired, events
}

// Balance returns the outstanding credit.
func (q *CreditQueue) Balance() decimal.Decimal {
	total := decimal.Zero
	for _, e := range q.entries {
		total = total.Add(e.amount)
	}
	return total
}

// Entries returns the outstanding credits oldest first.
func (q *CreditQueue) Entries() []types.CreditLedgerEntry {
	out := make([]types.CreditLedgerEntry, len(q.entries))
	for i, e := range q.entries {
		out[i] = types.CreditLedgerEntry{Month: e.month, Amount: e.amount.InexactFloat64()}
	}
	return out
}
