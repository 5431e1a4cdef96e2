package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =====================================================
// STANDARD DEPOSIT POLICY
// =====================================================
// A deposit is offered only while the trip is far enough away; the amount is
// a fixed percentage of the pending balance.
type StandardDepositPolicy struct {
	// Percent of pending offered as deposit, e.g. 30.
	Percent decimal.Decimal

	// Minimum days between today and the earliest reservation start.
	MinAdvanceDays int

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewStandardDepositPolicy(percent float64, minAdvanceDays int) *StandardDepositPolicy {
	return &StandardDepositPolicy{
		Percent:        decimal.NewFromFloat(percent),
		MinAdvanceDays: minAdvanceDays,
		Clock:          time.Now,
	}
}

func (p *StandardDepositPolicy) DepositAllowed(reservations []Reservation) bool {
	if len(reservations) == 0 {
		return false
	}

	earliest := reservations[0].StartDate
	for _, r := range reservations[1:] {
		if r.StartDate.Before(earliest) {
			earliest = r.StartDate
		}
	}
	if earliest.IsZero() {
		return false
	}

	now := p.Clock()
	return earliest.Sub(now) >= time.Duration(p.MinAdvanceDays)*24*time.Hour
}

func (p *StandardDepositPolicy) DepositAmount(pending decimal.Decimal, folderID int64) decimal.Decimal {
	amount := pending.Mul(p.Percent).Div(decimal.NewFromInt(100)).Round(2)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
