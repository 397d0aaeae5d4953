// Package ledger derives customer statements from bills and payments.
//
// Nothing here is stored. Every function is a pure computation over the
// collections it is given, so an edit or delete anywhere in history is
// reflected by simply calling it again.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/models"
)

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month t falls in.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Next returns the following month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m is earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}

// activity is one month's bill and payment totals.
type activity struct {
	bills    decimal.Decimal
	payments decimal.Decimal
}

// MonthlyBalances computes the statement of one customer.
//
// Algorithm:
// - Keep the customer's bills and payments whose ids are not in excluded
// - Group them by the (year, month) of their date
// - Walk from the first to the last month with activity, oldest first;
//   months in between with no activity appear with zero bills and payments
// - opening(m) = closing(m-1), 0 for the first month
// - closing(m) = opening(m) + bills(m) - payments(m)
//
// The result is empty when the customer has no activity.
func MonthlyBalances(customerID string, bills []models.Bill, payments []models.Payment, excluded map[string]bool) []models.MonthlyBalance {
	months := make(map[Month]*activity)
	touch := func(m Month) *activity {
		a, ok := months[m]
		if !ok {
			a = &activity{}
			months[m] = a
		}
		return a
	}

	for _, b := range bills {
		if b.CustomerID != customerID || excluded[b.ID] {
			continue
		}
		a := touch(MonthOf(b.Date))
		a.bills = a.bills.Add(b.GrandTotal)
	}
	for _, p := range payments {
		if p.CustomerID != customerID || excluded[p.ID] {
			continue
		}
		a := touch(MonthOf(p.Date))
		a.payments = a.payments.Add(p.Amount)
	}
	if len(months) == 0 {
		return []models.MonthlyBalance{}
	}

	keys := make([]Month, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	first, last := keys[0], keys[len(keys)-1]

	var out []models.MonthlyBalance
	balance := decimal.Zero
	for m := first; !last.Before(m); m = m.Next() {
		a := months[m]
		if a == nil {
			a = &activity{}
		}
		closing := balance.Add(a.bills).Sub(a.payments)
		out = append(out, models.MonthlyBalance{
			Year:           m.Year,
			Month:          m.Month,
			OpeningBalance: balance,
			Bills:          a.bills,
			Payments:       a.payments,
			ClosingBalance: closing,
		})
		balance = closing
	}
	return out
}

// Outstanding returns what the customer owes: Σ bills - Σ payments over the
// records not in excluded. It always equals the closing balance of the last
// month from MonthlyBalances.
func Outstanding(customerID string, bills []models.Bill, payments []models.Payment, excluded map[string]bool) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bills {
		if b.CustomerID == customerID && !excluded[b.ID] {
			total = total.Add(b.GrandTotal)
		}
	}
	for _, p := range payments {
		if p.CustomerID == customerID && !excluded[p.ID] {
			total = total.Sub(p.Amount)
		}
	}
	return total
}

// Window restricts a statement to the months from..to inclusive.
// Earlier months fold into the opening balance of from, later months are
// dropped, and every month of the window is present even without activity.
func Window(balances []models.MonthlyBalance, from, to Month) ([]models.MonthlyBalance, error) {
	if to.Before(from) {
		return nil, apperr.Validationf("statement window ends (%s) before it starts (%s)", to, from)
	}

	byMonth := make(map[Month]models.MonthlyBalance, len(balances))
	carry := decimal.Zero
	for _, b := range balances {
		m := Month{Year: b.Year, Month: b.Month}
		byMonth[m] = b
		if m.Before(from) {
			carry = b.ClosingBalance
		}
	}

	var out []models.MonthlyBalance
	for m := from; !to.Before(m); m = m.Next() {
		b, ok := byMonth[m]
		if !ok {
			b = models.MonthlyBalance{
				Year:           m.Year,
				Month:          m.Month,
				OpeningBalance: carry,
				Bills:          decimal.Zero,
				Payments:       decimal.Zero,
				ClosingBalance: carry,
			}
		}
		out = append(out, b)
		carry = b.ClosingBalance
	}
	return out, nil
}
