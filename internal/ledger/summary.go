package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/models"
)

// CustomerSummary represents the running totals of one customer.
type CustomerSummary struct {
	CustomerID   string
	CustomerName string
	TotalBilled  decimal.Decimal
	TotalPaid    decimal.Decimal
	Outstanding  decimal.Decimal // Positive = customer owes money
	LastActivity time.Time       // Date of the latest bill or payment, zero if none
}

// Summaries computes totals for every given customer, sorted by name.
// Bills and payments in excluded or belonging to other customers are ignored.
func Summaries(customers []models.Customer, bills []models.Bill, payments []models.Payment, excluded map[string]bool) []CustomerSummary {
	byID := make(map[string]*CustomerSummary, len(customers))
	for _, c := range customers {
		byID[c.ID] = &CustomerSummary{
			CustomerID:   c.ID,
			CustomerName: c.Name,
			TotalBilled:  decimal.Zero,
			TotalPaid:    decimal.Zero,
		}
	}

	for _, b := range bills {
		s, ok := byID[b.CustomerID]
		if !ok || excluded[b.ID] {
			continue
		}
		s.TotalBilled = s.TotalBilled.Add(b.GrandTotal)
		if b.Date.After(s.LastActivity) {
			s.LastActivity = b.Date
		}
	}
	for _, p := range payments {
		s, ok := byID[p.CustomerID]
		if !ok || excluded[p.ID] {
			continue
		}
		s.TotalPaid = s.TotalPaid.Add(p.Amount)
		if p.Date.After(s.LastActivity) {
			s.LastActivity = p.Date
		}
	}

	out := make([]CustomerSummary, 0, len(byID))
	for _, s := range byID {
		s.Outstanding = s.TotalBilled.Sub(s.TotalPaid)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CustomerName != out[j].CustomerName {
			return out[i].CustomerName < out[j].CustomerName
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out
}

// TotalOutstanding sums the outstanding balance across summaries.
func TotalOutstanding(summaries []CustomerSummary) decimal.Decimal {
	total := decimal.Zero
	for _, s := range summaries {
		total = total.Add(s.Outstanding)
	}
	return total
}
