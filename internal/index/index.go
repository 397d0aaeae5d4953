// Package index provides fast lookups over a snapshot of the active records.
//
// An Index is a derived view. It is built from whatever snapshot the caller
// hands it, is never shared process-wide, and is never assumed fresh: rebuild
// it after mutating the store.
package index

import (
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/mmynk/billbuddy/internal/models"
)

// Index groups records of one snapshot for lookup.
type Index struct {
	customersByID   map[string]*models.Customer
	customersByName map[string]*models.Customer
	itemsByName     map[string]*models.Item
	bills           map[string][]models.Bill
	payments        map[string][]models.Payment
	allBills        []models.Bill
	customers       []models.Customer
}

// Build indexes snap. Bills and payments are kept sorted by date.
func Build(snap *models.Snapshot) *Index {
	idx := &Index{
		customersByID:   make(map[string]*models.Customer, len(snap.Customers)),
		customersByName: make(map[string]*models.Customer, len(snap.Customers)),
		itemsByName:     make(map[string]*models.Item, len(snap.Items)),
		bills:           make(map[string][]models.Bill),
		payments:        make(map[string][]models.Payment),
		customers:       append([]models.Customer(nil), snap.Customers...),
	}

	for i := range idx.customers {
		c := &idx.customers[i]
		idx.customersByID[c.ID] = c
		idx.customersByName[c.Name] = c
	}
	items := append([]models.Item(nil), snap.Items...)
	for i := range items {
		idx.itemsByName[items[i].Name] = &items[i]
	}

	idx.allBills = append([]models.Bill(nil), snap.Bills...)
	sort.SliceStable(idx.allBills, func(i, j int) bool { return idx.allBills[i].Date.Before(idx.allBills[j].Date) })
	for _, b := range idx.allBills {
		idx.bills[b.CustomerID] = append(idx.bills[b.CustomerID], b)
	}

	payments := append([]models.Payment(nil), snap.Payments...)
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].Date.Before(payments[j].Date) })
	for _, p := range payments {
		idx.payments[p.CustomerID] = append(idx.payments[p.CustomerID], p)
	}
	return idx
}

// Customer returns the customer with id, or nil.
func (idx *Index) Customer(id string) *models.Customer {
	return idx.customersByID[id]
}

// CustomerByName returns the customer with exactly this name, or nil.
func (idx *Index) CustomerByName(name string) *models.Customer {
	return idx.customersByName[name]
}

// Item returns the catalog item with exactly this name, or nil.
func (idx *Index) Item(name string) *models.Item {
	return idx.itemsByName[name]
}

// Bills returns the customer's bills, oldest first.
func (idx *Index) Bills(customerID string) []models.Bill {
	return idx.bills[customerID]
}

// Payments returns the customer's payments, oldest first.
func (idx *Index) Payments(customerID string) []models.Payment {
	return idx.payments[customerID]
}

// BillsBetween returns every bill dated in [from, to), oldest first.
func (idx *Index) BillsBetween(from, to time.Time) []models.Bill {
	start := sort.Search(len(idx.allBills), func(i int) bool { return !idx.allBills[i].Date.Before(from) })
	end := sort.Search(len(idx.allBills), func(i int) bool { return !idx.allBills[i].Date.Before(to) })
	if start >= end {
		return nil
	}
	return idx.allBills[start:end]
}

// Match is a fuzzy search hit.
type Match struct {
	Customer models.Customer
	Score    float64 // 1 = exact, 0 = nothing in common
}

// SearchCustomers ranks customers by similarity to query, ignoring case.
// A name containing the query scores 1. Hits below minScore are dropped and
// at most limit are returned (limit <= 0 means no limit).
func (idx *Index) SearchCustomers(query string, minScore float64, limit int) []Match {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []Match
	for _, c := range idx.customers {
		score := similarity(q, strings.ToUpper(c.Name))
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Customer: c, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Customer.Name < matches[j].Customer.Name
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func similarity(query, name string) float64 {
	if strings.Contains(name, query) {
		return 1
	}
	longest := max(len([]rune(query)), len([]rune(name)))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(query, name))/float64(longest)
}
