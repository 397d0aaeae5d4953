package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmynk/billbuddy/internal/index"
	"github.com/mmynk/billbuddy/internal/models"
)

// minSearchScore is the lowest similarity SearchCustomers reports.
const minSearchScore = 0.5

// AddCustomer creates a customer. Names are unique among active customers.
func (l *Ledger) AddCustomer(ctx context.Context, name string) (*models.Customer, error) {
	c := &models.Customer{Name: strings.TrimSpace(name)}
	if err := l.records.SaveCustomer(ctx, c); err != nil {
		slog.Error("AddCustomer failed", "name", name, "error", err)
		return nil, err
	}
	slog.Info("Customer added", "customer_id", c.ID, "name", c.Name)
	return c, l.deliver(ctx, models.OpSave, models.KindCustomer, c)
}

// RenameCustomer changes a customer's name. Bills and payments keep the
// name they were entered under.
func (l *Ledger) RenameCustomer(ctx context.Context, id, name string) (*models.Customer, error) {
	c, err := l.records.UpdateCustomer(ctx, id, func(c *models.Customer) error {
		c.Name = strings.TrimSpace(name)
		return nil
	})
	if err != nil {
		slog.Error("RenameCustomer failed", "customer_id", id, "error", err)
		return nil, err
	}
	slog.Info("Customer renamed", "customer_id", id, "name", c.Name)
	return c, l.deliver(ctx, models.OpUpdate, models.KindCustomer, c)
}

// DeleteCustomer moves a customer to the recycle bin. Their bills and
// payments stay active.
func (l *Ledger) DeleteCustomer(ctx context.Context, id string) (*models.RecycledItem, error) {
	entry, err := l.bin.SoftDeleteCustomer(ctx, id)
	if err != nil {
		slog.Error("DeleteCustomer failed", "customer_id", id, "error", err)
		return nil, err
	}
	return entry, l.deliver(ctx, models.OpDelete, models.KindCustomer, idOnly(id))
}

// ListCustomers returns every active customer.
func (l *Ledger) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return l.records.ListCustomers(ctx)
}

// SearchCustomers returns up to limit customers whose names resemble query,
// best match first.
func (l *Ledger) SearchCustomers(ctx context.Context, query string, limit int) ([]index.Match, error) {
	idx, err := l.Index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.SearchCustomers(query, minSearchScore, limit), nil
}
