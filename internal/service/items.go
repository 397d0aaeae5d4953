package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/models"
)

// itemType is fixed when the item has a rate and variable otherwise.
func itemType(rate *decimal.Decimal) models.ItemType {
	if rate != nil {
		return models.ItemFixed
	}
	return models.ItemVariable
}

// AddItem adds a catalog item. A nil rate makes it variable-priced.
func (l *Ledger) AddItem(ctx context.Context, name string, rate *decimal.Decimal) (*models.Item, error) {
	item := &models.Item{Name: strings.TrimSpace(name), Type: itemType(rate), Rate: rate}
	if err := l.records.SaveItem(ctx, item); err != nil {
		slog.Error("AddItem failed", "name", name, "error", err)
		return nil, err
	}
	slog.Info("Item added", "item_id", item.ID, "name", item.Name, "type", item.Type)
	return item, l.deliver(ctx, models.OpSave, models.KindItem, item)
}

// UpdateItem renames or reprices a catalog item. Existing bills keep the
// lines they were created with.
func (l *Ledger) UpdateItem(ctx context.Context, id, name string, rate *decimal.Decimal) (*models.Item, error) {
	item, err := l.records.UpdateItem(ctx, id, func(i *models.Item) error {
		i.Name = strings.TrimSpace(name)
		i.Type = itemType(rate)
		i.Rate = rate
		return nil
	})
	if err != nil {
		slog.Error("UpdateItem failed", "item_id", id, "error", err)
		return nil, err
	}
	slog.Info("Item updated", "item_id", id, "name", item.Name)
	return item, l.deliver(ctx, models.OpUpdate, models.KindItem, item)
}

// DeleteItem removes a catalog item for good. Items are not recycled.
func (l *Ledger) DeleteItem(ctx context.Context, id string) error {
	item, err := l.records.DeleteItem(ctx, id)
	if err != nil {
		slog.Error("DeleteItem failed", "item_id", id, "error", err)
		return err
	}
	slog.Info("Item deleted", "item_id", id, "name", item.Name)
	return l.deliver(ctx, models.OpDelete, models.KindItem, idOnly(id))
}

// ListItems returns the catalog.
func (l *Ledger) ListItems(ctx context.Context) ([]models.Item, error) {
	return l.records.ListItems(ctx)
}
