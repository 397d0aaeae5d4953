package service

import (
	"context"
	"log/slog"

	"github.com/mmynk/billbuddy/internal/models"
)

// BinEntry is a recycle bin entry with its remaining restore window.
type BinEntry struct {
	models.RecycledItem
	DaysRemaining int
}

// ListBin evicts expired entries, then lists the rest.
func (l *Ledger) ListBin(ctx context.Context) ([]BinEntry, error) {
	if _, err := l.bin.CleanupOldItems(ctx); err != nil {
		return nil, err
	}
	items, err := l.bin.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BinEntry, len(items))
	for i, it := range items {
		out[i] = BinEntry{RecycledItem: it, DaysRemaining: l.bin.DaysRemaining(it.DeletedAt)}
	}
	return out, nil
}

// Restore brings a recycled record back.
func (l *Ledger) Restore(ctx context.Context, entryID string) (*models.RecycledItem, error) {
	entry, err := l.bin.Restore(ctx, entryID)
	if err != nil {
		slog.Error("Restore failed", "entry_id", entryID, "error", err)
		return nil, err
	}
	return entry, l.deliver(ctx, models.OpSave, entry.Type, entry.Payload)
}

// PurgeBin permanently deletes one entry.
func (l *Ledger) PurgeBin(ctx context.Context, entryID string) error {
	if err := l.bin.PermanentlyDelete(ctx, entryID); err != nil {
		slog.Error("PurgeBin failed", "entry_id", entryID, "error", err)
		return err
	}
	slog.Info("Recycle bin entry purged", "entry_id", entryID)
	return nil
}

// ClearBin empties the recycle bin and returns how many entries went.
func (l *Ledger) ClearBin(ctx context.Context) (int, error) {
	n, err := l.bin.ClearAll(ctx)
	if err != nil {
		slog.Error("ClearBin failed", "error", err)
		return 0, err
	}
	slog.Info("Recycle bin cleared", "removed", n)
	return n, nil
}
