package service

import (
	"context"
	"log/slog"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/backup"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/queue"
)

var errNoRemote = apperr.Validationf("no remote store is configured")

// Drain delivers queued operations.
func (l *Ledger) Drain(ctx context.Context) (queue.DrainReport, error) {
	if l.sync == nil {
		return queue.DrainReport{}, errNoRemote
	}
	return l.queue.Drain(ctx, l.sync)
}

// Pending lists the queued operations.
func (l *Ledger) Pending(ctx context.Context) ([]models.Operation, error) {
	return l.queue.List(ctx)
}

// SyncNow pushes the local snapshot, or queues a sync while offline.
func (l *Ledger) SyncNow(ctx context.Context) error {
	if l.sync == nil {
		return errNoRemote
	}
	if l.queue.Online() {
		err := l.sync.SyncNow(ctx)
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
		slog.Warn("Sync failed, queueing", "error", err)
	}
	_, err := l.queue.Enqueue(ctx, models.Operation{Type: models.OpSync, Timestamp: l.now()})
	return err
}

// ExportBackup returns a backup document of the whole ledger.
func (l *Ledger) ExportBackup(ctx context.Context) ([]byte, error) {
	return backup.Export(ctx, l.records, l.bin, l.now())
}

// ImportBackup replaces the whole ledger with doc.
// Nothing changes unless doc is sound.
func (l *Ledger) ImportBackup(ctx context.Context, doc []byte) (*backup.Contents, error) {
	contents, err := backup.Import(ctx, l.records, doc)
	if err != nil {
		slog.Error("ImportBackup failed", "error", err)
		return nil, err
	}
	return contents, l.deliver(ctx, models.OpSync, "", nil)
}
