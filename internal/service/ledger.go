// Package service is the facade every user-facing surface goes through.
//
// Each mutation is validated at the boundary, applied locally, then
// delivered to the remote store: sent right away when online, queued when
// offline or when the send fails transiently.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/index"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/queue"
	"github.com/mmynk/billbuddy/internal/records"
	"github.com/mmynk/billbuddy/internal/recyclebin"
)

// Syncer delivers operations to the remote store.
type Syncer interface {
	queue.Processor
	SyncNow(ctx context.Context) error
}

// Result is what a user sees after an operation.
type Result struct {
	Success bool
	Message string
	// Error is set when Success is false.
	Error *apperr.Error
}

// ResultOf turns the outcome of an operation into a Result. The success
// message is built from format and args.
func ResultOf(err error, format string, args ...any) Result {
	if err == nil {
		return Result{Success: true, Message: fmt.Sprintf(format, args...)}
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Wrap(apperr.KindUnknown, err, "%s", err.Error())
	}
	return Result{Success: false, Message: apperr.Message(err), Error: e}
}

// Ledger wires the record store, recycle bin and offline queue together.
type Ledger struct {
	records *records.Store
	bin     *recyclebin.Bin
	queue   *queue.Queue
	sync    Syncer
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSyncer enables remote delivery. Without it the ledger is local only
// and nothing is queued.
func WithSyncer(s Syncer) Option {
	return func(l *Ledger) { l.sync = s }
}

// WithClock overrides the time source for operation timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger.
func New(rs *records.Store, bin *recyclebin.Bin, q *queue.Queue, opts ...Option) *Ledger {
	l := &Ledger{
		records: rs,
		bin:     bin,
		queue:   q,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Index builds a lookup index over the current active records.
func (l *Ledger) Index(ctx context.Context) (*index.Index, error) {
	snap, err := l.records.Export(ctx)
	if err != nil {
		return nil, err
	}
	return index.Build(snap), nil
}

// deliver sends a local change to the remote store. The local write has
// already happened; a permanent remote failure is reported but not undone.
func (l *Ledger) deliver(ctx context.Context, typ models.OperationType, kind models.EntityKind, record any) error {
	if l.sync == nil {
		return nil
	}

	op := models.Operation{Type: typ, Entity: kind, Timestamp: l.now()}
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", kind, err)
		}
		op.Data = data
	}

	if l.queue.Online() {
		err := l.sync.Process(ctx, op)
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			slog.Error("Remote delivery rejected", "type", typ, "entity", kind, "error", err)
			return apperr.Wrap(apperr.KindOf(err), err, "saved locally, but sync failed: %s", apperr.Message(err))
		}
		slog.Warn("Remote delivery failed, queueing", "type", typ, "entity", kind, "error", err)
	}

	_, err := l.queue.Enqueue(ctx, op)
	return err
}

func idOnly(id string) map[string]string {
	return map[string]string{"id": id}
}
