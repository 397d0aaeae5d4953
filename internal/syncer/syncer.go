// Package syncer delivers queued mutations to the remote store.
//
// The remote keeps one snapshot per user. Processing an operation pulls that
// snapshot, reconciles the operation's record if the two copies disagree,
// then pushes the full local snapshot back.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/conflict"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/queue"
	"github.com/mmynk/billbuddy/internal/records"
	"github.com/mmynk/billbuddy/internal/storage"
)

// RemoteStore is the opaque snapshot store on the other side of the network.
type RemoteStore interface {
	Push(ctx context.Context, userID string, snap *models.Snapshot) error
	// Pull returns nil when the user has never pushed.
	Pull(ctx context.Context, userID string) (*models.Snapshot, error)
}

var _ queue.Processor = (*Syncer)(nil)

// Syncer is the queue.Processor that talks to a RemoteStore.
type Syncer struct {
	records  *records.Store
	remote   RemoteStore
	userID   string
	strategy conflict.Strategy
	retry    queue.RetryConfig
	now      func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithStrategy sets the conflict strategy. The default is conflict.DefaultStrategy.
func WithStrategy(s conflict.Strategy) Option {
	return func(sy *Syncer) { sy.strategy = s }
}

// WithRetry sets the backoff used for each remote call.
func WithRetry(cfg queue.RetryConfig) Option {
	return func(sy *Syncer) { sy.retry = cfg }
}

// WithClock overrides the time source for lastSync and merge stamps.
func WithClock(now func() time.Time) Option {
	return func(sy *Syncer) { sy.now = now }
}

// New creates a Syncer for userID.
func New(rs *records.Store, remote RemoteStore, userID string, opts ...Option) *Syncer {
	s := &Syncer{
		records:  rs,
		remote:   remote,
		userID:   userID,
		strategy: conflict.DefaultStrategy,
		retry:    queue.DefaultRetryConfig(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process delivers op. Errors keep their apperr kind so the queue can tell
// a permanent failure from a transient one.
func (s *Syncer) Process(ctx context.Context, op models.Operation) error {
	if op.Type != models.OpSync && op.Type != models.OpDelete {
		if err := s.reconcile(ctx, op); err != nil {
			return err
		}
	}
	return s.push(ctx)
}

// SyncNow pushes the local snapshot without going through the queue.
func (s *Syncer) SyncNow(ctx context.Context) error {
	return s.Process(ctx, models.Operation{Type: models.OpSync, Timestamp: s.now()})
}

// LastSync returns when the local snapshot was last pushed, or nil.
func (s *Syncer) LastSync(ctx context.Context) (*time.Time, error) {
	raw, ok, err := s.records.KV().Get(ctx, storage.KeyLastSync)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "stored last sync time is unreadable")
	}
	return &t, nil
}

// reconcile resolves op's record against the remote copy when both exist
// and differ, writing the resolution locally.
func (s *Syncer) reconcile(ctx context.Context, op models.Operation) error {
	id := op.EntityID()
	localRaw, err := s.records.Lookup(ctx, op.Entity, id)
	if err != nil {
		return err
	}
	if localRaw == nil {
		// Deleted locally after it was queued; the push below carries that.
		return nil
	}

	var snap *models.Snapshot
	err = queue.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		snap, err = s.remote.Pull(ctx, s.userID)
		return err
	})
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	remote, err := findRecord(snap, op.Entity, id)
	if err != nil || remote == nil {
		return err
	}
	local, err := toMap(localRaw)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(local, remote) {
		return nil
	}

	resolved, ok, err := conflict.Resolve(local, remote, s.strategy, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindConflict, "%s %s differs from the remote copy and needs a manual decision", op.Entity, id)
	}
	slog.Info("Sync conflict resolved", "entity", op.Entity, "id", id, "strategy", s.strategy)
	if reflect.DeepEqual(resolved, local) {
		return nil
	}

	data, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("failed to encode resolved %s: %w", op.Entity, err)
	}
	return s.records.Put(ctx, op.Entity, data)
}

func (s *Syncer) push(ctx context.Context) error {
	snap, err := s.records.Export(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	snap.LastSync = &now

	err = queue.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.remote.Push(ctx, s.userID, snap)
	})
	if err != nil {
		return err
	}
	if err := s.records.KV().Set(ctx, storage.KeyLastSync, now.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to record last sync: %w", err)
	}
	slog.Debug("Snapshot pushed", "user_id", s.userID, "last_sync", now)
	return nil
}

// findRecord returns the record of kind with id from snap as a JSON object,
// or nil when snap does not have it.
func findRecord(snap *models.Snapshot, kind models.EntityKind, id string) (map[string]any, error) {
	var list any
	switch kind {
	case models.KindCustomer:
		list = snap.Customers
	case models.KindBill:
		list = snap.Bills
	case models.KindPayment:
		list = snap.Payments
	case models.KindItem:
		list = snap.Items
	default:
		return nil, apperr.Validationf("unknown entity kind %q", kind)
	}

	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to encode remote %s records: %w", kind, err)
	}
	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("failed to decode remote %s records: %w", kind, err)
	}
	for _, obj := range objects {
		if obj["id"] == id {
			return obj, nil
		}
	}
	return nil, nil
}

func toMap(raw json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode local record: %w", err)
	}
	return m, nil
}
