// Package queue is the offline mutation queue.
//
// Mutations that need the remote store are persisted under the offline_queue
// key until a drain delivers them. Per operation:
//
//	Queued -> InFlight -> Applied (removed)
//	                   -> Queued with retries+1
//	                   -> Abandoned (removed, reported)
//
// InFlight lives only in memory, so an operation interrupted by a crash comes
// back Queued with its old retry count. Redelivery is driven by connectivity
// transitions (see Watch); timed backoff belongs to a single remote call
// (see Retry).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/connectivity"
	"github.com/mmynk/billbuddy/internal/metrics"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/storage"
)

const (
	// MaxQueueSize bounds the queue. Enqueueing past it silently drops the
	// oldest operation: recent work wins over a complete backlog.
	MaxQueueSize = 100

	// MaxRetries is the number of failed drains after which an operation is
	// abandoned.
	MaxRetries = 3
)

// Processor delivers one operation to the remote store.
type Processor interface {
	Process(ctx context.Context, op models.Operation) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, op models.Operation) error

func (f ProcessorFunc) Process(ctx context.Context, op models.Operation) error {
	return f(ctx, op)
}

// DrainReport summarizes one Drain.
type DrainReport struct {
	// Skipped is true when the drain did not run because the device is offline.
	Skipped bool

	Applied int

	// Requeued counts failures that stay queued for the next drain.
	Requeued int

	// Busy counts operations left alone because another drain holds them.
	Busy int

	// Abandoned lists the operations removed without being applied, with
	// their final retry count and error.
	Abandoned []models.Operation
}

// Queue is the durable offline queue.
type Queue struct {
	kv      storage.KV
	signal  connectivity.Signal
	metrics *metrics.Metrics
	now     func() time.Time

	// mu guards the persisted list and inflight; it is never held while a
	// processor runs.
	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a Queue persisted in kv. A nil signal means always online.
func New(kv storage.KV, signal connectivity.Signal, m *metrics.Metrics) *Queue {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Queue{
		kv:       kv,
		signal:   signal,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]bool),
	}
}

// WithClock overrides the time source used for operation timestamps.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Online reports whether drains may run right now.
func (q *Queue) Online() bool {
	return q.signal == nil || q.signal.Online()
}

// Enqueue appends op, filling its ID and Timestamp when empty.
func (q *Queue) Enqueue(ctx context.Context, op models.Operation) (*models.Operation, error) {
	if err := validate(op); err != nil {
		return nil, err
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = q.now()
	}
	op.Retries = 0
	op.Error = ""

	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	ops = append(ops, op)
	if over := len(ops) - MaxQueueSize; over > 0 {
		for _, dropped := range ops[:over] {
			slog.Debug("Offline queue full, dropping oldest operation",
				"operation_id", dropped.ID, "type", dropped.Type, "entity", dropped.Entity)
		}
		q.metrics.QueueEvicted.Add(float64(over))
		ops = ops[over:]
	}
	if err := q.save(ctx, ops); err != nil {
		return nil, err
	}
	q.metrics.QueueEnqueued.Inc()
	slog.Info("Operation queued", "operation_id", op.ID, "type", op.Type, "entity", op.Entity, "depth", len(ops))
	return &op, nil
}

func validate(op models.Operation) error {
	switch op.Type {
	case models.OpSave, models.OpUpdate, models.OpDelete, models.OpSync:
	default:
		return apperr.Validationf("unknown operation type %q", op.Type)
	}
	if op.Type != models.OpSync && !op.Entity.Valid() {
		return apperr.Validationf("unknown entity %q", op.Entity)
	}
	if op.Type != models.OpSync && op.EntityID() == "" {
		return apperr.Validationf("%s %s operation needs data with an id", op.Type, op.Entity)
	}
	return nil
}

// List returns the queued operations, oldest first.
func (q *Queue) List(ctx context.Context) ([]models.Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Len returns the number of queued operations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	ops, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// Clear drops every queued operation.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(ctx, nil)
}

// Drain offers every queued operation to p once, oldest first.
//
// It does nothing while offline. Drains may overlap: an operation another
// drain is processing is skipped and counted as Busy.
func (q *Queue) Drain(ctx context.Context, p Processor) (DrainReport, error) {
	var report DrainReport
	if !q.Online() {
		report.Skipped = true
		return report, nil
	}

	batch, busy, err := q.claim(ctx)
	if err != nil {
		return report, err
	}
	report.Busy = busy

	for i, op := range batch {
		if ctx.Err() != nil {
			q.release(batch[i:])
			return report, ctx.Err()
		}

		procErr := p.Process(ctx, op)

		abandoned, err := q.settle(ctx, op, procErr)
		if err != nil {
			q.release(batch[i+1:])
			return report, err
		}
		switch {
		case procErr == nil:
			report.Applied++
		case abandoned != nil:
			report.Abandoned = append(report.Abandoned, *abandoned)
		default:
			report.Requeued++
		}
	}
	return report, nil
}

// claim marks every queued operation not already in flight and returns them.
func (q *Queue) claim(ctx context.Context) ([]models.Operation, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	var batch []models.Operation
	busy := 0
	for _, op := range ops {
		if q.inflight[op.ID] {
			busy++
			continue
		}
		q.inflight[op.ID] = true
		batch = append(batch, op)
	}
	return batch, busy, nil
}

func (q *Queue) release(ops []models.Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range ops {
		delete(q.inflight, op.ID)
	}
}

// settle records the outcome of processing op. It returns the abandoned
// operation when op was dropped without being applied.
func (q *Queue) settle(ctx context.Context, op models.Operation, procErr error) (*models.Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer delete(q.inflight, op.ID)

	ops, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range ops {
		if ops[i].ID == op.ID {
			idx = i
			break
		}
	}

	if procErr == nil {
		q.metrics.QueueApplied.Inc()
		slog.Info("Queued operation applied", "operation_id", op.ID, "type", op.Type, "entity", op.Entity)
		if idx < 0 {
			return nil, nil
		}
		return nil, q.save(ctx, append(ops[:idx], ops[idx+1:]...))
	}

	q.metrics.QueueFailed.Inc()
	if idx < 0 {
		// Evicted or cleared while in flight.
		return nil, nil
	}
	failed := ops[idx]
	failed.Retries++
	failed.Error = apperr.Message(procErr)

	if failed.Retries >= MaxRetries || !apperr.IsRetryable(procErr) {
		q.metrics.QueueAbandoned.Inc()
		slog.Warn("Queued operation abandoned",
			"operation_id", failed.ID, "type", failed.Type, "entity", failed.Entity,
			"retries", failed.Retries, "error", procErr)
		return &failed, q.save(ctx, append(ops[:idx], ops[idx+1:]...))
	}

	slog.Warn("Queued operation failed, will retry on next drain",
		"operation_id", failed.ID, "retries", failed.Retries, "error", procErr)
	ops[idx] = failed
	return nil, q.save(ctx, ops)
}

// Watch drains the queue whenever signal reports a transition to online,
// and once at start if already online. It returns when ctx is done.
func (q *Queue) Watch(ctx context.Context, signal connectivity.Signal, p Processor) {
	events, stop := signal.Subscribe()
	defer stop()

	drain := func() {
		report, err := q.Drain(ctx, p)
		if err != nil {
			slog.Error("Offline queue drain failed", "error", err)
			return
		}
		if report.Skipped {
			return
		}
		slog.Info("Offline queue drained",
			"applied", report.Applied, "requeued", report.Requeued,
			"abandoned", len(report.Abandoned), "busy", report.Busy)
	}

	if signal.Online() {
		drain()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-events:
			if !ok {
				return
			}
			if online {
				drain()
			}
		}
	}
}

func (q *Queue) load(ctx context.Context) ([]models.Operation, error) {
	raw, ok, err := q.kv.Get(ctx, storage.KeyOfflineQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}
	if !ok || raw == "" {
		return []models.Operation{}, nil
	}
	var ops []models.Operation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "stored offline queue is unreadable")
	}
	if ops == nil {
		ops = []models.Operation{}
	}
	return ops, nil
}

func (q *Queue) save(ctx context.Context, ops []models.Operation) error {
	if ops == nil {
		ops = []models.Operation{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}
	if err := q.kv.Set(ctx, storage.KeyOfflineQueue, string(data)); err != nil {
		return fmt.Errorf("failed to save offline queue: %w", err)
	}
	q.metrics.QueueDepth.Set(float64(len(ops)))
	return nil
}
