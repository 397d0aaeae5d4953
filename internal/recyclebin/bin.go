// Package recyclebin implements reversible soft delete with a fixed retention
// window.
//
// A deleted record leaves its collection and enters the bin in a single
// storage.KV.Apply, so it is always in exactly one of the two places.
// Eviction is opportunistic: CleanupOldItems runs when a caller asks for it
// (the service does so whenever the bin is listed), so an expired entry
// really disappears at the first bin listing after its 30 days are up.
package recyclebin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/metrics"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/records"
	"github.com/mmynk/billbuddy/internal/storage"
)

// RetentionDays is how long a recycled record can be restored.
const RetentionDays = 30

const retention = RetentionDays * 24 * time.Hour

// Bin holds soft-deleted customers, bills and payments.
type Bin struct {
	records *records.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Bin that restores into rs.
func New(rs *records.Store, m *metrics.Metrics) *Bin {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Bin{
		records: rs,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source used for deletedAt and retention math.
func (b *Bin) WithClock(now func() time.Time) *Bin {
	b.now = now
	return b
}

// List returns every entry, oldest deletion first.
func (b *Bin) List(ctx context.Context) ([]models.RecycledItem, error) {
	return b.load(ctx)
}

// Excluded returns the ids of every record currently in the bin.
func (b *Bin) Excluded(ctx context.Context) (map[string]bool, error) {
	entries, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		ids[e.EntityID] = true
	}
	return ids, nil
}

// MoveToBin appends payload to the bin. The caller must remove the record
// from its collection; the SoftDelete methods do both in one write.
func (b *Bin) MoveToBin(ctx context.Context, kind models.EntityKind, payload json.RawMessage, displayName string) (*models.RecycledItem, error) {
	entry, w, err := b.prepare(ctx, kind, payload, displayName)
	if err != nil {
		return nil, err
	}
	if err := b.records.KV().Apply(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to write recycle bin: %w", err)
	}
	return entry, nil
}

// prepare builds the entry for payload and the bin write that adds it.
func (b *Bin) prepare(ctx context.Context, kind models.EntityKind, payload json.RawMessage, displayName string) (*models.RecycledItem, storage.Write, error) {
	if kind != models.KindCustomer && kind != models.KindBill && kind != models.KindPayment {
		return nil, storage.Write{}, apperr.Validationf("%q records cannot be recycled", kind)
	}
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.ID == "" {
		return nil, storage.Write{}, apperr.Validationf("recycled %s payload has no id", kind)
	}

	entries, err := b.load(ctx)
	if err != nil {
		return nil, storage.Write{}, err
	}
	entry := models.RecycledItem{
		ID:          uuid.New().String(),
		Type:        kind,
		EntityID:    probe.ID,
		Payload:     payload,
		DisplayName: displayName,
		DeletedAt:   b.now(),
	}
	w, err := encode(append(entries, entry))
	if err != nil {
		return nil, storage.Write{}, err
	}
	return &entry, w, nil
}

// SoftDeleteCustomer moves an active customer into the bin.
// The customer's bills and payments stay active.
func (b *Bin) SoftDeleteCustomer(ctx context.Context, id string) (*models.RecycledItem, error) {
	customer, err := b.records.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(customer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode customer: %w", err)
	}
	entry, w, err := b.prepare(ctx, models.KindCustomer, payload, customer.Name)
	if err != nil {
		return nil, err
	}
	if _, err := b.records.DeleteCustomer(ctx, id, w); err != nil {
		return nil, err
	}
	slog.Info("Customer moved to recycle bin", "customer_id", id, "entry_id", entry.ID)
	return entry, nil
}

// SoftDeleteBill moves an active bill into the bin.
func (b *Bin) SoftDeleteBill(ctx context.Context, id string) (*models.RecycledItem, error) {
	bill, err := b.records.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(bill)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bill: %w", err)
	}
	name := fmt.Sprintf("Bill - %s - %s", bill.CustomerName, bill.Date.Format("02 Jan 2006"))
	entry, w, err := b.prepare(ctx, models.KindBill, payload, name)
	if err != nil {
		return nil, err
	}
	if _, err := b.records.DeleteBill(ctx, id, w); err != nil {
		return nil, err
	}
	slog.Info("Bill moved to recycle bin", "bill_id", id, "entry_id", entry.ID)
	return entry, nil
}

// SoftDeletePayment moves an active payment into the bin.
func (b *Bin) SoftDeletePayment(ctx context.Context, id string) (*models.RecycledItem, error) {
	payment, err := b.records.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(payment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment: %w", err)
	}
	name := fmt.Sprintf("Payment - %s - %s", payment.CustomerName, payment.Amount.StringFixed(2))
	entry, w, err := b.prepare(ctx, models.KindPayment, payload, name)
	if err != nil {
		return nil, err
	}
	if _, err := b.records.DeletePayment(ctx, id, w); err != nil {
		return nil, err
	}
	slog.Info("Payment moved to recycle bin", "payment_id", id, "entry_id", entry.ID)
	return entry, nil
}

// Restore puts the record of entry id back into its collection and drops
// the entry, both in one write. A name now taken by an active record fails
// with RestoreConflict; an unknown id with NotFound.
func (b *Bin) Restore(ctx context.Context, id string) (*models.RecycledItem, error) {
	entries, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(entries, id)
	if idx < 0 {
		return nil, apperr.NotFoundf("recycle bin entry %s not found", id)
	}
	entry := entries[idx]

	if entry.Type == models.KindBill || entry.Type == models.KindPayment {
		if err := b.checkOwner(ctx, entries, entry); err != nil {
			return nil, err
		}
	}

	w, err := encode(without(entries, idx))
	if err != nil {
		return nil, err
	}
	if err := b.records.Insert(ctx, entry.Type, entry.Payload, w); err != nil {
		if apperr.Is(err, apperr.KindDuplicateName) {
			return nil, apperr.Wrap(apperr.KindRestoreConflict, err,
				"cannot restore %q: an active %s already uses that name", entry.DisplayName, entry.Type)
		}
		return nil, err
	}
	slog.Info("Restored from recycle bin", "entry_id", id, "type", entry.Type, "entity_id", entry.EntityID)
	return &entry, nil
}

// checkOwner refuses to restore a bill or payment whose customer is neither
// active nor recycled.
func (b *Bin) checkOwner(ctx context.Context, entries []models.RecycledItem, entry models.RecycledItem) error {
	var owner struct {
		CustomerID string `json:"customerId"`
	}
	if err := json.Unmarshal(entry.Payload, &owner); err != nil {
		return apperr.Wrap(apperr.KindDataInconsistency, err, "recycled %s %s is unreadable", entry.Type, entry.EntityID)
	}
	raw, err := b.records.Lookup(ctx, models.KindCustomer, owner.CustomerID)
	if err != nil {
		return err
	}
	if raw != nil {
		return nil
	}
	for _, e := range entries {
		if e.Type == models.KindCustomer && e.EntityID == owner.CustomerID {
			return nil
		}
	}
	return apperr.Inconsistentf("%s %s references customer %s, which no longer exists",
		entry.Type, entry.EntityID, owner.CustomerID)
}

// PermanentlyDelete removes an entry for good.
// A recycled customer that still owns active bills or payments is kept.
func (b *Bin) PermanentlyDelete(ctx context.Context, id string) error {
	entries, err := b.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(entries, id)
	if idx < 0 {
		return apperr.NotFoundf("recycle bin entry %s not found", id)
	}
	owners, err := b.activeOwners(ctx)
	if err != nil {
		return err
	}
	if entry := entries[idx]; entry.Type == models.KindCustomer && owners[entry.EntityID] {
		return apperr.Inconsistentf("customer %q still has active bills or payments", entry.DisplayName)
	}

	w, err := encode(without(entries, idx))
	if err != nil {
		return err
	}
	if err := b.records.KV().Apply(ctx, w); err != nil {
		return fmt.Errorf("failed to write recycle bin: %w", err)
	}
	return nil
}

// ClearAll empties the bin and returns how many entries were removed.
// Customers that still own active bills or payments stay in the bin.
func (b *Bin) ClearAll(ctx context.Context) (int, error) {
	return b.sweep(ctx, func(models.RecycledItem) bool { return true })
}

// DaysRemaining returns the whole days left before an entry deleted at
// deletedAt becomes eligible for eviction, rounded up and never negative.
func (b *Bin) DaysRemaining(deletedAt time.Time) int {
	left := deletedAt.Add(retention).Sub(b.now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// CleanupOldItems evicts every entry deleted more than RetentionDays ago and
// returns the count evicted.
func (b *Bin) CleanupOldItems(ctx context.Context) (int, error) {
	now := b.now()
	n, err := b.sweep(ctx, func(e models.RecycledItem) bool {
		return now.Sub(e.DeletedAt) > retention
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		b.metrics.BinEvicted.Add(float64(n))
		slog.Info("Recycle bin cleaned up", "evicted", n)
	}
	return n, nil
}

// sweep drops every entry matching evict, except customers that still own
// active records.
func (b *Bin) sweep(ctx context.Context, evict func(models.RecycledItem) bool) (int, error) {
	entries, err := b.load(ctx)
	if err != nil {
		return 0, err
	}
	owners, err := b.activeOwners(ctx)
	if err != nil {
		return 0, err
	}

	kept := make([]models.RecycledItem, 0, len(entries))
	for _, e := range entries {
		switch {
		case !evict(e):
			kept = append(kept, e)
		case e.Type == models.KindCustomer && owners[e.EntityID]:
			slog.Warn("Keeping recycled customer with active records", "entry_id", e.ID, "customer_id", e.EntityID)
			kept = append(kept, e)
		}
	}

	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	w, err := encode(kept)
	if err != nil {
		return 0, err
	}
	if err := b.records.KV().Apply(ctx, w); err != nil {
		return 0, fmt.Errorf("failed to write recycle bin: %w", err)
	}
	return removed, nil
}

// activeOwners returns the ids of customers referenced by active bills or payments.
func (b *Bin) activeOwners(ctx context.Context) (map[string]bool, error) {
	bills, err := b.records.ListBills(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := b.records.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]bool)
	for _, bill := range bills {
		owners[bill.CustomerID] = true
	}
	for _, p := range payments {
		owners[p.CustomerID] = true
	}
	return owners, nil
}

func (b *Bin) load(ctx context.Context) ([]models.RecycledItem, error) {
	raw, ok, err := b.records.KV().Get(ctx, storage.KeyRecycleBin)
	if err != nil {
		return nil, fmt.Errorf("failed to load recycle bin: %w", err)
	}
	if !ok || raw == "" {
		return []models.RecycledItem{}, nil
	}
	var entries []models.RecycledItem
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "stored recycle bin is unreadable")
	}
	if entries == nil {
		entries = []models.RecycledItem{}
	}
	return entries, nil
}

func encode(entries []models.RecycledItem) (storage.Write, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return storage.Write{}, fmt.Errorf("failed to encode recycle bin: %w", err)
	}
	return storage.Set(storage.KeyRecycleBin, string(data)), nil
}

func indexOf(entries []models.RecycledItem, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func without(entries []models.RecycledItem, idx int) []models.RecycledItem {
	out := make([]models.RecycledItem, 0, len(entries)-1)
	out = append(out, entries[:idx]...)
	return append(out, entries[idx+1:]...)
}
