// Package records is the Record Store: the active collections of customers,
// bills, payments and catalog items, each persisted as one JSON array in the
// key space.
//
// Writes are whole-collection replacements committed through storage.KV.Apply,
// so a caller never observes a partial write. Deletes here are hard deletes;
// user-facing deletes go through the recycle bin, which passes its own bin
// write as an "also" write so both land together.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/storage"
)

// Store provides typed access to the active collections.
type Store struct {
	kv  storage.KV
	now func() time.Time
}

// New creates a Store over kv.
func New(kv storage.KV) *Store {
	return &Store{kv: kv, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// KV returns the underlying key space.
func (s *Store) KV() storage.KV {
	return s.kv
}

// SaveCustomer persists a new customer.
// The customer.ID and CreatedAt fields are populated when empty.
func (s *Store) SaveCustomer(ctx context.Context, c *models.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	return insert(ctx, s.kv, customers, *c)
}

// UpdateCustomer applies mutate to the stored customer.
func (s *Store) UpdateCustomer(ctx context.Context, id string, mutate func(*models.Customer) error) (*models.Customer, error) {
	return update(ctx, s.kv, customers, id, mutate, (*models.Customer).Validate)
}

// GetCustomer retrieves an active customer by ID.
func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return get(ctx, s.kv, customers, id)
}

// ListCustomers returns all active customers.
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return load(ctx, s.kv, customers)
}

// DeleteCustomer hard-deletes a customer, committing also in the same write.
func (s *Store) DeleteCustomer(ctx context.Context, id string, also ...storage.Write) (*models.Customer, error) {
	return remove(ctx, s.kv, customers, id, also...)
}

// SaveBill persists a new bill for an active customer.
// Line totals and the grand total are recomputed before writing, and
// CustomerName is filled from the customer when empty.
func (s *Store) SaveBill(ctx context.Context, b *models.Bill) error {
	if err := b.Validate(); err != nil {
		return err
	}
	customer, err := s.GetCustomer(ctx, b.CustomerID)
	if err != nil {
		return err
	}
	if b.CustomerName == "" {
		b.CustomerName = customer.Name
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.Recalculate()
	return insert(ctx, s.kv, bills, *b)
}

// UpdateBill applies mutate to the stored bill and recomputes its totals.
// The customer cannot change.
func (s *Store) UpdateBill(ctx context.Context, id string, mutate func(*models.Bill) error) (*models.Bill, error) {
	var customerID string
	return update(ctx, s.kv, bills, id, func(b *models.Bill) error {
		customerID = b.CustomerID
		if err := mutate(b); err != nil {
			return err
		}
		if b.CustomerID != customerID {
			return apperr.Validationf("a bill cannot move to another customer")
		}
		b.Recalculate()
		return nil
	}, (*models.Bill).Validate)
}

// GetBill retrieves an active bill by ID.
func (s *Store) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	return get(ctx, s.kv, bills, id)
}

// ListBills returns all active bills.
func (s *Store) ListBills(ctx context.Context) ([]models.Bill, error) {
	return load(ctx, s.kv, bills)
}

// DeleteBill hard-deletes a bill, committing also in the same write.
func (s *Store) DeleteBill(ctx context.Context, id string, also ...storage.Write) (*models.Bill, error) {
	return remove(ctx, s.kv, bills, id, also...)
}

// SavePayment persists a new payment from an active customer.
func (s *Store) SavePayment(ctx context.Context, p *models.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	customer, err := s.GetCustomer(ctx, p.CustomerID)
	if err != nil {
		return err
	}
	if p.CustomerName == "" {
		p.CustomerName = customer.Name
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	return insert(ctx, s.kv, payments, *p)
}

// UpdatePayment applies mutate to the stored payment.
func (s *Store) UpdatePayment(ctx context.Context, id string, mutate func(*models.Payment) error) (*models.Payment, error) {
	var customerID string
	return update(ctx, s.kv, payments, id, func(p *models.Payment) error {
		customerID = p.CustomerID
		if err := mutate(p); err != nil {
			return err
		}
		if p.CustomerID != customerID {
			return apperr.Validationf("a payment cannot move to another customer")
		}
		return nil
	}, (*models.Payment).Validate)
}

// GetPayment retrieves an active payment by ID.
func (s *Store) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return get(ctx, s.kv, payments, id)
}

// ListPayments returns all active payments.
func (s *Store) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return load(ctx, s.kv, payments)
}

// DeletePayment hard-deletes a payment, committing also in the same write.
func (s *Store) DeletePayment(ctx context.Context, id string, also ...storage.Write) (*models.Payment, error) {
	return remove(ctx, s.kv, payments, id, also...)
}

// SaveItem persists a new catalog item.
func (s *Store) SaveItem(ctx context.Context, i *models.Item) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	now := s.now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
	return insert(ctx, s.kv, items, *i)
}

// UpdateItem applies mutate to the stored item and stamps UpdatedAt.
func (s *Store) UpdateItem(ctx context.Context, id string, mutate func(*models.Item) error) (*models.Item, error) {
	return update(ctx, s.kv, items, id, func(i *models.Item) error {
		if err := mutate(i); err != nil {
			return err
		}
		i.UpdatedAt = s.now()
		return nil
	}, (*models.Item).Validate)
}

// GetItem retrieves a catalog item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return get(ctx, s.kv, items, id)
}

// ListItems returns the whole catalog.
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	return load(ctx, s.kv, items)
}

// DeleteItem removes a catalog item. Bills keep their line copies.
func (s *Store) DeleteItem(ctx context.Context, id string) (*models.Item, error) {
	return remove(ctx, s.kv, items, id)
}

// Insert re-inserts a previously exported record of the given kind,
// keeping its ID and timestamps. No reference checks are made, so a bill
// may come back while its customer is still recycled. Name collisions fail
// with DuplicateName.
func (s *Store) Insert(ctx context.Context, kind models.EntityKind, payload json.RawMessage, also ...storage.Write) error {
	switch kind {
	case models.KindCustomer:
		return insertRaw(ctx, s.kv, customers, payload, also...)
	case models.KindBill:
		return insertRaw(ctx, s.kv, bills, payload, also...)
	case models.KindPayment:
		return insertRaw(ctx, s.kv, payments, payload, also...)
	case models.KindItem:
		return insertRaw(ctx, s.kv, items, payload, also...)
	}
	return apperr.Validationf("unknown entity kind %q", kind)
}

// Put replaces or appends a record of the given kind by ID. It is used for
// records resolved during sync, so it applies the rules of a local save:
// the record must validate, bill totals are recomputed, and a bill or
// payment must belong to a customer that is active or in the recycle bin.
func (s *Store) Put(ctx context.Context, kind models.EntityKind, payload json.RawMessage) error {
	switch kind {
	case models.KindCustomer:
		return putRaw(ctx, s.kv, customers, payload, (*models.Customer).Validate)
	case models.KindBill:
		return putRaw(ctx, s.kv, bills, payload, func(b *models.Bill) error {
			if err := b.Validate(); err != nil {
				return err
			}
			b.Recalculate()
			return s.checkOwner(ctx, kind, b.ID, b.CustomerID)
		})
	case models.KindPayment:
		return putRaw(ctx, s.kv, payments, payload, func(p *models.Payment) error {
			if err := p.Validate(); err != nil {
				return err
			}
			return s.checkOwner(ctx, kind, p.ID, p.CustomerID)
		})
	case models.KindItem:
		return putRaw(ctx, s.kv, items, payload, (*models.Item).Validate)
	}
	return apperr.Validationf("unknown entity kind %q", kind)
}

// checkOwner fails with DataInconsistency unless customerID is an active
// customer or a recycled one.
func (s *Store) checkOwner(ctx context.Context, kind models.EntityKind, id, customerID string) error {
	list, err := load(ctx, s.kv, customers)
	if err != nil {
		return err
	}
	if indexOf(customers, list, customerID) >= 0 {
		return nil
	}

	raw, ok, err := s.kv.Get(ctx, storage.KeyRecycleBin)
	if err != nil {
		return fmt.Errorf("failed to load recycle bin: %w", err)
	}
	if ok && raw != "" {
		var entries []models.RecycledItem
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return apperr.Wrap(apperr.KindDataInconsistency, err, "stored recycle bin is unreadable")
		}
		for _, e := range entries {
			if e.Type == models.KindCustomer && e.EntityID == customerID {
				return nil
			}
		}
	}
	return apperr.Inconsistentf("%s %s references customer %s, which does not exist", kind, id, customerID)
}

// Lookup returns the JSON encoding of the active record of the given kind,
// or nil when it does not exist.
func (s *Store) Lookup(ctx context.Context, kind models.EntityKind, id string) (json.RawMessage, error) {
	switch kind {
	case models.KindCustomer:
		return lookupRaw(ctx, s.kv, customers, id)
	case models.KindBill:
		return lookupRaw(ctx, s.kv, bills, id)
	case models.KindPayment:
		return lookupRaw(ctx, s.kv, payments, id)
	case models.KindItem:
		return lookupRaw(ctx, s.kv, items, id)
	}
	return nil, apperr.Validationf("unknown entity kind %q", kind)
}

func insertRaw[T any](ctx context.Context, kv storage.KV, c collection[T], payload json.RawMessage, also ...storage.Write) error {
	var entity T
	if err := json.Unmarshal(payload, &entity); err != nil {
		return apperr.Wrap(apperr.KindDataInconsistency, err, "%s payload is unreadable", c.kind)
	}
	if c.id(&entity) == "" {
		return apperr.Inconsistentf("%s payload has no id", c.kind)
	}
	return insert(ctx, kv, c, entity, also...)
}

func putRaw[T any](ctx context.Context, kv storage.KV, c collection[T], payload json.RawMessage, check func(*T) error) error {
	var entity T
	if err := json.Unmarshal(payload, &entity); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "%s payload is unreadable", c.kind)
	}
	if c.id(&entity) == "" {
		return apperr.Validationf("%s payload has no id", c.kind)
	}
	if err := check(&entity); err != nil {
		return err
	}
	return upsert(ctx, kv, c, entity)
}

func lookupRaw[T any](ctx context.Context, kv storage.KV, c collection[T], id string) (json.RawMessage, error) {
	list, err := load(ctx, kv, c)
	if err != nil {
		return nil, err
	}
	idx := indexOf(c, list, id)
	if idx < 0 {
		return nil, nil
	}
	data, err := json.Marshal(list[idx])
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", c.kind, err)
	}
	return data, nil
}

// Export returns every active collection.
func (s *Store) Export(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	var err error
	if snap.Customers, err = s.ListCustomers(ctx); err != nil {
		return nil, err
	}
	if snap.Bills, err = s.ListBills(ctx); err != nil {
		return nil, err
	}
	if snap.Payments, err = s.ListPayments(ctx); err != nil {
		return nil, err
	}
	if snap.Items, err = s.ListItems(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

// ReplaceWrites returns the writes that replace every active collection
// with the contents of snap.
func ReplaceWrites(snap *models.Snapshot) ([]storage.Write, error) {
	writes := make([]storage.Write, 0, 4)
	for _, encodeOne := range []func() (storage.Write, error){
		func() (storage.Write, error) { return encode(customers, snap.Customers) },
		func() (storage.Write, error) { return encode(bills, snap.Bills) },
		func() (storage.Write, error) { return encode(payments, snap.Payments) },
		func() (storage.Write, error) { return encode(items, snap.Items) },
	} {
		w, err := encodeOne()
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	return writes, nil
}

// Replace swaps every active collection for the contents of snap in one write.
func (s *Store) Replace(ctx context.Context, snap *models.Snapshot, also ...storage.Write) error {
	writes, err := ReplaceWrites(snap)
	if err != nil {
		return err
	}
	if err := s.kv.Apply(ctx, append(writes, also...)...); err != nil {
		return fmt.Errorf("failed to replace collections: %w", err)
	}
	return nil
}
