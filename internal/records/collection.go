package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/storage"
)

// collection describes how one entity kind is stored.
type collection[T any] struct {
	key  string
	kind models.EntityKind
	id   func(*T) string
	// name returns the unique name, or nil when the kind has none.
	name func(*T) string
}

var (
	customers = collection[models.Customer]{
		key:  storage.KeyCustomers,
		kind: models.KindCustomer,
		id:   func(c *models.Customer) string { return c.ID },
		name: func(c *models.Customer) string { return c.Name },
	}
	bills = collection[models.Bill]{
		key:  storage.KeyBills,
		kind: models.KindBill,
		id:   func(b *models.Bill) string { return b.ID },
	}
	payments = collection[models.Payment]{
		key:  storage.KeyPayments,
		kind: models.KindPayment,
		id:   func(p *models.Payment) string { return p.ID },
	}
	items = collection[models.Item]{
		key:  storage.KeyItems,
		kind: models.KindItem,
		id:   func(i *models.Item) string { return i.ID },
		name: func(i *models.Item) string { return i.Name },
	}
)

func load[T any](ctx context.Context, kv storage.KV, c collection[T]) ([]T, error) {
	raw, ok, err := kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", c.key, err)
	}
	if !ok || raw == "" {
		return []T{}, nil
	}
	var list []T
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "stored %s are unreadable", c.key)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func encode[T any](c collection[T], list []T) (storage.Write, error) {
	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return storage.Write{}, fmt.Errorf("failed to encode %s: %w", c.key, err)
	}
	return storage.Set(c.key, string(data)), nil
}

func indexOf[T any](c collection[T], list []T, id string) int {
	for i := range list {
		if c.id(&list[i]) == id {
			return i
		}
	}
	return -1
}

// checkName fails with DuplicateName when another active entity (other than
// selfID) already uses candidate's name. Comparison is case-sensitive.
func checkName[T any](c collection[T], list []T, candidate *T, selfID string) error {
	if c.name == nil {
		return nil
	}
	name := c.name(candidate)
	for i := range list {
		if c.id(&list[i]) == selfID {
			continue
		}
		if c.name(&list[i]) == name {
			return apperr.New(apperr.KindDuplicateName, "%s %q already exists", c.kind, name)
		}
	}
	return nil
}

// insert appends entity and commits it together with also.
func insert[T any](ctx context.Context, kv storage.KV, c collection[T], entity T, also ...storage.Write) error {
	list, err := load(ctx, kv, c)
	if err != nil {
		return err
	}
	id := c.id(&entity)
	if indexOf(c, list, id) >= 0 {
		return apperr.Inconsistentf("%s %s is already active", c.kind, id)
	}
	if err := checkName(c, list, &entity, id); err != nil {
		return err
	}
	w, err := encode(c, append(list, entity))
	if err != nil {
		return err
	}
	if err := kv.Apply(ctx, append([]storage.Write{w}, also...)...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", c.kind, err)
	}
	return nil
}

// update applies mutate to the entity with id and writes it back.
func update[T any](ctx context.Context, kv storage.KV, c collection[T], id string, mutate func(*T) error, validate func(*T) error) (*T, error) {
	list, err := load(ctx, kv, c)
	if err != nil {
		return nil, err
	}
	idx := indexOf(c, list, id)
	if idx < 0 {
		return nil, apperr.NotFoundf("%s %s not found", c.kind, id)
	}

	updated := list[idx]
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	if c.id(&updated) != id {
		return nil, apperr.Validationf("%s id cannot change", c.kind)
	}
	if validate != nil {
		if err := validate(&updated); err != nil {
			return nil, err
		}
	}
	if err := checkName(c, list, &updated, id); err != nil {
		return nil, err
	}

	list[idx] = updated
	w, err := encode(c, list)
	if err != nil {
		return nil, err
	}
	if err := kv.Apply(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", c.kind, err)
	}
	return &updated, nil
}

// upsert replaces the entity with the same id or appends it.
func upsert[T any](ctx context.Context, kv storage.KV, c collection[T], entity T) error {
	list, err := load(ctx, kv, c)
	if err != nil {
		return err
	}
	id := c.id(&entity)
	if err := checkName(c, list, &entity, id); err != nil {
		return err
	}
	if idx := indexOf(c, list, id); idx >= 0 {
		list[idx] = entity
	} else {
		list = append(list, entity)
	}
	w, err := encode(c, list)
	if err != nil {
		return err
	}
	if err := kv.Apply(ctx, w); err != nil {
		return fmt.Errorf("failed to put %s: %w", c.kind, err)
	}
	return nil
}

// remove deletes the entity with id and commits also in the same Apply.
func remove[T any](ctx context.Context, kv storage.KV, c collection[T], id string, also ...storage.Write) (*T, error) {
	list, err := load(ctx, kv, c)
	if err != nil {
		return nil, err
	}
	idx := indexOf(c, list, id)
	if idx < 0 {
		return nil, apperr.NotFoundf("%s %s not found", c.kind, id)
	}
	removed := list[idx]
	list = append(list[:idx], list[idx+1:]...)

	w, err := encode(c, list)
	if err != nil {
		return nil, err
	}
	if err := kv.Apply(ctx, append([]storage.Write{w}, also...)...); err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", c.kind, err)
	}
	return &removed, nil
}

func get[T any](ctx context.Context, kv storage.KV, c collection[T], id string) (*T, error) {
	list, err := load(ctx, kv, c)
	if err != nil {
		return nil, err
	}
	idx := indexOf(c, list, id)
	if idx < 0 {
		return nil, apperr.NotFoundf("%s %s not found", c.kind, id)
	}
	return &list[idx], nil
}
