package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/storage"
)

// CurrentVersion is the record shape this build reads and writes.
const CurrentVersion = "1.10.0"

// record is a stored entity before it is decoded into a model; older
// shapes may not fit the current structs.
type record = map[string]any

// All returns the built-in migration table. now stamps backfilled timestamps.
func All(now func() time.Time) []Migration {
	return []Migration{
		{
			Version:     "1.0.0",
			Description: "ensure every collection exists",
			Up:          ensureCollections,
		},
		{
			Version:     "1.1.0",
			Description: "backfill createdAt and updatedAt",
			Up: func(ctx context.Context, kv storage.KV) error {
				return backfillTimestamps(ctx, kv, now().UTC())
			},
		},
		{
			Version:     "1.2.0",
			Description: "recompute bill totals and customer name snapshots",
			Up:          recomputeBillTotals,
		},
		{
			Version:     "1.10.0",
			Description: "rename payment amountPaid to amount and default item type",
			Up:          renameLegacyFields,
		},
	}
}

func ensureCollections(ctx context.Context, kv storage.KV) error {
	keys := []string{
		storage.KeyCustomers,
		storage.KeyBills,
		storage.KeyPayments,
		storage.KeyItems,
		storage.KeyRecycleBin,
		storage.KeyOfflineQueue,
	}
	var writes []storage.Write
	for _, key := range keys {
		_, ok, err := kv.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !ok {
			writes = append(writes, storage.Set(key, "[]"))
		}
	}
	return kv.Apply(ctx, writes...)
}

func backfillTimestamps(ctx context.Context, kv storage.KV, now time.Time) error {
	stamp := now.Format(time.RFC3339)
	var writes []storage.Write

	for _, key := range []string{storage.KeyCustomers, storage.KeyBills, storage.KeyPayments} {
		list, err := loadRecords(ctx, kv, key)
		if err != nil {
			return err
		}
		for _, r := range list {
			if isBlank(r["createdAt"]) {
				if date, ok := r["date"].(string); ok && date != "" {
					r["createdAt"] = date
				} else {
					r["createdAt"] = stamp
				}
			}
		}
		w, err := encodeRecords(key, list)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}

	list, err := loadRecords(ctx, kv, storage.KeyItems)
	if err != nil {
		return err
	}
	for _, r := range list {
		if isBlank(r["createdAt"]) {
			r["createdAt"] = stamp
		}
		if isBlank(r["updatedAt"]) {
			r["updatedAt"] = r["createdAt"]
		}
	}
	w, err := encodeRecords(storage.KeyItems, list)
	if err != nil {
		return err
	}
	return kv.Apply(ctx, append(writes, w)...)
}

func recomputeBillTotals(ctx context.Context, kv storage.KV) error {
	customerList, err := loadRecords(ctx, kv, storage.KeyCustomers)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(customerList))
	for _, c := range customerList {
		id, _ := c["id"].(string)
		name, _ := c["name"].(string)
		names[id] = name
	}

	billList, err := loadRecords(ctx, kv, storage.KeyBills)
	if err != nil {
		return err
	}
	for _, b := range billList {
		lines, _ := b["items"].([]any)
		grand := decimal.Zero
		for i, raw := range lines {
			line, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("bill %v: item %d is not an object", b["id"], i+1)
			}
			qty, err := toDecimal(line["quantity"], decimal.NewFromInt(1))
			if err != nil {
				return fmt.Errorf("bill %v: item %d quantity: %w", b["id"], i+1, err)
			}
			rate, err := toDecimal(line["rate"], decimal.Zero)
			if err != nil {
				return fmt.Errorf("bill %v: item %d rate: %w", b["id"], i+1, err)
			}
			total := qty.Mul(rate)
			line["quantity"] = qty.String()
			line["rate"] = rate.String()
			line["total"] = total.String()
			grand = grand.Add(total)
		}
		if lines == nil {
			b["items"] = []any{}
		}
		b["grandTotal"] = grand.String()

		if isBlank(b["customerName"]) {
			if id, ok := b["customerId"].(string); ok {
				b["customerName"] = names[id]
			}
		}
	}

	w, err := encodeRecords(storage.KeyBills, billList)
	if err != nil {
		return err
	}
	return kv.Apply(ctx, w)
}

func renameLegacyFields(ctx context.Context, kv storage.KV) error {
	paymentList, err := loadRecords(ctx, kv, storage.KeyPayments)
	if err != nil {
		return err
	}
	for _, p := range paymentList {
		legacy, hasLegacy := p["amountPaid"]
		if !hasLegacy {
			continue
		}
		if isBlank(p["amount"]) {
			amount, err := toDecimal(legacy, decimal.Zero)
			if err != nil {
				return fmt.Errorf("payment %v: amountPaid: %w", p["id"], err)
			}
			p["amount"] = amount.String()
		}
		delete(p, "amountPaid")
	}

	itemList, err := loadRecords(ctx, kv, storage.KeyItems)
	if err != nil {
		return err
	}
	for _, it := range itemList {
		if !isBlank(it["type"]) {
			continue
		}
		if isBlank(it["rate"]) {
			it["type"] = "variable"
		} else {
			it["type"] = "fixed"
		}
	}

	pw, err := encodeRecords(storage.KeyPayments, paymentList)
	if err != nil {
		return err
	}
	iw, err := encodeRecords(storage.KeyItems, itemList)
	if err != nil {
		return err
	}
	return kv.Apply(ctx, pw, iw)
}

func loadRecords(ctx context.Context, kv storage.KV, key string) ([]record, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return []record{}, nil
	}
	var list []record
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return list, nil
}

func encodeRecords(key string, list []record) (storage.Write, error) {
	if list == nil {
		list = []record{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return storage.Write{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return storage.Set(key, string(data)), nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// toDecimal reads a JSON number or numeric string.
func toDecimal(v any, fallback decimal.Decimal) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return fallback, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		if n == "" {
			return fallback, nil
		}
		return decimal.NewFromString(n)
	}
	return decimal.Zero, fmt.Errorf("unexpected value %v", v)
}
