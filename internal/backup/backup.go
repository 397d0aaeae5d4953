// Package backup exports and imports the whole ledger as one checksummed
// JSON document.
//
// Import is all or nothing: a malformed document, a checksum mismatch or
// data that breaks a record invariant is rejected with DataInconsistency
// before anything is written.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/records"
	"github.com/mmynk/billbuddy/internal/recyclebin"
	"github.com/mmynk/billbuddy/internal/storage"
)

// Format identifies the document layout.
const Format = "billbuddy-backup/1"

// Envelope is the on-disk document.
type Envelope struct {
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"createdAt"`
	// Checksum is the hex SHA-256 of Data in compact form.
	Checksum string          `json:"checksum"`
	Data     json.RawMessage `json:"data"`
}

// Contents is what a backup holds: every active collection plus the recycle
// bin, so records owned by a recycled customer stay consistent.
type Contents struct {
	models.Snapshot
	RecycleBin []models.RecycledItem `json:"recycleBin"`
}

// Export serializes the active collections and the recycle bin.
func Export(ctx context.Context, rs *records.Store, bin *recyclebin.Bin, now time.Time) ([]byte, error) {
	snap, err := rs.Export(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := bin.List(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(Contents{Snapshot: *snap, RecycleBin: entries})
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	env := Envelope{
		Format:    Format,
		CreatedAt: now.UTC(),
		Checksum:  checksum(data),
		Data:      data,
	}
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup envelope: %w", err)
	}
	slog.Info("Backup exported", "customers", len(snap.Customers), "bills", len(snap.Bills),
		"payments", len(snap.Payments), "recycled", len(entries))
	return out, nil
}

// Import checks doc and, if it is sound, replaces the active collections
// and the recycle bin with its contents in one write.
func Import(ctx context.Context, rs *records.Store, doc []byte) (*Contents, error) {
	contents, err := Decode(doc)
	if err != nil {
		return nil, err
	}

	bin, err := json.Marshal(contents.RecycleBin)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recycle bin: %w", err)
	}
	if err := rs.Replace(ctx, &contents.Snapshot, storage.Set(storage.KeyRecycleBin, string(bin))); err != nil {
		return nil, err
	}
	slog.Info("Backup imported", "customers", len(contents.Customers), "bills", len(contents.Bills),
		"payments", len(contents.Payments), "recycled", len(contents.RecycleBin))
	return contents, nil
}

// Decode parses and verifies doc without writing anything.
func Decode(doc []byte) (*Contents, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "backup is not a valid document")
	}
	if env.Format != Format {
		return nil, apperr.Inconsistentf("unsupported backup format %q", env.Format)
	}
	if len(env.Data) == 0 {
		return nil, apperr.Inconsistentf("backup has no data")
	}
	// The envelope is indented on export; the checksum covers the compact form.
	var data bytes.Buffer
	if err := json.Compact(&data, env.Data); err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "backup data is malformed")
	}
	if got := checksum(data.Bytes()); got != env.Checksum {
		return nil, apperr.Inconsistentf("backup checksum mismatch: stored %s, computed %s", env.Checksum, got)
	}

	var contents Contents
	if err := json.Unmarshal(data.Bytes(), &contents); err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "backup data is malformed")
	}
	if err := verify(&contents); err != nil {
		return nil, err
	}
	return &contents, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// verify checks the record invariants across the whole backup.
func verify(c *Contents) error {
	owners := make(map[string]bool)
	names := make(map[string]bool)
	for _, cust := range c.Customers {
		if cust.ID == "" || owners[cust.ID] {
			return apperr.Inconsistentf("customer id %q is missing or repeated", cust.ID)
		}
		if names[cust.Name] {
			return apperr.Inconsistentf("customer name %q is used twice", cust.Name)
		}
		owners[cust.ID] = true
		names[cust.Name] = true
	}

	for _, entry := range c.RecycleBin {
		if !entry.Type.Valid() || entry.EntityID == "" || len(entry.Payload) == 0 {
			return apperr.Inconsistentf("recycle bin entry %q is malformed", entry.ID)
		}
		if entry.Type == models.KindCustomer {
			owners[entry.EntityID] = true
		}
	}

	seen := make(map[string]bool)
	for _, b := range c.Bills {
		if b.ID == "" || seen[b.ID] {
			return apperr.Inconsistentf("bill id %q is missing or repeated", b.ID)
		}
		seen[b.ID] = true
		if !owners[b.CustomerID] {
			return apperr.Inconsistentf("bill %s references unknown customer %s", b.ID, b.CustomerID)
		}
		if !b.TotalsConsistent() {
			return apperr.Inconsistentf("bill %s totals do not add up (grand total %s)", b.ID, b.GrandTotal)
		}
	}
	for _, p := range c.Payments {
		if p.ID == "" || seen[p.ID] {
			return apperr.Inconsistentf("payment id %q is missing or repeated", p.ID)
		}
		seen[p.ID] = true
		if !owners[p.CustomerID] {
			return apperr.Inconsistentf("payment %s references unknown customer %s", p.ID, p.CustomerID)
		}
		if !p.Amount.IsPositive() {
			return apperr.Inconsistentf("payment %s has non-positive amount %s", p.ID, p.Amount)
		}
	}

	itemNames := make(map[string]bool)
	for _, it := range c.Items {
		if err := it.Validate(); err != nil {
			return apperr.Wrap(apperr.KindDataInconsistency, err, "item %q is invalid", it.Name)
		}
		if itemNames[it.Name] {
			return apperr.Inconsistentf("item name %q is used twice", it.Name)
		}
		itemNames[it.Name] = true
	}

	// A record is either active or recycled, never both.
	active := map[models.EntityKind]map[string]bool{
		models.KindCustomer: make(map[string]bool, len(c.Customers)),
		models.KindBill:     make(map[string]bool, len(c.Bills)),
		models.KindPayment:  make(map[string]bool, len(c.Payments)),
	}
	for _, cust := range c.Customers {
		active[models.KindCustomer][cust.ID] = true
	}
	for _, b := range c.Bills {
		active[models.KindBill][b.ID] = true
	}
	for _, p := range c.Payments {
		active[models.KindPayment][p.ID] = true
	}
	for _, entry := range c.RecycleBin {
		if active[entry.Type][entry.EntityID] {
			return apperr.Inconsistentf("%s %s is both active and in the recycle bin", entry.Type, entry.EntityID)
		}
	}
	return nil
}
