package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/index"
	"github.com/mmynk/billbuddy/internal/models"
)

// LineInput is one bill line as entered. When Name matches a catalog item
// the line links to it, and a fixed item supplies its rate if Rate is nil.
type LineInput struct {
	Name     string
	Quantity decimal.Decimal
	Rate     *decimal.Decimal
}

// BillInput holds the user-editable fields of a bill.
type BillInput struct {
	CustomerID  string
	Date        time.Time
	Particulars string
	Lines       []LineInput
}

// PaymentInput holds the user-editable fields of a payment.
type PaymentInput struct {
	CustomerID string
	Amount     decimal.Decimal
	Date       time.Time
}

// lineItems resolves inputs against the catalog.
func lineItems(idx *index.Index, inputs []LineInput) ([]models.LineItem, error) {
	items := make([]models.LineItem, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		line := models.LineItem{Name: name, Quantity: in.Quantity}

		catalog := idx.Item(name)
		if catalog != nil {
			line.ItemID = catalog.ID
		}
		switch {
		case in.Rate != nil:
			line.Rate = *in.Rate
		case catalog != nil && catalog.Type == models.ItemFixed:
			line.Rate = *catalog.Rate
		default:
			return nil, apperr.Validationf("item %d (%s): rate is required", i+1, name)
		}
		items[i] = line
	}
	return items, nil
}

// CreateBill records a bill for an active customer.
func (l *Ledger) CreateBill(ctx context.Context, in BillInput) (*models.Bill, error) {
	idx, err := l.Index(ctx)
	if err != nil {
		return nil, err
	}
	items, err := lineItems(idx, in.Lines)
	if err != nil {
		return nil, err
	}

	bill := &models.Bill{
		CustomerID:  in.CustomerID,
		Date:        in.Date,
		Particulars: in.Particulars,
		Items:       items,
	}
	if err := l.records.SaveBill(ctx, bill); err != nil {
		slog.Error("CreateBill failed", "customer_id", in.CustomerID, "error", err)
		return nil, err
	}
	slog.Info("Bill created", "bill_id", bill.ID, "customer_id", bill.CustomerID, "grand_total", bill.GrandTotal)
	return bill, l.deliver(ctx, models.OpSave, models.KindBill, bill)
}

// UpdateBill replaces the date, particulars and lines of a bill.
// The customer cannot change.
func (l *Ledger) UpdateBill(ctx context.Context, id string, in BillInput) (*models.Bill, error) {
	idx, err := l.Index(ctx)
	if err != nil {
		return nil, err
	}
	items, err := lineItems(idx, in.Lines)
	if err != nil {
		return nil, err
	}

	bill, err := l.records.UpdateBill(ctx, id, func(b *models.Bill) error {
		if in.CustomerID != "" {
			b.CustomerID = in.CustomerID
		}
		b.Date = in.Date
		b.Particulars = in.Particulars
		b.Items = items
		return nil
	})
	if err != nil {
		slog.Error("UpdateBill failed", "bill_id", id, "error", err)
		return nil, err
	}
	slog.Info("Bill updated", "bill_id", id, "grand_total", bill.GrandTotal)
	return bill, l.deliver(ctx, models.OpUpdate, models.KindBill, bill)
}

// DeleteBill moves a bill to the recycle bin.
func (l *Ledger) DeleteBill(ctx context.Context, id string) (*models.RecycledItem, error) {
	entry, err := l.bin.SoftDeleteBill(ctx, id)
	if err != nil {
		slog.Error("DeleteBill failed", "bill_id", id, "error", err)
		return nil, err
	}
	return entry, l.deliver(ctx, models.OpDelete, models.KindBill, idOnly(id))
}

// RecordPayment records money received from an active customer.
func (l *Ledger) RecordPayment(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	p := &models.Payment{
		CustomerID: in.CustomerID,
		Amount:     in.Amount,
		Date:       in.Date,
	}
	if err := l.records.SavePayment(ctx, p); err != nil {
		slog.Error("RecordPayment failed", "customer_id", in.CustomerID, "error", err)
		return nil, err
	}
	slog.Info("Payment recorded", "payment_id", p.ID, "customer_id", p.CustomerID, "amount", p.Amount)
	return p, l.deliver(ctx, models.OpSave, models.KindPayment, p)
}

// UpdatePayment changes the amount and date of a payment.
func (l *Ledger) UpdatePayment(ctx context.Context, id string, in PaymentInput) (*models.Payment, error) {
	p, err := l.records.UpdatePayment(ctx, id, func(p *models.Payment) error {
		if in.CustomerID != "" {
			p.CustomerID = in.CustomerID
		}
		p.Amount = in.Amount
		p.Date = in.Date
		return nil
	})
	if err != nil {
		slog.Error("UpdatePayment failed", "payment_id", id, "error", err)
		return nil, err
	}
	slog.Info("Payment updated", "payment_id", id, "amount", p.Amount)
	return p, l.deliver(ctx, models.OpUpdate, models.KindPayment, p)
}

// DeletePayment moves a payment to the recycle bin.
func (l *Ledger) DeletePayment(ctx context.Context, id string) (*models.RecycledItem, error) {
	entry, err := l.bin.SoftDeletePayment(ctx, id)
	if err != nil {
		slog.Error("DeletePayment failed", "payment_id", id, "error", err)
		return nil, err
	}
	return entry, l.deliver(ctx, models.OpDelete, models.KindPayment, idOnly(id))
}
