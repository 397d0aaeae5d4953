package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/ledger"
	"github.com/mmynk/billbuddy/internal/models"
)

// Statement is a customer's month-by-month balance.
type Statement struct {
	Customer    models.Customer
	Months      []models.MonthlyBalance
	Outstanding decimal.Decimal
}

// Statement computes the full statement of an active customer.
func (l *Ledger) Statement(ctx context.Context, customerID string) (*Statement, error) {
	customer, err := l.records.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	bills, payments, excluded, err := l.activity(ctx)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Customer:    *customer,
		Months:      ledger.MonthlyBalances(customerID, bills, payments, excluded),
		Outstanding: ledger.Outstanding(customerID, bills, payments, excluded),
	}, nil
}

// StatementWindow is Statement restricted to the months from..to.
func (l *Ledger) StatementWindow(ctx context.Context, customerID string, from, to ledger.Month) (*Statement, error) {
	st, err := l.Statement(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if st.Months, err = ledger.Window(st.Months, from, to); err != nil {
		return nil, err
	}
	return st, nil
}

// Outstanding returns what a customer owes now.
func (l *Ledger) Outstanding(ctx context.Context, customerID string) (decimal.Decimal, error) {
	st, err := l.Statement(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return st.Outstanding, nil
}

// Summaries returns the running totals of every active customer.
func (l *Ledger) Summaries(ctx context.Context) ([]ledger.CustomerSummary, error) {
	customers, err := l.records.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	bills, payments, excluded, err := l.activity(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Summaries(customers, bills, payments, excluded), nil
}

// activity loads active bills and payments and the ids held by the bin.
func (l *Ledger) activity(ctx context.Context) ([]models.Bill, []models.Payment, map[string]bool, error) {
	bills, err := l.records.ListBills(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := l.records.ListPayments(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	excluded, err := l.bin.Excluded(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return bills, payments, excluded, nil
}
