package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/connectivity"
	"github.com/mmynk/billbuddy/internal/ledger"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/queue"
	"github.com/mmynk/billbuddy/internal/records"
	"github.com/mmynk/billbuddy/internal/recyclebin"
	"github.com/mmynk/billbuddy/internal/storage/sqlite"
)

// fakeSyncer records what it is asked to deliver and fails with the
// queued errors first.
type fakeSyncer struct {
	mu        sync.Mutex
	errs      []error
	processed []models.Operation
}

func (f *fakeSyncer) Process(_ context.Context, op models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.processed = append(f.processed, op)
	return nil
}

func (f *fakeSyncer) SyncNow(ctx context.Context) error {
	return f.Process(ctx, models.Operation{Type: models.OpSync})
}

func (f *fakeSyncer) ops() []models.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Operation(nil), f.processed...)
}

type testEnv struct {
	ledger  *Ledger
	monitor *connectivity.Monitor
	queue   *queue.Queue
	syncer  *fakeSyncer
}

// setupTestLedger creates a Ledger over a temporary SQLite database.
func setupTestLedger(t *testing.T, withSyncer bool) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{monitor: connectivity.NewMonitor(true), syncer: &fakeSyncer{}}
	rs := records.New(store)
	env.queue = queue.New(store, env.monitor, nil)
	var opts []Option
	if withSyncer {
		opts = append(opts, WithSyncer(env.syncer))
	}
	env.ledger = New(rs, recyclebin.New(rs, nil), env.queue, opts...)
	return env
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func rate(s string) *decimal.Decimal {
	r := decimal.RequireFromString(s)
	return &r
}

func oneLine(amount string) []LineInput {
	return []LineInput{{Name: "Goods", Quantity: decimal.NewFromInt(1), Rate: rate(amount)}}
}

func TestLedger_AshaScenario(t *testing.T) {
	ctx := context.Background()
	env := setupTestLedger(t, false)
	l := env.ledger

	asha, err := l.AddCustomer(ctx, "Asha")
	require.NoError(t, err)
	_, err = l.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 1, 10), Lines: oneLine("500")})
	require.NoError(t, err)
	_, err = l.RecordPayment(ctx, PaymentInput{CustomerID: asha.ID, Amount: decimal.NewFromInt(200), Date: day(2024, 1, 20)})
	require.NoError(t, err)
	_, err = l.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 2, 5), Lines: oneLine("300")})
	require.NoError(t, err)

	st, err := l.Statement(ctx, asha.ID)
	require.NoError(t, err)
	require.Len(t, st.Months, 2)

	jan, feb := st.Months[0], st.Months[1]
	assert.Equal(t, time.January, jan.Month)
	assert.True(t, jan.OpeningBalance.IsZero())
	assert.True(t, jan.Bills.Equal(decimal.NewFromInt(500)))
	assert.True(t, jan.Payments.Equal(decimal.NewFromInt(200)))
	assert.True(t, jan.ClosingBalance.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, time.February, feb.Month)
	assert.True(t, feb.OpeningBalance.Equal(decimal.NewFromInt(300)))
	assert.True(t, feb.Bills.Equal(decimal.NewFromInt(300)))
	assert.True(t, feb.Payments.IsZero())
	assert.True(t, feb.ClosingBalance.Equal(decimal.NewFromInt(600)))

	out, err := l.Outstanding(ctx, asha.ID)
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(600)), "outstanding = %s", out)

	window, err := l.StatementWindow(ctx, asha.ID, ledger.Month{Year: 2024, Month: time.February}, ledger.Month{Year: 2024, Month: time.March})
	require.NoError(t, err)
	require.Len(t, window.Months, 2)
	assert.True(t, window.Months[1].ClosingBalance.Equal(decimal.NewFromInt(600)))
}

func TestLedger_DeleteRestoreKeepsLedger(t *testing.T) {
	ctx := context.Background()
	l := setupTestLedger(t, false).ledger

	asha, err := l.AddCustomer(ctx, "Asha")
	require.NoError(t, err)
	b, err := l.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 1, 10), Lines: oneLine("500")})
	require.NoError(t, err)
	p, err := l.RecordPayment(ctx, PaymentInput{CustomerID: asha.ID, Amount: decimal.NewFromInt(200), Date: day(2024, 1, 20)})
	require.NoError(t, err)

	before, err := l.Summaries(ctx)
	require.NoError(t, err)

	billEntry, err := l.DeleteBill(ctx, b.ID)
	require.NoError(t, err)
	payEntry, err := l.DeletePayment(ctx, p.ID)
	require.NoError(t, err)

	out, err := l.Outstanding(ctx, asha.ID)
	require.NoError(t, err)
	assert.True(t, out.IsZero(), "recycled records leave the ledger")

	bin, err := l.ListBin(ctx)
	require.NoError(t, err)
	require.Len(t, bin, 2)
	assert.Equal(t, recyclebin.RetentionDays, bin[0].DaysRemaining)

	_, err = l.Restore(ctx, billEntry.ID)
	require.NoError(t, err)
	_, err = l.Restore(ctx, payEntry.ID)
	require.NoError(t, err)

	after, err := l.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].CustomerID, after[0].CustomerID)
	assert.True(t, before[0].Outstanding.Equal(after[0].Outstanding))
	assert.True(t, before[0].TotalBilled.Equal(after[0].TotalBilled))
	assert.True(t, before[0].TotalPaid.Equal(after[0].TotalPaid))
}

func TestLedger_CustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	l := setupTestLedger(t, false).ledger

	asha, err := l.AddCustomer(ctx, "  Asha ")
	require.NoError(t, err)
	assert.Equal(t, "Asha", asha.Name)

	_, err = l.AddCustomer(ctx, "Asha")
	assert.True(t, apperr.Is(err, apperr.KindDuplicateName), "got %v", err)

	b, err := l.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 1, 10), Lines: oneLine("100")})
	require.NoError(t, err)

	_, err = l.RenameCustomer(ctx, asha.ID, "Asha Rao")
	require.NoError(t, err)
	idx, err := l.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Asha", idx.Bills(asha.ID)[0].CustomerName, "bills keep the name they were entered under")

	matches, err := l.SearchCustomers(ctx, "asha", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Asha Rao", matches[0].Customer.Name)

	entry, err := l.DeleteCustomer(ctx, asha.ID)
	require.NoError(t, err)

	t.Run("a recycled customer cannot be purged while it owns bills", func(t *testing.T) {
		err := l.PurgeBin(ctx, entry.ID)
		assert.True(t, apperr.Is(err, apperr.KindDataInconsistency), "got %v", err)
	})

	t.Run("the name is free again and blocks restore", func(t *testing.T) {
		other, err := l.AddCustomer(ctx, "Asha Rao")
		require.NoError(t, err)

		_, err = l.Restore(ctx, entry.ID)
		assert.True(t, apperr.Is(err, apperr.KindRestoreConflict), "got %v", err)

		_, err = l.DeleteCustomer(ctx, other.ID)
		require.NoError(t, err)
	})

	t.Run("restore brings the customer back", func(t *testing.T) {
		_, err := l.Restore(ctx, entry.ID)
		require.NoError(t, err)
		st, err := l.Statement(ctx, asha.ID)
		require.NoError(t, err)
		assert.True(t, st.Outstanding.Equal(b.GrandTotal))
	})

	t.Run("clear removes the rest", func(t *testing.T) {
		n, err := l.ClearBin(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestLedger_BillsUseCatalog(t *testing.T) {
	ctx := context.Background()
	l := setupTestLedger(t, false).ledger

	asha, err := l.AddCustomer(ctx, "Asha")
	require.NoError(t, err)
	cement, err := l.AddItem(ctx, "Cement", rate("350"))
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "Sand", nil)
	require.NoError(t, err)

	b, err := l.CreateBill(ctx, BillInput{
		CustomerID: asha.ID,
		Date:       day(2024, 1, 10),
		Lines: []LineInput{
			{Name: "Cement", Quantity: decimal.NewFromInt(2)},
			{Name: "Sand", Quantity: decimal.NewFromInt(1), Rate: rate("120.50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, cement.ID, b.Items[0].ItemID)
	assert.True(t, b.GrandTotal.Equal(decimal.RequireFromString("820.50")), "grand total = %s", b.GrandTotal)

	_, err = l.CreateBill(ctx, BillInput{
		CustomerID: asha.ID,
		Date:       day(2024, 1, 11),
		Lines:      []LineInput{{Name: "Sand", Quantity: decimal.NewFromInt(1)}},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "variable item needs a rate, got %v", err)

	updated, err := l.UpdateBill(ctx, b.ID, BillInput{Date: day(2024, 1, 12), Lines: oneLine("10")})
	require.NoError(t, err)
	assert.True(t, updated.GrandTotal.Equal(decimal.NewFromInt(10)))

	_, err = l.UpdateItem(ctx, cement.ID, "Cement", rate("400"))
	require.NoError(t, err)
	require.NoError(t, l.DeleteItem(ctx, cement.ID))
	items, err := l.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLedger_Validation(t *testing.T) {
	ctx := context.Background()
	env := setupTestLedger(t, true)
	l := env.ledger

	asha, err := l.AddCustomer(ctx, "Asha")
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
	}{
		{"empty customer name", func() error { _, err := l.AddCustomer(ctx, " "); return err }},
		{"zero payment", func() error {
			_, err := l.RecordPayment(ctx, PaymentInput{CustomerID: asha.ID, Amount: decimal.Zero, Date: day(2024, 1, 1)})
			return err
		}},
		{"bill without lines", func() error {
			_, err := l.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 1, 1)})
			return err
		}},
		{"negative rate", func() error {
			_, err := l.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 1, 1), Lines: oneLine("-1")})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	ops := env.syncer.ops()
	require.Len(t, ops, 1, "only the customer reached the remote")
	n, err := env.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected input is never queued")
}

func TestLedger_Delivery(t *testing.T) {
	ctx := context.Background()

	t.Run("online sends immediately", func(t *testing.T) {
		env := setupTestLedger(t, true)
		c, err := env.ledger.AddCustomer(ctx, "Asha")
		require.NoError(t, err)

		ops := env.syncer.ops()
		require.Len(t, ops, 1)
		assert.Equal(t, models.OpSave, ops[0].Type)
		assert.Equal(t, models.KindCustomer, ops[0].Entity)
		assert.Equal(t, c.ID, ops[0].EntityID())
	})

	t.Run("offline queues and drains on request", func(t *testing.T) {
		env := setupTestLedger(t, true)
		env.monitor.Set(false)

		c, err := env.ledger.AddCustomer(ctx, "Asha")
		require.NoError(t, err)
		_, err = env.ledger.DeleteCustomer(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, env.syncer.ops())

		pending, err := env.ledger.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, models.OpDelete, pending[1].Type)

		env.monitor.Set(true)
		report, err := env.ledger.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Applied)
		assert.Len(t, env.syncer.ops(), 2)
	})

	t.Run("transient failure queues", func(t *testing.T) {
		env := setupTestLedger(t, true)
		env.syncer.errs = []error{apperr.New(apperr.KindTransient, "unavailable")}

		_, err := env.ledger.AddCustomer(ctx, "Asha")
		require.NoError(t, err)
		n, err := env.queue.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("permanent failure is reported and not queued", func(t *testing.T) {
		env := setupTestLedger(t, true)
		env.syncer.errs = []error{apperr.New(apperr.KindUnauthorized, "token expired")}

		c, err := env.ledger.AddCustomer(ctx, "Asha")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
		require.NotNil(t, c, "the local write stands")

		customers, err := env.ledger.ListCustomers(ctx)
		require.NoError(t, err)
		assert.Len(t, customers, 1)
		n, err := env.queue.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("sync now while offline is queued", func(t *testing.T) {
		env := setupTestLedger(t, true)
		env.monitor.Set(false)
		require.NoError(t, env.ledger.SyncNow(ctx))

		pending, err := env.ledger.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, models.OpSync, pending[0].Type)
	})

	t.Run("no remote configured", func(t *testing.T) {
		env := setupTestLedger(t, false)
		_, err := env.ledger.Drain(ctx)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.True(t, apperr.Is(env.ledger.SyncNow(ctx), apperr.KindValidation))
	})
}

func TestLedger_BackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupTestLedger(t, false).ledger

	asha, err := src.AddCustomer(ctx, "Asha")
	require.NoError(t, err)
	_, err = src.CreateBill(ctx, BillInput{CustomerID: asha.ID, Date: day(2024, 1, 10), Lines: oneLine("500")})
	require.NoError(t, err)

	doc, err := src.ExportBackup(ctx)
	require.NoError(t, err)

	dst := setupTestLedger(t, true)
	_, err = dst.ledger.ImportBackup(ctx, doc)
	require.NoError(t, err)

	out, err := dst.ledger.Outstanding(ctx, asha.ID)
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(500)))

	ops := dst.syncer.ops()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpSync, ops[0].Type)

	_, err = dst.ledger.ImportBackup(ctx, []byte("not a backup"))
	assert.True(t, apperr.Is(err, apperr.KindDataInconsistency))
}

func TestResultOf(t *testing.T) {
	ok := ResultOf(nil, "Customer %s added", "Asha")
	assert.True(t, ok.Success)
	assert.Equal(t, "Customer Asha added", ok.Message)
	assert.Nil(t, ok.Error)

	failed := ResultOf(apperr.NotFoundf("bill b1 not found"), "unused")
	assert.False(t, failed.Success)
	assert.Equal(t, "bill b1 not found", failed.Message)
	assert.Equal(t, apperr.KindNotFound, failed.Error.Kind)

	plain := ResultOf(errors.New("disk full"), "unused")
	assert.Equal(t, apperr.KindUnknown, plain.Error.Kind)
	assert.Equal(t, "disk full", plain.Message)
}
