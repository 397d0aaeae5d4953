package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(year int, month time.Month, dd int) time.Time {
	return time.Date(year, month, dd, 0, 0, 0, 0, time.UTC)
}

func bill(id, customerID string, date time.Time, total string) models.Bill {
	return models.Bill{ID: id, CustomerID: customerID, Date: date, GrandTotal: d(total)}
}

func payment(id, customerID string, date time.Time, amount string) models.Payment {
	return models.Payment{ID: id, CustomerID: customerID, Date: date, Amount: d(amount)}
}

type want struct {
	year                             int
	month                            time.Month
	opening, bills, payments, closing string
}

func check(t *testing.T, got []models.MonthlyBalance, expected []want) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("got %d months, want %d: %+v", len(got), len(expected), got)
	}
	for i, w := range expected {
		g := got[i]
		if g.Year != w.year || g.Month != w.month {
			t.Errorf("month %d = %d-%02d, want %d-%02d", i, g.Year, g.Month, w.year, w.month)
		}
		if !g.OpeningBalance.Equal(d(w.opening)) {
			t.Errorf("%s %d opening = %s, want %s", w.month, w.year, g.OpeningBalance, w.opening)
		}
		if !g.Bills.Equal(d(w.bills)) {
			t.Errorf("%s %d bills = %s, want %s", w.month, w.year, g.Bills, w.bills)
		}
		if !g.Payments.Equal(d(w.payments)) {
			t.Errorf("%s %d payments = %s, want %s", w.month, w.year, g.Payments, w.payments)
		}
		if !g.ClosingBalance.Equal(d(w.closing)) {
			t.Errorf("%s %d closing = %s, want %s", w.month, w.year, g.ClosingBalance, w.closing)
		}
	}
}

func TestMonthlyBalances(t *testing.T) {
	tests := []struct {
		name     string
		bills    []models.Bill
		payments []models.Payment
		excluded map[string]bool
		want     []want
	}{
		{
			name: "Asha: two months with a payment",
			bills: []models.Bill{
				bill("b1", "asha", day(2024, 1, 10), "500"),
				bill("b2", "asha", day(2024, 2, 5), "300"),
			},
			payments: []models.Payment{
				payment("p1", "asha", day(2024, 1, 20), "200"),
			},
			want: []want{
				{2024, time.January, "0", "500", "200", "300"},
				{2024, time.February, "300", "300", "0", "600"},
			},
		},
		{
			name:  "no activity gives an empty statement",
			bills: []models.Bill{bill("b1", "ravi", day(2024, 1, 10), "500")},
			want:  []want{},
		},
		{
			name: "gap months appear with zero activity",
			bills: []models.Bill{
				bill("b1", "asha", day(2023, 11, 3), "100"),
				bill("b2", "asha", day(2024, 2, 1), "50"),
			},
			want: []want{
				{2023, time.November, "0", "100", "0", "100"},
				{2023, time.December, "100", "0", "0", "100"},
				{2024, time.January, "100", "0", "0", "100"},
				{2024, time.February, "100", "50", "0", "150"},
			},
		},
		{
			name: "recycled records are left out",
			bills: []models.Bill{
				bill("b1", "asha", day(2024, 1, 10), "500"),
				bill("b2", "asha", day(2024, 3, 5), "300"),
			},
			payments: []models.Payment{
				payment("p1", "asha", day(2024, 1, 20), "200"),
			},
			excluded: map[string]bool{"b2": true, "p1": true},
			want: []want{
				{2024, time.January, "0", "500", "0", "500"},
			},
		},
		{
			name: "overpayment goes negative",
			bills: []models.Bill{
				bill("b1", "asha", day(2024, 1, 10), "100.50"),
			},
			payments: []models.Payment{
				payment("p1", "asha", day(2024, 1, 11), "150.25"),
			},
			want: []want{
				{2024, time.January, "0", "100.50", "150.25", "-49.75"},
			},
		},
		{
			name: "input order does not matter",
			bills: []models.Bill{
				bill("b2", "asha", day(2024, 2, 5), "300"),
				bill("b1", "asha", day(2024, 1, 10), "500"),
			},
			payments: []models.Payment{
				payment("p2", "asha", day(2024, 2, 28), "100"),
				payment("p1", "asha", day(2024, 1, 20), "200"),
			},
			want: []want{
				{2024, time.January, "0", "500", "200", "300"},
				{2024, time.February, "300", "300", "100", "500"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyBalances("asha", tt.bills, tt.payments, tt.excluded)
			check(t, got, tt.want)

			// Adjacent months chain and the last closing matches Outstanding.
			for i := 1; i < len(got); i++ {
				if !got[i].OpeningBalance.Equal(got[i-1].ClosingBalance) {
					t.Errorf("opening of month %d (%s) != closing of month %d (%s)",
						i, got[i].OpeningBalance, i-1, got[i-1].ClosingBalance)
				}
			}
			outstanding := Outstanding("asha", tt.bills, tt.payments, tt.excluded)
			last := decimal.Zero
			if len(got) > 0 {
				last = got[len(got)-1].ClosingBalance
			}
			if !outstanding.Equal(last) {
				t.Errorf("Outstanding = %s, last closing = %s", outstanding, last)
			}
		})
	}
}

func TestAsha_Outstanding(t *testing.T) {
	bills := []models.Bill{
		bill("b1", "asha", day(2024, 1, 10), "500"),
		bill("b2", "asha", day(2024, 2, 5), "300"),
	}
	payments := []models.Payment{payment("p1", "asha", day(2024, 1, 20), "200")}

	if got := Outstanding("asha", bills, payments, nil); !got.Equal(d("600")) {
		t.Errorf("Outstanding = %s, want 600", got)
	}
}

func TestWindow(t *testing.T) {
	balances := MonthlyBalances("asha",
		[]models.Bill{
			bill("b1", "asha", day(2024, 1, 10), "500"),
			bill("b2", "asha", day(2024, 2, 5), "300"),
			bill("b3", "asha", day(2024, 4, 2), "100"),
		},
		[]models.Payment{payment("p1", "asha", day(2024, 1, 20), "200")},
		nil,
	)

	t.Run("earlier months fold into the opening balance", func(t *testing.T) {
		got, err := Window(balances, Month{2024, time.February}, Month{2024, time.March})
		if err != nil {
			t.Fatal(err)
		}
		check(t, got, []want{
			{2024, time.February, "300", "300", "0", "600"},
			{2024, time.March, "600", "0", "0", "600"},
		})
	})

	t.Run("months past the last activity carry the balance", func(t *testing.T) {
		got, err := Window(balances, Month{2024, time.May}, Month{2024, time.June})
		if err != nil {
			t.Fatal(err)
		}
		check(t, got, []want{
			{2024, time.May, "700", "0", "0", "700"},
			{2024, time.June, "700", "0", "0", "700"},
		})
	})

	t.Run("months before any activity are zero", func(t *testing.T) {
		got, err := Window(balances, Month{2023, time.December}, Month{2024, time.January})
		if err != nil {
			t.Fatal(err)
		}
		check(t, got, []want{
			{2023, time.December, "0", "0", "0", "0"},
			{2024, time.January, "0", "500", "200", "300"},
		})
	})

	t.Run("inverted window is rejected", func(t *testing.T) {
		if _, err := Window(balances, Month{2024, time.March}, Month{2024, time.January}); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestMonth_Next(t *testing.T) {
	if got := (Month{2023, time.December}).Next(); got != (Month{2024, time.January}) {
		t.Errorf("Next of Dec 2023 = %v", got)
	}
	if got := (Month{2024, time.February}).String(); got != "Feb 2024" {
		t.Errorf("String = %q", got)
	}
}

func TestSummaries(t *testing.T) {
	customers := []models.Customer{{ID: "ravi", Name: "Ravi"}, {ID: "asha", Name: "Asha"}}
	bills := []models.Bill{
		bill("b1", "asha", day(2024, 1, 10), "500"),
		bill("b2", "asha", day(2024, 2, 5), "300"),
		bill("b3", "ravi", day(2024, 1, 1), "90"),
		bill("b4", "gone", day(2024, 1, 1), "1000"),
	}
	payments := []models.Payment{
		payment("p1", "asha", day(2024, 1, 20), "200"),
		payment("p2", "ravi", day(2024, 3, 1), "40"),
	}

	got := Summaries(customers, bills, payments, map[string]bool{"b3": true})
	if len(got) != 2 {
		t.Fatalf("got %d summaries, want 2", len(got))
	}

	asha, ravi := got[0], got[1]
	if asha.CustomerName != "Asha" || ravi.CustomerName != "Ravi" {
		t.Fatalf("summaries not sorted by name: %+v", got)
	}
	if !asha.Outstanding.Equal(d("600")) {
		t.Errorf("Asha outstanding = %s, want 600", asha.Outstanding)
	}
	if !asha.LastActivity.Equal(day(2024, 2, 5)) {
		t.Errorf("Asha last activity = %v", asha.LastActivity)
	}
	if !ravi.TotalBilled.IsZero() || !ravi.Outstanding.Equal(d("-40")) {
		t.Errorf("Ravi = billed %s outstanding %s, want 0 and -40", ravi.TotalBilled, ravi.Outstanding)
	}
	if total := TotalOutstanding(got); !total.Equal(d("560")) {
		t.Errorf("TotalOutstanding = %s, want 560", total)
	}
}
