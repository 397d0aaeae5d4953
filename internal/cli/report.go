package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/ledger"
	"github.com/mmynk/billbuddy/internal/service"
)

func parseMonth(s string) (ledger.Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return ledger.Month{}, apperr.Validationf("month %q must look like %s", s, monthLayout)
	}
	return ledger.MonthOf(t), nil
}

// StatementOptions holds flags for the statement command.
type StatementOptions struct {
	*RootOptions
	From string
	To   string
}

// NewStatementCommand creates the statement command.
func NewStatementCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatementOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "statement CUSTOMER",
		Short: "Show a customer's month-by-month balance",
		Long: `Show opening balance, bills, payments and closing balance for every
month from the customer's first to last activity.

With --from and --to the statement is cut to that window; earlier
months fold into the opening balance.

Examples:
  billbuddy statement Asha
  billbuddy statement Asha --from 2024-02 --to 2024-06`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(opts, cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "first month, YYYY-MM")
	cmd.Flags().StringVar(&opts.To, "to", "", "last month, YYYY-MM")
	cmd.MarkFlagsRequiredTogether("from", "to")

	return cmd
}

func runStatement(opts *StatementOptions, cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	p := opts.printer(cmd)

	customer, err := resolveCustomer(ctx, opts.app.Ledger, ref)
	if err != nil {
		return p.Report(err, nil, nil, "")
	}

	var st *service.Statement
	if opts.From != "" {
		from, err := parseMonth(opts.From)
		if err != nil {
			return p.Report(err, nil, nil, "")
		}
		to, err := parseMonth(opts.To)
		if err != nil {
			return p.Report(err, nil, nil, "")
		}
		st, err = opts.app.Ledger.StatementWindow(ctx, customer.ID, from, to)
		if err != nil {
			return p.Report(err, nil, nil, "")
		}
	} else if st, err = opts.app.Ledger.Statement(ctx, customer.ID); err != nil {
		return p.Report(err, nil, nil, "")
	}

	return p.Report(nil, st, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "MONTH\tOPENING\tBILLS\tPAYMENTS\tCLOSING\t")
		for _, m := range st.Months {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
				ledger.Month{Year: m.Year, Month: m.Month},
				m.OpeningBalance.StringFixed(2), m.Bills.StringFixed(2),
				m.Payments.StringFixed(2), m.ClosingBalance.StringFixed(2))
		}
		tw.Flush()
	}, "Statement for %s, outstanding %s", customer.Name, st.Outstanding.StringFixed(2))
}

// NewBalancesCommand creates the balances command.
func NewBalancesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show what every customer owes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := rootOpts.app.Ledger.Summaries(cmd.Context())
			total := ledger.TotalOutstanding(summaries)
			return rootOpts.printer(cmd).Report(err, summaries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CUSTOMER\tBILLED\tPAID\tOUTSTANDING\tLAST ACTIVITY")
				for _, s := range summaries {
					last := "-"
					if !s.LastActivity.IsZero() {
						last = s.LastActivity.Format(dateLayout)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.CustomerName,
						s.TotalBilled.StringFixed(2), s.TotalPaid.StringFixed(2), s.Outstanding.StringFixed(2), last)
				}
				tw.Flush()
			}, "Total outstanding %s", total.StringFixed(2))
		},
	}
}
