package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/service"
)

// parseLine parses NAME:QUANTITY[:RATE]. The rate may be left out for
// fixed-price catalog items.
func parseLine(s string) (service.LineInput, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return service.LineInput{}, apperr.Validationf("line %q must look like NAME:QUANTITY[:RATE]", s)
	}
	qty, err := parseAmount(parts[1])
	if err != nil {
		return service.LineInput{}, err
	}
	line := service.LineInput{Name: parts[0], Quantity: qty}
	if len(parts) == 3 {
		rate, err := parseAmount(parts[2])
		if err != nil {
			return service.LineInput{}, err
		}
		line.Rate = &rate
	}
	return line, nil
}

// BillOptions holds flags for bill add.
type BillOptions struct {
	*RootOptions
	Customer    string
	Date        string
	Particulars string
	Lines       []string
}

// NewBillCommand creates the bill command.
func NewBillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BillOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Manage bills",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Record a bill",
		Long: `Record a bill for an active customer.

Examples:
  billbuddy bill add --customer Asha --date 2024-01-10 --line "Cement:2:350" --line "Sand:1:120.50"
  billbuddy bill add --customer Asha --line "Cement:2"   # rate from the catalog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBillAdd(opts, cmd)
		},
	}
	add.Flags().StringVar(&opts.Customer, "customer", "", "customer name or id (required)")
	_ = add.MarkFlagRequired("customer")
	add.Flags().StringVar(&opts.Date, "date", "", "bill date, YYYY-MM-DD (default today)")
	add.Flags().StringVar(&opts.Particulars, "particulars", "", "free-form description")
	add.Flags().StringArrayVar(&opts.Lines, "line", nil, "NAME:QUANTITY[:RATE], repeatable (required)")
	_ = add.MarkFlagRequired("line")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete BILL_ID",
		Short: "Move a bill to the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := rootOpts.app.Ledger.DeleteBill(cmd.Context(), args[0])
			return rootOpts.printer(cmd).Report(err, entry, nil, "Bill %s moved to the recycle bin", args[0])
		},
	})

	return cmd
}

func runBillAdd(opts *BillOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	p := opts.printer(cmd)

	in, err := billInput(opts)
	if err != nil {
		return p.Report(err, nil, nil, "")
	}
	customer, err := resolveCustomer(ctx, opts.app.Ledger, opts.Customer)
	if err != nil {
		return p.Report(err, nil, nil, "")
	}
	in.CustomerID = customer.ID

	bill, err := opts.app.Ledger.CreateBill(ctx, in)
	if err != nil {
		return p.Report(err, bill, nil, "")
	}
	return p.Report(nil, bill, nil, "Bill %s for %s: %s", bill.ID, customer.Name, bill.GrandTotal.StringFixed(2))
}

func billInput(opts *BillOptions) (service.BillInput, error) {
	date, err := parseDate(opts.Date)
	if err != nil {
		return service.BillInput{}, err
	}
	in := service.BillInput{Date: date, Particulars: opts.Particulars}
	for _, s := range opts.Lines {
		line, err := parseLine(s)
		if err != nil {
			return service.BillInput{}, err
		}
		in.Lines = append(in.Lines, line)
	}
	return in, nil
}

// PaymentOptions holds flags for payment add.
type PaymentOptions struct {
	*RootOptions
	Customer string
	Amount   string
	Date     string
}

// NewPaymentCommand creates the payment command.
func NewPaymentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PaymentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Manage payments",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Record money received from a customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := opts.printer(cmd)

			amount, err := parseAmount(opts.Amount)
			if err != nil {
				return p.Report(err, nil, nil, "")
			}
			date, err := parseDate(opts.Date)
			if err != nil {
				return p.Report(err, nil, nil, "")
			}
			customer, err := resolveCustomer(ctx, opts.app.Ledger, opts.Customer)
			if err != nil {
				return p.Report(err, nil, nil, "")
			}

			payment, err := opts.app.Ledger.RecordPayment(ctx, service.PaymentInput{
				CustomerID: customer.ID,
				Amount:     amount,
				Date:       date,
			})
			return p.Report(err, payment, nil, "Payment of %s from %s recorded", amount.StringFixed(2), customer.Name)
		},
	}
	add.Flags().StringVar(&opts.Customer, "customer", "", "customer name or id (required)")
	_ = add.MarkFlagRequired("customer")
	add.Flags().StringVar(&opts.Amount, "amount", "", "amount received (required)")
	_ = add.MarkFlagRequired("amount")
	add.Flags().StringVar(&opts.Date, "date", "", "payment date, YYYY-MM-DD (default today)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete PAYMENT_ID",
		Short: "Move a payment to the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := rootOpts.app.Ledger.DeletePayment(cmd.Context(), args[0])
			return rootOpts.printer(cmd).Report(err, entry, nil, "Payment %s moved to the recycle bin", args[0])
		},
	})

	return cmd
}
