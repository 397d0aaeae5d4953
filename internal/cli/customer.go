package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/service"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// resolveCustomer accepts an exact customer name or an id.
func resolveCustomer(ctx context.Context, l *service.Ledger, ref string) (*models.Customer, error) {
	idx, err := l.Index(ctx)
	if err != nil {
		return nil, err
	}
	if c := idx.CustomerByName(ref); c != nil {
		return c, nil
	}
	if c := idx.Customer(ref); c != nil {
		return c, nil
	}
	return nil, apperr.NotFoundf("no active customer named or with id %q", ref)
}

// parseDate parses YYYY-MM-DD, defaulting to today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validationf("date %q must look like %s", s, dateLayout)
	}
	return t, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Validationf("%q is not an amount", s)
	}
	return d, nil
}

// NewCustomerCommand creates the customer command.
func NewCustomerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.app.Ledger.AddCustomer(cmd.Context(), args[0])
			return rootOpts.printer(cmd).Report(err, c, nil, "Customer %q added", args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename CUSTOMER NEW_NAME",
		Short: "Rename a customer; past bills keep the old name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := rootOpts.printer(cmd)
			c, err := resolveCustomer(ctx, rootOpts.app.Ledger, args[0])
			if err != nil {
				return p.Report(err, nil, nil, "")
			}
			renamed, err := rootOpts.app.Ledger.RenameCustomer(ctx, c.ID, args[1])
			return p.Report(err, renamed, nil, "Customer %q renamed to %q", c.Name, args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete CUSTOMER",
		Short: "Move a customer to the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := rootOpts.printer(cmd)
			c, err := resolveCustomer(ctx, rootOpts.app.Ledger, args[0])
			if err != nil {
				return p.Report(err, nil, nil, "")
			}
			entry, err := rootOpts.app.Ledger.DeleteCustomer(ctx, c.ID)
			return p.Report(err, entry, nil, "Customer %q moved to the recycle bin", c.Name)
		},
	})

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List active customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := rootOpts.printer(cmd)
			if search != "" {
				matches, err := rootOpts.app.Ledger.SearchCustomers(ctx, search, 10)
				return p.Report(err, matches, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tSCORE")
					for _, m := range matches {
						fmt.Fprintf(tw, "%s\t%s\t%.2f\n", m.Customer.ID, m.Customer.Name, m.Score)
					}
					tw.Flush()
				}, "%d match(es) for %q", len(matches), search)
			}

			customers, err := rootOpts.app.Ledger.ListCustomers(ctx)
			return p.Report(err, customers, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSINCE")
				for _, c := range customers {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.CreatedAt.Format(dateLayout))
				}
				tw.Flush()
			}, "%d customer(s)", len(customers))
		},
	}
	list.Flags().StringVar(&search, "search", "", "fuzzy match customer names")
	cmd.AddCommand(list)

	return cmd
}
