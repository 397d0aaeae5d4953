package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewItemCommand creates the item command.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage the item catalog",
	}

	var rateFlag string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a catalog item; without --rate it is variable-priced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := rootOpts.printer(cmd)
			var rate *decimal.Decimal
			if rateFlag != "" {
				r, err := parseAmount(rateFlag)
				if err != nil {
					return p.Report(err, nil, nil, "")
				}
				rate = &r
			}
			item, err := rootOpts.app.Ledger.AddItem(cmd.Context(), args[0], rate)
			return p.Report(err, item, nil, "Item %q added", args[0])
		},
	}
	add.Flags().StringVar(&rateFlag, "rate", "", "fixed rate")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ITEM_ID",
		Short: "Remove a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := rootOpts.app.Ledger.DeleteItem(cmd.Context(), args[0])
			return rootOpts.printer(cmd).Report(err, nil, nil, "Item %s deleted", args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := rootOpts.app.Ledger.ListItems(cmd.Context())
			return rootOpts.printer(cmd).Report(err, items, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tTYPE\tRATE")
				for _, it := range items {
					rate := "-"
					if it.Rate != nil {
						rate = it.Rate.StringFixed(2)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Type, rate)
				}
				tw.Flush()
			}, "%d item(s)", len(items))
		},
	})

	return cmd
}
