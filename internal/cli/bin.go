package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewBinCommand creates the recycle bin command.
func NewBinCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Inspect and restore deleted records",
		Long: `Deleted customers, bills and payments stay in the recycle bin for 30
days. Entries older than that are removed whenever the bin is listed.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recycled records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := rootOpts.app.Ledger.ListBin(cmd.Context())
			return rootOpts.printer(cmd).Report(err, entries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tNAME\tDELETED\tDAYS LEFT")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.ID, e.Type, e.DisplayName,
						e.DeletedAt.Format(dateLayout), e.DaysRemaining)
				}
				tw.Flush()
			}, "%d item(s) in the recycle bin", len(entries))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore ENTRY_ID",
		Short: "Restore a recycled record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := rootOpts.app.Ledger.Restore(cmd.Context(), args[0])
			name := args[0]
			if entry != nil {
				name = entry.DisplayName
			}
			return rootOpts.printer(cmd).Report(err, entry, nil, "Restored %s", name)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge ENTRY_ID",
		Short: "Delete a recycled record permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := rootOpts.app.Ledger.PurgeBin(cmd.Context(), args[0])
			return rootOpts.printer(cmd).Report(err, nil, nil, "Entry %s permanently deleted", args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the recycle bin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rootOpts.app.Ledger.ClearBin(cmd.Context())
			return rootOpts.printer(cmd).Report(err, map[string]int{"removed": n}, nil, "%d item(s) permanently deleted", n)
		},
	})

	return cmd
}
