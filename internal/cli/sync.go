package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/billbuddy/internal/auth"
)

// NewQueueCommand creates the offline queue command.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and deliver operations waiting for the network",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := rootOpts.app.Ledger.Pending(cmd.Context())
			return rootOpts.printer(cmd).Report(err, ops, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tENTITY\tQUEUED\tRETRIES\tLAST ERROR")
				for _, op := range ops {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", op.ID, op.Type, op.Entity,
						op.Timestamp.Format(time.DateTime), op.Retries, op.Error)
				}
				tw.Flush()
			}, "%d operation(s) queued", len(ops))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Deliver queued operations now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := rootOpts.app.Ledger.Drain(cmd.Context())
			p := rootOpts.printer(cmd)
			if err == nil && report.Skipped {
				return p.Report(nil, report, nil, "Offline, nothing delivered")
			}
			return p.Report(err, report, func(w io.Writer) {
				for _, op := range report.Abandoned {
					fmt.Fprintf(w, "abandoned %s %s: %s\n", op.Type, op.Entity, op.Error)
				}
			}, "applied %d, requeued %d, abandoned %d, busy %d",
				report.Applied, report.Requeued, len(report.Abandoned), report.Busy)
		},
	})

	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the local ledger to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := rootOpts.app.Ledger.SyncNow(cmd.Context())
			return rootOpts.printer(cmd).Report(err, nil, nil, "Sync requested")
		},
	}
}

// BackupOptions holds flags for the backup commands.
type BackupOptions struct {
	*RootOptions
	Output string
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import the whole ledger",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write a checksummed backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.printer(cmd)
			doc, err := opts.app.Ledger.ExportBackup(cmd.Context())
			if err != nil {
				return p.Report(err, nil, nil, "")
			}
			if opts.Output == "" || opts.Output == "-" {
				_, err := cmd.OutOrStdout().Write(doc)
				return err
			}
			if err := os.WriteFile(opts.Output, doc, 0o600); err != nil {
				return WrapExitError(ExitCommandError, "failed to write backup", err)
			}
			return p.Report(nil, map[string]string{"path": opts.Output}, nil, "Backup written to %s", opts.Output)
		},
	}
	export.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	cmd.AddCommand(export)

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Replace the ledger with a backup; nothing changes if the backup is damaged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read backup", err)
			}
			contents, err := opts.app.Ledger.ImportBackup(cmd.Context(), doc)
			if err != nil {
				return opts.printer(cmd).Report(err, nil, nil, "")
			}
			return opts.printer(cmd).Report(nil, nil, nil,
				"Imported %d customer(s), %d bill(s), %d payment(s), %d recycled",
				len(contents.Customers), len(contents.Bills), len(contents.Payments), len(contents.RecycleBin))
		},
	})

	return cmd
}

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	User   string
	Device string
	TTL    time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a device token for the sync server",
		Long: `Issue a signed device token with server.jwt_secret. Put it in
sync.token on the device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.app.Config.Server.JWTSecret
			if secret == "" {
				return WrapExitError(ExitCommandError, "server.jwt_secret is not set", nil)
			}
			token, err := auth.NewJWTManager(secret, opts.TTL).Generate(opts.User, opts.Device)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to sign token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user id the token is for (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Device, "device", "", "device label")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 365*24*time.Hour, "token lifetime")

	return cmd
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring stored records up to the current shape",
		Long:  "Migrations run before every command; this one only reports what ran.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.printer(cmd).Report(nil, map[string]int{"applied": rootOpts.app.Applied}, nil,
				"%d migration(s) applied", rootOpts.app.Applied)
		},
	}
}
