package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/service/report"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/csvutil"
	"github.com/dalemusser/teamreg/internal/app/system/indexes"
	"github.com/spf13/cobra"
)

func newIndexesCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create or verify every collection index",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, env *Env, out io.Writer) error {
			if env.DB == nil {
				return errors.New("indexes need a MongoDB connection")
			}
			if err := indexes.EnsureAll(ctx, env.DB); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, "indexes ensured")
			return err
		}),
	}
}

func newRegistrationCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registration",
		Short: "Show or change whether registration is open",
	}

	set := func(open bool) func(*cobra.Command, []string) error {
		return run(func(ctx context.Context, env *Env, out io.Writer) error {
			if err := env.Services.Orchestrator.SetRegistrationOpen(ctx, open, nil); err != nil {
				return err
			}
			return printRegistration(out, open)
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print whether registration is open",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, env *Env, out io.Writer) error {
				open, err := env.Services.Orchestrator.RegistrationOpen(ctx)
				if err != nil {
					return err
				}
				return printRegistration(out, open)
			}),
		},
		&cobra.Command{Use: "open", Short: "Open registration", Args: cobra.NoArgs, RunE: set(true)},
		&cobra.Command{Use: "close", Short: "Close registration", Args: cobra.NoArgs, RunE: set(false)},
	)
	return cmd
}

func printRegistration(out io.Writer, open bool) error {
	state := "closed"
	if open {
		state = "open"
	}
	_, err := fmt.Fprintf(out, "registration is %s\n", state)
	return err
}

func newExportCmd(run runner) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:       "export {teams|solos|payments}",
		Short:     "Write a CSV export to a file or stdout",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: report.Kinds,
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		kind := args[0]
		return run(func(ctx context.Context, env *Env, out io.Writer) error {
			st := env.Services.Stores
			snap, err := report.Load(ctx, st.Users, st.Teams, st.Payments)
			if err != nil {
				return err
			}
			table, ok := snap.Table(kind)
			if !ok {
				return fmt.Errorf("unknown export %q", kind)
			}

			if outPath == "" || outPath == "-" {
				return csvutil.Write(out, table)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := csvutil.Write(f, table); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.ErrOrStderr(), "wrote %d %s rows to %s\n", table.Len(), kind, outPath)
			return err
		})(c, args)
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newPaymentsCmd(run runner) *cobra.Command {
	var (
		age   time.Duration
		limit int64
	)

	poll := &cobra.Command{
		Use:   "poll",
		Short: "Ask the gateway about payments stuck in created or pending",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, env *Env, out io.Writer) error {
			res, err := env.Services.Ledger.PollPending(ctx, age, limit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "checked %d, applied %d, errors %d\n", res.Checked, res.Applied, res.Errors)
			return err
		}),
	}
	poll.Flags().DurationVar(&age, "older-than", 10*time.Minute, "only poll payments untouched for this long")
	poll.Flags().Int64Var(&limit, "limit", 100, "maximum payments to poll")

	cmd := &cobra.Command{Use: "payments", Short: "Payment maintenance"}
	cmd.AddCommand(poll)
	return cmd
}

func newOrganizerCmd(run runner) *cobra.Command {
	promote := &cobra.Command{
		Use:   "promote EMAIL",
		Short: "Grant the organizer role to a registered account",
		Args:  cobra.ExactArgs(1),
	}
	promote.RunE = func(c *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		return run(func(ctx context.Context, env *Env, out io.Writer) error {
			u, promoted, err := env.Services.Identity.PromoteOrganizer(ctx, email)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				return fmt.Errorf("no account registered for %s", email)
			case errors.Is(err, apperr.ErrAlreadyOnTeam):
				return fmt.Errorf("%s is on a team; remove them from it first", email)
			case err != nil:
				return err
			}
			if !promoted {
				_, err = fmt.Fprintf(out, "%s is already an organizer\n", u.Email)
				return err
			}
			_, err = fmt.Fprintf(out, "promoted %s (%s)\n", u.Email, u.ID.Hex())
			return err
		})(c, args)
	}

	cmd := &cobra.Command{Use: "organizer", Short: "Organizer account management"}
	cmd.AddCommand(promote)
	return cmd
}
