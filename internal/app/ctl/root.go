// Package ctl implements teamregctl, the operator command line for the
// registration backend. It talks to MongoDB directly and runs the same
// services as the HTTP server.
package ctl

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dalemusser/teamreg/internal/app/services"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Env is an open connection to the event's data.
type Env struct {
	Services *services.Set
	DB       *mongo.Database // nil over in-memory stores
	Close    func(ctx context.Context) error
}

// Opener connects to the backing store. The default dials MongoDB using the
// TEAMREG_* environment.
type Opener func(ctx context.Context, opts Options, log *zap.Logger) (*Env, error)

// Options are the persistent flags shared by every command.
type Options struct {
	EnvFile  string
	MongoURI string
	Database string
	Verbose  bool
	Timeout  time.Duration
}

// NewRootCmd builds the command tree. Tests pass an in-memory opener.
func NewRootCmd(open Opener) *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:           "teamregctl",
		Short:         "Operate the team registration backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading TEAMREG_* variables")
	root.PersistentFlags().StringVar(&opts.MongoURI, "mongo-uri", "", "MongoDB URI (overrides TEAMREG_MONGO_URI)")
	root.PersistentFlags().StringVar(&opts.Database, "db", "", "database name (overrides TEAMREG_MONGO_DATABASE)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "overall command timeout")

	run := func(fn func(ctx context.Context, env *Env, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			log := zap.NewNop()
			if opts.Verbose {
				if l, err := zap.NewDevelopment(); err == nil {
					log = l
				}
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			env, err := open(ctx, opts, log)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer func() { _ = env.Close(context.Background()) }()

			return fn(ctx, env, cmd.OutOrStdout())
		}
	}

	root.AddCommand(
		newIndexesCmd(run),
		newRegistrationCmd(run),
		newExportCmd(run),
		newPaymentsCmd(run),
		newOrganizerCmd(run),
	)
	return root
}

type runner func(fn func(ctx context.Context, env *Env, out io.Writer) error) func(*cobra.Command, []string) error

// Execute runs teamregctl against MongoDB.
func Execute(ctx context.Context) error {
	return NewRootCmd(OpenMongo).ExecuteContext(ctx)
}
