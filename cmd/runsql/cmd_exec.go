package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/runsql/config"
	"github.com/lexcodex/runsql/runner"
	"github.com/lexcodex/runsql/session"
)

func newExecCmd() *cobra.Command {
	var connection string
	var reselect bool
	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Run a SQL file through the document's database client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			file := args[0]
			return runAndWait(cmd, svc, connection, reselect, file, func(ctx context.Context, docID string, sink runner.ViewSink) (*runner.Record, error) {
				return svc.ExecFile(ctx, docID, file, sink)
			})
		},
	}
	cmd.Flags().StringVar(&connection, "connection", "", "Connection name to use (and remember) for this file")
	cmd.Flags().BoolVar(&reselect, "reselect", false, "Forget the remembered connection before running")
	return cmd
}

type startFunc func(ctx context.Context, docID string, sink runner.ViewSink) (*runner.Record, error)

// runAndWait applies the connection flags, starts the execution, and blocks
// until the client exits. Ctrl-C kills the client via context cancellation.
func runAndWait(cmd *cobra.Command, svc *session.Service, connection string, reselect bool, file string, start startFunc) error {
	docID, err := docIDFor(file)
	if err != nil {
		return err
	}
	if reselect {
		if err := svc.ForgetConnection(docID); err != nil {
			return err
		}
	}
	if connection != "" {
		if err := svc.ChooseConnection(docID, connection); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := newPlainSink(cmd)
	rec, err := start(ctx, docID, sink)
	if err != nil {
		if errors.Is(err, runner.ErrConnectionNotConfigured) {
			return fmt.Errorf("%w; pick one with --connection (configured: %s)",
				err, strings.Join(svc.Config.Names(), ", "))
		}
		if errors.Is(err, config.ErrNoConnectionsConfigured) {
			return fmt.Errorf("%w; add connections to %s", err, config.DefaultConfigPath(flagWorkspace))
		}
		return err
	}

	status := svc.Runner.Wait(rec)
	if status.State == runner.Failed {
		return fmt.Errorf("client exited with status %d", status.Code)
	}
	return nil
}
