package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/runsql/runner"
)

func newExplainCmd() *cobra.Command {
	var connection string
	var reselect bool
	var line int
	cmd := &cobra.Command{
		Use:   "explain FILE",
		Short: "Show the execution plan for the statement around a line",
		Long: `Wrap the statement under --line in the dialect's explain-plan form
(EXPLAIN PLAN FOR with dbms_xplan on Oracle, EXPLAIN elsewhere) and run it
through the same client pipeline as a normal execution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return runAndWait(cmd, svc, connection, reselect, args[0], func(ctx context.Context, docID string, sink runner.ViewSink) (*runner.Record, error) {
				return svc.Explain(ctx, docID, string(data), line, sink)
			})
		},
	}
	cmd.Flags().StringVar(&connection, "connection", "", "Connection name to use (and remember) for this file")
	cmd.Flags().BoolVar(&reselect, "reselect", false, "Forget the remembered connection before running")
	cmd.Flags().IntVar(&line, "line", 0, "Zero-based cursor line")
	return cmd
}
