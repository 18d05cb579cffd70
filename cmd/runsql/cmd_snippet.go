package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/runsql/runner"
)

func newSnippetCmd() *cobra.Command {
	var connection string
	var reselect bool
	var line int
	cmd := &cobra.Command{
		Use:   "snippet FILE",
		Short: "Run the statement around a line through the database client",
		Long: `Run the contiguous non-blank block of lines around --line, the way an
editor runs the statement under the cursor. The statement is written to a
temporary file and handed to the configured client.`,
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
				return svc.ExecSnippet(ctx, docID, string(data), line, sink)
			})
		},
	}
	cmd.Flags().StringVar(&connection, "connection", "", "Connection name to use (and remember) for this file")
	cmd.Flags().BoolVar(&reselect, "reselect", false, "Forget the remembered connection before running")
	cmd.Flags().IntVar(&line, "line", 0, "Zero-based cursor line")
	return cmd
}
