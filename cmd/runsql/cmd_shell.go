package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/runsql/tui"
)

func newShellCmd() *cobra.Command {
	var line int
	var scope string
	var reselect bool
	cmd := &cobra.Command{
		Use:   "shell FILE",
		Short: "Run a file in the interactive output pane",
		Long: `Open the Bubble Tea output pane: pick a connection when the file has
none, stream the client output as it arrives, kill with 'k', quit with 'q'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			docID, err := docIDFor(args[0])
			if err != nil {
				return err
			}
			opts := tui.Options{
				Service:  svc,
				DocID:    docID,
				FilePath: args[0],
				Reselect: reselect,
			}
			switch scope {
			case "file":
				opts.Scope = tui.ScopeFile
			case "statement", "explain":
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				opts.Text = string(data)
				opts.Line = line
				opts.Scope = tui.ScopeStatement
				if scope == "explain" {
					opts.Scope = tui.ScopeExplain
				}
			default:
				return fmt.Errorf("unknown scope %q (file, statement, explain)", scope)
			}
			return tui.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&line, "line", 0, "Zero-based cursor line for statement/explain scope")
	cmd.Flags().StringVar(&scope, "scope", "file", "What to run: file, statement, or explain")
	cmd.Flags().BoolVar(&reselect, "reselect", false, "Forget the remembered connection and pick again")
	return cmd
}
