package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/runsql/server"
)

func newLSPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Serve editors over LSP on stdin/stdout",
		Long: `Run a language-server-protocol endpoint that editors spawn as a child
process. Executions are requested through workspace/executeCommand and the
client output streams back as sql/output notifications.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			// logs must not pollute the protocol stream on stdout
			svc.Logger.SetOutput(os.Stderr)
			srv := server.NewLSPServer(svc, svc.Logger)
			return srv.ServeStdio(cmd.Context())
		},
	}
}
