package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	"github.com/lexcodex/runsql/runner"
	"github.com/lexcodex/runsql/session"
)

var (
	flagWorkspace string
	flagConfig    string
	flagState     string
	flagVerbose   bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "runsql",
		Short:         "Execute SQL files and statements through command-line database clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", ".", "Workspace root (holds runsql_cfg)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to runsql.yaml (defaults to workspace runsql_cfg)")
	root.PersistentFlags().StringVar(&flagState, "state", "", "Path to the state database (defaults to workspace runsql_cfg)")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Log runner activity to stderr")

	root.AddCommand(
		newExecCmd(),
		newSnippetCmd(),
		newExplainCmd(),
		newConnectionsCmd(),
		newLSPCmd(),
		newShellCmd(),
	)
	return root
}

func newService() (*session.Service, error) {
	logWriter := io.Writer(io.Discard)
	if flagVerbose {
		logWriter = os.Stderr
	}
	return session.New(session.Options{
		Workspace:  flagWorkspace,
		ConfigPath: flagConfig,
		StatePath:  flagState,
		LogWriter:  logWriter,
	})
}

// docIDFor normalizes a file argument into the document identifier shared
// with the LSP surface, so choices made in the editor apply on the CLI too.
func docIDFor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return string(uri.File(abs)), nil
}

// plainSink streams chunks straight to the command's stdout/stderr.
type plainSink struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func newPlainSink(cmd *cobra.Command) *plainSink {
	return &plainSink{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
}

func (s *plainSink) Append(chunk runner.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.Stream == runner.Stderr {
		fmt.Fprintln(s.err, chunk.Text)
		return
	}
	fmt.Fprintln(s.out, chunk.Text)
}

func (s *plainSink) Close(status runner.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, status.Marker())
}
