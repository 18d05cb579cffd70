// Package session wires the runsql CLI, Bubble Tea UI, and LSP server to the
// shared execution service. It centralizes config loading, the document side
// table, the process runner, and log management.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/lexcodex/runsql/config"
	"github.com/lexcodex/runsql/dialect"
	"github.com/lexcodex/runsql/document"
	"github.com/lexcodex/runsql/runner"
	"github.com/lexcodex/runsql/snippet"
)

// Options configures a Service.
type Options struct {
	Workspace  string
	ConfigPath string
	StatePath  string
	LogWriter  io.Writer
}

// Service is the shared execution layer behind every surface.
type Service struct {
	Config *config.Config
	Docs   *document.Store
	Runner *runner.Runner
	Logger *log.Logger
}

// New builds a service from the workspace configuration.
func New(opts Options) (*Service, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultConfigPath(opts.Workspace)
	}
	if opts.StatePath == "" {
		opts.StatePath = filepath.Join(config.ConfigDir(opts.Workspace), "state.db")
	}
	if opts.LogWriter == nil {
		opts.LogWriter = os.Stderr
	}
	logger := log.New(opts.LogWriter, "runsql ", log.LstdFlags)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.StatePath), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	docs, err := document.NewStore(opts.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return &Service{
		Config: cfg,
		Docs:   docs,
		Runner: runner.New(logger),
		Logger: logger,
	}, nil
}

// Close releases the document store.
func (s *Service) Close() error {
	return s.Docs.Close()
}

// Connections returns the configured connections.
func (s *Service) Connections() []config.Connection {
	return s.Config.Connections
}

// ChooseConnection validates and attaches a connection to a document.
func (s *Service) ChooseConnection(docID, name string) error {
	if _, err := s.Config.Lookup(name); err != nil {
		return err
	}
	return s.Docs.Choose(docID, name)
}

// ForgetConnection clears the document's choice so the next run reselects.
func (s *Service) ForgetConnection(docID string) error {
	return s.Docs.Forget(docID)
}

// ResolveConnection returns the connection attached to a document.
// ErrNoConnectionsConfigured when the config is empty,
// ErrConnectionNotConfigured when no choice has been made yet.
func (s *Service) ResolveConnection(docID string) (*config.Connection, error) {
	if len(s.Config.Connections) == 0 {
		return nil, config.ErrNoConnectionsConfigured
	}
	name, ok := s.Docs.Connection(docID)
	if !ok {
		return nil, runner.ErrConnectionNotConfigured
	}
	return s.Config.Lookup(name)
}

// ExecFile runs the whole file through the document's client.
func (s *Service) ExecFile(ctx context.Context, docID, path string, sink runner.ViewSink) (*runner.Record, error) {
	conn, err := s.ResolveConnection(docID)
	if err != nil {
		return nil, err
	}
	return s.Runner.Start(ctx, docID, conn, runner.FilePayload(path), sink)
}

// ExecSnippet runs the statement under the cursor.
func (s *Service) ExecSnippet(ctx context.Context, docID, text string, cursorLine int, sink runner.ViewSink) (*runner.Record, error) {
	conn, err := s.ResolveConnection(docID)
	if err != nil {
		return nil, err
	}
	stmt, err := statementAt(text, cursorLine)
	if err != nil {
		return nil, err
	}
	return s.Runner.Start(ctx, docID, conn, runner.StatementPayload(stmt), sink)
}

// Explain runs the explain-plan variant of the statement under the cursor.
func (s *Service) Explain(ctx context.Context, docID, text string, cursorLine int, sink runner.ViewSink) (*runner.Record, error) {
	conn, err := s.ResolveConnection(docID)
	if err != nil {
		return nil, err
	}
	d, err := dialect.Parse(conn.Dialect)
	if err != nil {
		return nil, err
	}
	stmt, err := statementAt(text, cursorLine)
	if err != nil {
		return nil, err
	}
	return s.Runner.Start(ctx, docID, conn, runner.StatementPayload(dialect.WrapExplain(d, stmt)), sink)
}

// Kill terminates the document's running process, if any.
func (s *Service) Kill(docID string) {
	s.Runner.Kill(docID)
}

func statementAt(text string, cursorLine int) (string, error) {
	lines := snippet.Split(text)
	rng := snippet.StatementAt(lines, cursorLine)
	return snippet.Extract(lines, rng)
}
