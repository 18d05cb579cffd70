// Package document tracks open documents and their attached state: the text
// mirror, the chosen connection, and nothing else. Connection choices are
// persisted in a SQLite side table so a file keeps its connection across
// sessions.
package document

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotTracked reports an operation against a document that was never opened.
var ErrNotTracked = errors.New("document not tracked")

// Document is the in-memory record for one open editor buffer.
type Document struct {
	ID         string
	Text       string
	Connection string
}

// Store is the side table keyed by document identifier.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	open map[string]*Document
}

// NewStore opens/creates the state database at dbPath. An empty path keeps
// everything in memory.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, open: make(map[string]*Document)}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		connection TEXT NOT NULL,
		chosen_at TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open registers a document and restores its persisted connection choice.
func (s *Store) Open(id, text string) (*Document, error) {
	if id == "" {
		return nil, errors.New("document id required")
	}
	doc := &Document{ID: id, Text: text}
	row := s.db.QueryRow(`SELECT connection FROM documents WHERE id = ?`, id)
	var conn string
	switch err := row.Scan(&conn); {
	case err == nil:
		doc.Connection = conn
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}
	s.mu.Lock()
	s.open[id] = doc
	s.mu.Unlock()
	return doc, nil
}

// UpdateText replaces the text mirror for an open document.
func (s *Store) UpdateText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.open[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	doc.Text = text
	return nil
}

// Text returns the current text mirror.
func (s *Store) Text(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.open[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	return doc.Text, nil
}

// CloseDocument drops the in-memory state. The persisted connection row is
// kept so reopening the file restores the choice.
func (s *Store) CloseDocument(id string) {
	s.mu.Lock()
	delete(s.open, id)
	s.mu.Unlock()
}

// Connection returns the chosen connection name for a document, or false when
// none was chosen yet. Unopened documents fall back to the persisted row.
func (s *Store) Connection(id string) (string, bool) {
	s.mu.RLock()
	doc, ok := s.open[id]
	s.mu.RUnlock()
	if ok {
		return doc.Connection, doc.Connection != ""
	}
	row := s.db.QueryRow(`SELECT connection FROM documents WHERE id = ?`, id)
	var conn string
	if err := row.Scan(&conn); err != nil {
		return "", false
	}
	return conn, conn != ""
}

// Choose caches and persists the connection choice for a document.
func (s *Store) Choose(id, connection string) error {
	if id == "" || connection == "" {
		return errors.New("document id and connection required")
	}
	_, err := s.db.Exec(`
	INSERT INTO documents (id, connection, chosen_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		connection=excluded.connection,
		chosen_at=excluded.chosen_at
	`, id, connection, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	if doc, ok := s.open[id]; ok {
		doc.Connection = connection
	}
	s.mu.Unlock()
	return nil
}

// Forget clears the cached and persisted choice so the next run reselects.
func (s *Store) Forget(id string) error {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return err
	}
	s.mu.Lock()
	if doc, ok := s.open[id]; ok {
		doc.Connection = ""
	}
	s.mu.Unlock()
	return nil
}
