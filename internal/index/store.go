// Package index mirrors memory nodes into SQLite for full-text search
// and keeps the debug attempt history across restarts.
//
// The markdown files stay the source of truth; the index is rebuilt from
// them on startup and updated on every write. A project key separates
// repositories sharing one data directory.
package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/recovery"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds index configuration.
type Config struct {
	DataDir          string
	Project          string
	MaxSearchResults int
}

// DefaultConfig returns the default index configuration for project.
func DefaultConfig(project string) Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".memflow"),
		Project:          project,
		MaxSearchResults: 20,
	}
}

// SearchResult is one matching node.
type SearchResult struct {
	ID        memgraph.NodeID `json:"id"`
	Kind      memgraph.Kind   `json:"kind"`
	Snippet   string          `json:"snippet"`
	UpdatedAt time.Time       `json:"updated_at"`
	Rank      float64         `json:"rank"`
}

// Store is the SQLite-backed index.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *log.Logger
}

// New opens (or creates) the index database and runs migrations.
func New(cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 20
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("index: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("index: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			project    TEXT NOT NULL,
			id         TEXT NOT NULL,
			kind       TEXT NOT NULL,
			content    TEXT NOT NULL,
			upstream   TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL,
			UNIQUE (project, id)
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(project, updated_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			id,
			kind,
			content,
			content='nodes',
			content_rowid='rowid'
		);

		CREATE TABLE IF NOT EXISTS debug_attempts (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			project      TEXT    NOT NULL,
			symptoms_key TEXT    NOT NULL,
			symptoms     TEXT    NOT NULL,
			diagnosis    TEXT    NOT NULL DEFAULT '',
			causes       TEXT    NOT NULL DEFAULT '[]',
			fix          TEXT    NOT NULL DEFAULT '',
			passed       INTEGER NOT NULL DEFAULT 0,
			reason       TEXT    NOT NULL DEFAULT '',
			at           TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_attempts_symptoms ON debug_attempts(project, symptoms_key);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='nodes_fts_insert'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER nodes_fts_insert AFTER INSERT ON nodes BEGIN
				INSERT INTO nodes_fts(rowid, id, kind, content)
				VALUES (new.rowid, new.id, new.kind, new.content);
			END;

			CREATE TRIGGER nodes_fts_delete AFTER DELETE ON nodes BEGIN
				INSERT INTO nodes_fts(nodes_fts, rowid, id, kind, content)
				VALUES ('delete', old.rowid, old.id, old.kind, old.content);
			END;

			CREATE TRIGGER nodes_fts_update AFTER UPDATE ON nodes BEGIN
				INSERT INTO nodes_fts(nodes_fts, rowid, id, kind, content)
				VALUES ('delete', old.rowid, old.id, old.kind, old.content);
				INSERT INTO nodes_fts(rowid, id, kind, content)
				VALUES (new.rowid, new.id, new.kind, new.content);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return nil
}

// ─── Nodes ───────────────────────────────────────────────────────────────────

const upsertNodeSQL = `
	INSERT INTO nodes (project, id, kind, content, upstream, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (project, id) DO UPDATE SET
		kind       = excluded.kind,
		content    = excluded.content,
		upstream   = excluded.upstream,
		updated_at = excluded.updated_at
`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) putNode(db execer, n memgraph.Node) error {
	ups, err := json.Marshal(nonNilIDs(n.Upstream))
	if err != nil {
		return err
	}
	_, err = db.Exec(upsertNodeSQL,
		s.cfg.Project, string(n.ID), string(n.Kind), n.Content, string(ups), formatTime(n.UpdatedAt))
	return err
}

// IndexNode inserts or replaces one node.
func (s *Store) IndexNode(n memgraph.Node) error {
	if err := s.putNode(s.db, n); err != nil {
		return fmt.Errorf("index node %s: %w", n.ID, err)
	}
	return nil
}

// OnNodeWritten indexes n after a write. Failures are logged; the
// markdown file has already been written.
func (s *Store) OnNodeWritten(n memgraph.Node) {
	if err := s.IndexNode(n); err != nil {
		s.logger.Warn("index update failed", "id", n.ID, "err", err)
	}
}

// Sync replaces the project's indexed nodes with nodes.
func (s *Store) Sync(nodes []memgraph.Node) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("index sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM nodes WHERE project = ?`, s.cfg.Project); err != nil {
		return fmt.Errorf("index sync: %w", err)
	}
	for _, n := range nodes {
		if !n.Authored() {
			continue
		}
		if err := s.putNode(tx, n); err != nil {
			return fmt.Errorf("index sync %s: %w", n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index sync: %w", err)
	}
	return nil
}

// Search runs a full-text query over node ids, kinds and content. An
// empty query returns the most recently updated nodes.
func (s *Store) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	ftsQuery := sanitizeFTS(query)
	var (
		rows *sql.Rows
		err  error
	)
	if ftsQuery == "" {
		rows, err = s.db.Query(`
			SELECT id, kind, substr(content, 1, 160), updated_at, 0
			FROM nodes
			WHERE project = ?
			ORDER BY updated_at DESC
			LIMIT ?`, s.cfg.Project, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT n.id, n.kind, snippet(nodes_fts, 2, '**', '**', '...', 16), n.updated_at, fts.rank
			FROM nodes_fts fts
			JOIN nodes n ON n.rowid = fts.rowid
			WHERE nodes_fts MATCH ? AND n.project = ?
			ORDER BY fts.rank
			LIMIT ?`, ftsQuery, s.cfg.Project, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var (
			r       SearchResult
			id      string
			kind    string
			updated string
		)
		if err := rows.Scan(&id, &kind, &r.Snippet, &updated, &r.Rank); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		r.ID, r.Kind = memgraph.NodeID(id), memgraph.Kind(kind)
		r.UpdatedAt = parseTime(updated)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of indexed nodes for the project.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE project = ?`, s.cfg.Project).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// ─── Debug attempts ──────────────────────────────────────────────────────────

// RecordAttempt appends a debug attempt. It satisfies recovery.Recorder.
func (s *Store) RecordAttempt(a recovery.Attempt) error {
	symptoms, err := json.Marshal([]string(a.Symptoms))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	causes, err := json.Marshal(a.Causes)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	passed := 0
	if a.Passed {
		passed = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO debug_attempts (project, symptoms_key, symptoms, diagnosis, causes, fix, passed, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.cfg.Project, a.Symptoms.Key(), string(symptoms), a.Diagnosis, string(causes),
		a.Fix, passed, a.Reason, formatTime(a.At))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Attempts returns every recorded attempt for the project, oldest first.
func (s *Store) Attempts() ([]recovery.Attempt, error) {
	rows, err := s.db.Query(`
		SELECT symptoms, diagnosis, causes, fix, passed, reason, at
		FROM debug_attempts
		WHERE project = ?
		ORDER BY seq ASC`, s.cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []recovery.Attempt
	for rows.Next() {
		var (
			a                recovery.Attempt
			symptoms, causes string
			passed           int
			at               string
		)
		if err := rows.Scan(&symptoms, &a.Diagnosis, &causes, &a.Fix, &passed, &a.Reason, &at); err != nil {
			return nil, fmt.Errorf("attempts: %w", err)
		}
		var items []string
		if err := json.Unmarshal([]byte(symptoms), &items); err != nil {
			return nil, fmt.Errorf("attempts: decoding symptoms: %w", err)
		}
		a.Symptoms = recovery.NewSymptomSet(items...)
		if err := json.Unmarshal([]byte(causes), &a.Causes); err != nil {
			return nil, fmt.Errorf("attempts: decoding causes: %w", err)
		}
		a.Passed = passed == 1
		a.At = parseTime(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "stale cache read" → `"stale" "cache" "read"`
func sanitizeFTS(query string) string {
	var words []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, "")
		if w != "" {
			words = append(words, `"`+w+`"`)
		}
	}
	return strings.Join(words, " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNilIDs(ids []memgraph.NodeID) []memgraph.NodeID {
	if ids == nil {
		return []memgraph.NodeID{}
	}
	return ids
}
