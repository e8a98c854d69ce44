package server

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Analysis statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// ErrNotFound is returned when no analysis exists for a token.
var ErrNotFound = errors.New("analysis not found")

// Analysis is one submitted patent-analysis run.
type Analysis struct {
	Token       string `db:"token"`
	ReportID    string `db:"report_id"`
	SourceType  string `db:"source_type"`
	Source      string `db:"source"`
	Status      string `db:"status"`
	Report      string `db:"report"`
	ReportHTML  string `db:"report_html"`
	Error       string `db:"error"`
	CreatedAt   string `db:"created_at"`
	CompletedAt string `db:"completed_at"`
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	token        TEXT PRIMARY KEY,
	report_id    TEXT NOT NULL DEFAULT '',
	source_type  TEXT NOT NULL,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	report       TEXT NOT NULL DEFAULT '',
	report_html  TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	completed_at TEXT NOT NULL DEFAULT ''
);
`

// Store persists analysis runs to SQLite with write-through semantics.
type Store struct {
	db *sqlx.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create records a new pending analysis and returns it with a fresh token.
func (s *Store) Create(sourceType, source string) (*Analysis, error) {
	a := &Analysis{
		Token:      uuid.NewString(),
		SourceType: sourceType,
		Source:     source,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.db.NamedExec(`INSERT INTO analyses
		(token, source_type, source, status, created_at)
		VALUES (:token, :source_type, :source, :status, :created_at)`, a)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}
	return a, nil
}

func (s *Store) Get(token string) (*Analysis, error) {
	var a Analysis
	err := s.db.Get(&a, `SELECT * FROM analyses WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

func (s *Store) MarkRunning(token string) error {
	return s.update(token, `UPDATE analyses SET status = ? WHERE token = ?`, StatusRunning, token)
}

// SetResult stores the finished report under a freshly assigned report ID.
func (s *Store) SetResult(token, reportID, report, reportHTML string) error {
	return s.update(token,
		`UPDATE analyses SET status = ?, report_id = ?, report = ?, report_html = ?, completed_at = ? WHERE token = ?`,
		StatusDone, reportID, report, reportHTML, time.Now().UTC().Format(time.RFC3339), token)
}

func (s *Store) SetFailed(token, errMsg string) error {
	return s.update(token,
		`UPDATE analyses SET status = ?, error = ?, completed_at = ? WHERE token = ?`,
		StatusFailed, errMsg, time.Now().UTC().Format(time.RFC3339), token)
}

func (s *Store) update(token, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
