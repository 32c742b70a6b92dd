package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/treatydesk/internal"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- terms is the translation glossary: one Japanese rendering per English term
	CREATE TABLE IF NOT EXISTS terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		english_term TEXT NOT NULL UNIQUE,
		japanese_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS translation_runs (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		context_en TEXT,
		context_ja TEXT,
		model TEXT NOT NULL,
		final_text TEXT NOT NULL,
		score REAL NOT NULL,
		accepted BOOLEAN DEFAULT FALSE,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS translation_attempts (
		run_id TEXT NOT NULL,
		attempt_idx INTEGER NOT NULL,
		candidate_text TEXT NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (run_id, attempt_idx),
		FOREIGN KEY (run_id) REFERENCES translation_runs(id)
	);

	-- translation_memory caches accepted results keyed by every translation input
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		cache_key TEXT NOT NULL UNIQUE,
		source_text TEXT NOT NULL,
		final_text TEXT NOT NULL,
		score REAL NOT NULL,
		model TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS review_runs (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		rule_sets TEXT NOT NULL,
		mechanical TEXT,
		final_text TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_run ON translation_attempts(run_id);
	CREATE INDEX IF NOT EXISTS idx_memory_source ON translation_memory(source_text);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a translation run and its attempts in one transaction.
func (s *Store) SaveRun(ctx context.Context, run internal.TranslationRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := run.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO translation_runs (id, source_text, context_en, context_ja, model, final_text, score, accepted, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceText, run.ContextEN, run.ContextJA, run.Model, run.FinalText, run.Score, run.Accepted, run.Error, ts)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, a := range run.Attempts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO translation_attempts (run_id, attempt_idx, candidate_text, score) VALUES (?, ?, ?, ?)`,
			run.ID, a.Index, a.Text, a.Score)
		if err != nil {
			return fmt.Errorf("failed to save attempt %d: %w", a.Index, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its attempts in attempt order.
func (s *Store) GetRun(ctx context.Context, id string) (*internal.TranslationRun, error) {
	var run internal.TranslationRun
	var ctxEN, ctxJA, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_text, context_en, context_ja, model, final_text, score, accepted, error, created_at FROM translation_runs WHERE id = ?`,
		id).Scan(&run.ID, &run.SourceText, &ctxEN, &ctxJA, &run.Model, &run.FinalText, &run.Score, &run.Accepted, &errMsg, &run.Timestamp)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	run.ContextEN, run.ContextJA, run.Error = ctxEN.String, ctxJA.String, errMsg.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_idx, candidate_text, score FROM translation_attempts WHERE run_id = ? ORDER BY attempt_idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a internal.RunAttempt
		if err := rows.Scan(&a.Index, &a.Text, &a.Score); err != nil {
			return nil, err
		}
		run.Attempts = append(run.Attempts, a)
	}
	return &run, rows.Err()
}

// SaveReview stores the outcome of one review pipeline run.
func (s *Store) SaveReview(ctx context.Context, rev internal.ReviewRun) error {
	ruleSets, err := json.Marshal(rev.RuleSets)
	if err != nil {
		return fmt.Errorf("failed to encode rule sets: %w", err)
	}
	ts := rev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_runs (id, document, rule_sets, mechanical, final_text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.Document, string(ruleSets), rev.Mechanical, rev.FinalText, ts)
	return err
}

// GetReview loads a stored review run.
func (s *Store) GetReview(ctx context.Context, id string) (*internal.ReviewRun, error) {
	var rev internal.ReviewRun
	var ruleSets string
	var mechanical sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document, rule_sets, mechanical, final_text, created_at FROM review_runs WHERE id = ?`,
		id).Scan(&rev.ID, &rev.Document, &ruleSets, &mechanical, &rev.FinalText, &rev.Timestamp)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	rev.Mechanical = mechanical.String
	if err := json.Unmarshal([]byte(ruleSets), &rev.RuleSets); err != nil {
		return nil, fmt.Errorf("failed to decode rule sets: %w", err)
	}
	return &rev, nil
}

// RecentRuns returns up to limit translation runs, newest first, without
// their attempts.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]internal.TranslationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, model, final_text, score, accepted, error, created_at FROM translation_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []internal.TranslationRun
	for rows.Next() {
		var run internal.TranslationRun
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.SourceText, &run.Model, &run.FinalText, &run.Score, &run.Accepted, &errMsg, &run.Timestamp); err != nil {
			return nil, err
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecentReviews returns up to limit review runs, newest first.
func (s *Store) RecentReviews(ctx context.Context, limit int) ([]internal.ReviewRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, rule_sets, final_text, created_at FROM review_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []internal.ReviewRun
	for rows.Next() {
		var rev internal.ReviewRun
		var ruleSets string
		if err := rows.Scan(&rev.ID, &rev.Document, &ruleSets, &rev.FinalText, &rev.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ruleSets), &rev.RuleSets); err != nil {
			return nil, fmt.Errorf("failed to decode rule sets of %s: %w", rev.ID, err)
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
